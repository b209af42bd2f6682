package content

import "strings"

// titleRunes bounds the default schedule title taken from a translation.
const titleRunes = 50

// PlainText returns the clipboard rendition of v.
//
//	verse:     primary, blank line, "translation", secondary
//	saying:    "translation", secondary, - attribution, citation
//	narrative: heading, blank line, body
func PlainText(v Variant) string {
	switch v := Normalize(v).(type) {
	case ScriptureVerse:
		return paragraphs([]string{v.PrimaryScript}, []string{Quote(v.Translation), v.SecondaryTranslation})
	case Saying:
		attr := Attribution(v)
		if attr != "" {
			attr = "- " + attr
		}
		return paragraphs([]string{Quote(v.Translation), v.SecondaryTranslation, attr})
	case Narrative:
		return paragraphs([]string{v.Heading}, []string{v.Body})
	}
	return ""
}

// Title returns the default title used when scheduling v.
func Title(v Variant) string {
	switch v := Normalize(v).(type) {
	case ScriptureVerse:
		r := []rune(v.Translation)
		if len(r) > titleRunes {
			r = r[:titleRunes]
		}
		return string(r) + "..."
	case Saying:
		return v.Citation
	case Narrative:
		return v.Heading
	}
	return ""
}

// Attribution joins a saying's narrator and source, skipping empty parts.
func Attribution(s Saying) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{s.Attribution, s.Citation} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Quote wraps non-empty text in double quotes, as translations appear on
// the card.
func Quote(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return `"` + s + `"`
}

// paragraphs joins the non-empty lines of each paragraph with newlines and
// separates non-empty paragraphs with a blank line.
func paragraphs(paras ...[]string) string {
	var out []string
	for _, p := range paras {
		var lines []string
		for _, l := range p {
			if l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(out, "\n\n")
}
