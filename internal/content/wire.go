package content

import (
	"fmt"
	"strings"
)

// ///////////////////////////////////////////////
// Generation API Records
// ///////////////////////////////////////////////

// VerseRecord is a verse as returned by the generation endpoint.
type VerseRecord struct {
	Arabic    string `json:"verse_arabic"`
	English   string `json:"verse_english"`
	Urdu      string `json:"verse_urdu"`
	Reference string `json:"reference,omitempty"`
}

// HadithRecord is a saying as returned by the generation endpoint.
type HadithRecord struct {
	English  string `json:"text_english"`
	Urdu     string `json:"text_urdu"`
	Narrator string `json:"narrator"`
	Source   string `json:"source"`
}

// StoryRecord is a story as returned by the generation endpoint.
type StoryRecord struct {
	Title string `json:"title"`
	Story string `json:"story"`
}

// Response is the generation endpoint's JSON body. Error is set instead of
// the lists when the endpoint reports a failure.
type Response struct {
	Quran   *[]VerseRecord  `json:"quran,omitempty"`
	Hadith  *[]HadithRecord `json:"hadith,omitempty"`
	Stories *[]StoryRecord  `json:"stories,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ///////////////////////////////////////////////
// Collection
// ///////////////////////////////////////////////

// Collection holds the variants returned for one topic and view.
type Collection struct {
	Verses     []ScriptureVerse `json:"verses"`
	Sayings    []Saying         `json:"sayings"`
	Narratives []Narrative      `json:"narratives"`
}

// All returns every variant in display order: verses, sayings, narratives.
func (c *Collection) All() []Variant {
	out := make([]Variant, 0, c.Len())
	for _, v := range c.Verses {
		out = append(out, v)
	}
	for _, s := range c.Sayings {
		out = append(out, s)
	}
	for _, n := range c.Narratives {
		out = append(out, n)
	}
	return out
}

// Len returns the total number of variants.
func (c *Collection) Len() int {
	return len(c.Verses) + len(c.Sayings) + len(c.Narratives)
}

// Collect converts a response into a Collection, checking that every list
// the view requires is present.
func (r *Response) Collect(view View) (*Collection, error) {
	for _, req := range view.required() {
		var present bool
		switch req {
		case "quran":
			present = r.Quran != nil
		case "hadith":
			present = r.Hadith != nil
		case "stories":
			present = r.Stories != nil
		}
		if !present {
			return nil, fmt.Errorf("response for view %q is missing %q", view, req)
		}
	}

	c := &Collection{}
	if r.Quran != nil {
		for _, q := range *r.Quran {
			c.Verses = append(c.Verses, ScriptureVerse{
				PrimaryScript:        strings.TrimSpace(q.Arabic),
				Translation:          strings.TrimSpace(q.English),
				SecondaryTranslation: strings.TrimSpace(q.Urdu),
				Citation:             strings.TrimSpace(q.Reference),
			})
		}
	}
	if r.Hadith != nil {
		for _, h := range *r.Hadith {
			c.Sayings = append(c.Sayings, Saying{
				Translation:          strings.TrimSpace(h.English),
				SecondaryTranslation: strings.TrimSpace(h.Urdu),
				Attribution:          strings.TrimSpace(h.Narrator),
				Citation:             strings.TrimSpace(h.Source),
			})
		}
	}
	if r.Stories != nil {
		for _, s := range *r.Stories {
			c.Narratives = append(c.Narratives, Narrative{
				Heading: strings.TrimSpace(s.Title),
				Body:    strings.TrimSpace(s.Story),
			})
		}
	}
	return c, nil
}
