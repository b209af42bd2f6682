package layout

import (
	"strings"

	"tools.zach/dev/wisdomcard/internal/content"
)

// Block is one styled run of text. Blocks are rebuilt for every render.
type Block struct {
	Role  Role
	Text  string
	Style Style
}

// Blocks returns the ordered text blocks for v in format f. Empty fields
// produce no block, so absent parts leave no gap. A nil v has no blocks.
//
//	verse:     primary script, "translation", secondary translation, citation
//	saying:    "translation", secondary translation, attribution + citation
//	narrative: heading, "body"
func Blocks(v content.Variant, f Format) []Block {
	var parts []Block
	add := func(r Role, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		parts = append(parts, Block{Role: r, Text: text, Style: StyleFor(r, f)})
	}

	switch v := content.Normalize(v).(type) {
	case content.ScriptureVerse:
		add(RolePrimaryScript, v.PrimaryScript)
		add(RoleTranslation, content.Quote(v.Translation))
		add(RoleSecondaryTranslation, v.SecondaryTranslation)
		add(RoleCitation, v.Citation)
	case content.Saying:
		add(RoleTranslation, content.Quote(v.Translation))
		add(RoleSecondaryTranslation, v.SecondaryTranslation)
		add(RoleCitation, content.Attribution(v))
	case content.Narrative:
		add(RoleHeading, v.Heading)
		add(RoleBody, content.Quote(v.Body))
	}
	return parts
}
