package layout

import (
	"math"

	"tools.zach/dev/wisdomcard/internal/fonts"
	"tools.zach/dev/wisdomcard/internal/textmetrics"
)

// Role is the part a text block plays on the card.
type Role int

const (
	RoleHeading Role = iota
	RolePrimaryScript
	RoleTranslation
	RoleBody
	RoleSecondaryTranslation
	RoleCitation
)

var roleNames = [...]string{"heading", "primary-script", "translation", "body", "secondary-translation", "citation"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "role?"
}

// Style is the font treatment for one role in one format.
type Style struct {
	Family fonts.Family
	// Size is the font size in pixels.
	Size float64
	// LineHeight is a multiple of Size.
	LineHeight float64
	// Opacity of the white text, 0..1.
	Opacity   float64
	Direction textmetrics.Direction
}

// LinePixels returns the line box height in pixels.
func (s Style) LinePixels() float64 { return s.Size * s.LineHeight }

// Canvas geometry shared by the renderer and the preview.
const (
	PaddingFraction  = 0.08
	TopPaddingFactor = 1.5
	// SpacingFactor scales the translation size into the gap between blocks.
	SpacingFactor = 1.5
	OverlayAlpha  = 0.45

	// Branding mark, top-right.
	LogoWidthFraction   = 0.20
	LogoPaddingFraction = 0.05
	LogoOpacity         = 0.9
)

type styleKey struct {
	role   Role
	format Format
}

var styles = buildStyles()

// buildStyles derives every (role, format) style from the canvas width.
// Story bodies run smaller than translations since they are longer.
func buildStyles() map[styleKey]Style {
	out := make(map[styleKey]Style, len(roleNames)*len(Formats))
	for _, f := range Formats {
		w, _ := f.Size()
		px := func(div float64) float64 { return math.Round(float64(w) / div) }

		out[styleKey{RoleHeading, f}] = Style{fonts.SansBold, px(50), 1.4, 1, textmetrics.LeftToRight}
		out[styleKey{RolePrimaryScript, f}] = Style{fonts.Serif, px(22), 1.5, 1, textmetrics.RightToLeft}
		out[styleKey{RoleTranslation, f}] = Style{fonts.SansItalic, px(34), 1.4, 0.9, textmetrics.LeftToRight}
		out[styleKey{RoleBody, f}] = Style{fonts.SansItalic, px(38), 1.4, 0.9, textmetrics.LeftToRight}
		out[styleKey{RoleSecondaryTranslation, f}] = Style{fonts.Serif, px(30), 1.4, 0.85, textmetrics.RightToLeft}
		out[styleKey{RoleCitation, f}] = Style{fonts.Sans, px(50), 1.4, 0.7, textmetrics.LeftToRight}
	}
	return out
}

// StyleFor returns the style of role r in format f.
func StyleFor(r Role, f Format) Style {
	return styles[styleKey{r, f}]
}
