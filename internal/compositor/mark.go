package compositor

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"tools.zach/dev/wisdomcard/internal/fonts"
)

// Built-in branding mark: a monogram on a filled disc.
const (
	markSize     = 256
	markFontSize = 120
	markText     = "IW"
	markBg       = "#0F5132"
	markFg       = "#F5E6B3"
)

// ParseHexColor parses "#RRGGBB".
func ParseHexColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: must be 6 hex digits", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// BuiltinMark draws the bundled branding mark with the bold sans face.
func BuiltinMark(reg *fonts.Registry) (image.Image, error) {
	bg, err := ParseHexColor(markBg)
	if err != nil {
		return nil, err
	}
	fg, err := ParseHexColor(markFg)
	if err != nil {
		return nil, err
	}
	face, err := reg.Face(fonts.SansBold, markFontSize)
	if err != nil {
		return nil, fmt.Errorf("mark face: %w", err)
	}

	dc := gg.NewContext(markSize, markSize)
	dc.SetColor(bg)
	dc.DrawCircle(markSize/2, markSize/2, markSize/2)
	dc.Fill()

	img := dc.Image().(*image.RGBA)

	// center on the glyph bounds, not the advance box
	bounds, _ := font.BoundString(face, markText)
	glyphW := (bounds.Max.X - bounds.Min.X).Ceil()
	glyphH := (bounds.Max.Y - bounds.Min.Y).Ceil()
	originX := (markSize-glyphW)/2 - bounds.Min.X.Floor()
	originY := (markSize-glyphH)/2 - bounds.Min.Y.Floor()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(originX, originY),
	}
	d.DrawString(markText)
	return img, nil
}
