// Package textmetrics measures and wraps text against a pixel width budget.
//
// Heights are always whole lines: a block of n wrapped lines is n*lineHeight
// tall, including a short final line. Measurement that only needs a height
// runs on a private 1x1 context so it never touches the canvas being painted.
package textmetrics

import (
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// Measurer reports the rendered width and height of a string in the current
// face. *gg.Context satisfies it.
type Measurer interface {
	MeasureString(s string) (w, h float64)
}

// Wrap splits text into lines no wider than maxWidth, greedily.
// Words are separated by any whitespace and are never split, so a single
// word wider than maxWidth gets a line of its own. Empty or whitespace-only
// text yields no lines.
func Wrap(m Measurer, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if width, _ := m.MeasureString(candidate); width <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

// BlockHeight returns lines*lineHeight.
func BlockHeight(lines int, lineHeight float64) float64 {
	return float64(lines) * lineHeight
}

// MeasureWrappedHeight returns the height text occupies in face when wrapped
// to maxWidth, using an isolated measurement context.
func MeasureWrappedHeight(face font.Face, text string, maxWidth, lineHeight float64) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(face)
	return BlockHeight(len(Wrap(dc, text, maxWidth)), lineHeight)
}

// WrapAndDraw wraps text with the context's current face and draws each
// line centered on anchorX, the first line box starting at startY. It
// returns the consumed height. Empty text draws nothing and returns 0.
func WrapAndDraw(dc *gg.Context, text string, anchorX, startY, maxWidth, lineHeight float64, dir Direction) float64 {
	lines := Wrap(dc, text, maxWidth)
	for i, line := range lines {
		// vertically center the glyphs in their line box
		y := startY + float64(i)*lineHeight + lineHeight/2
		dc.DrawStringAnchored(VisualOrder(line, dir), anchorX, y, 0.5, 0.5)
	}
	return BlockHeight(len(lines), lineHeight)
}
