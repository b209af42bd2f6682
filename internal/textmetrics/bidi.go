package textmetrics

import (
	"strings"

	"golang.org/x/text/unicode/bidi"
)

// Direction is the base paragraph direction of a text block.
type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
)

func (d Direction) String() string {
	if d == RightToLeft {
		return "rtl"
	}
	return "ltr"
}

// VisualOrder reorders a logical line for left-to-right glyph drawing.
// Left-to-right lines are returned unchanged. For right-to-left lines the
// bidi runs are laid out visually and right-to-left runs are reversed, so
// embedded numbers and Latin words keep their reading order. Any failure
// in the bidi algorithm returns line unchanged.
func VisualOrder(line string, dir Direction) (out string) {
	if dir != RightToLeft || line == "" {
		return line
	}
	defer func() {
		if recover() != nil {
			out = line
		}
	}()

	var p bidi.Paragraph
	if _, err := p.SetString(line, bidi.DefaultDirection(bidi.RightToLeft)); err != nil {
		return line
	}
	order, err := p.Order()
	if err != nil {
		return line
	}

	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < order.NumRuns(); i++ {
		run := order.Run(i)
		if run.Direction() == bidi.RightToLeft {
			b.WriteString(bidi.ReverseString(run.String()))
		} else {
			b.WriteString(run.String())
		}
	}
	return b.String()
}
