// Package layout maps content variants to styled text blocks and plans their
// vertical placement on the canvas.
//
// Everything here is pure: the same variant, format and measurement function
// always produce the same [Plan]. Both the raster renderer and the HTML
// preview read sizes from the one style table so the two stay in step.
package layout

import (
	"fmt"
	"strings"
)

// Format is an output aspect ratio with fixed pixel dimensions.
type Format int

const (
	// Square is a 1:1 feed post.
	Square Format = iota
	// Vertical is a 9:16 story or reel.
	Vertical
)

// CanvasWidth is shared by both formats.
const CanvasWidth = 1080

// Formats lists every output format.
var Formats = []Format{Square, Vertical}

// Size returns the canvas dimensions in pixels.
func (f Format) Size() (width, height int) {
	if f == Vertical {
		return CanvasWidth, 1920
	}
	return CanvasWidth, 1080
}

func (f Format) String() string {
	if f == Vertical {
		return "vertical"
	}
	return "square"
}

// AspectRatio returns the ratio label shown in the UI.
func (f Format) AspectRatio() string {
	if f == Vertical {
		return "9:16"
	}
	return "1:1"
}

// ParseFormat accepts a format name, its ratio, or the tab names used for
// it ("post", "reel", "story").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square", "1:1", "post", "":
		return Square, nil
	case "vertical", "9:16", "reel", "story":
		return Vertical, nil
	default:
		return Square, fmt.Errorf("unknown format %q: must be square or vertical", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
