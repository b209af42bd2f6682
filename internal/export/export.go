// Package export turns a rendered card into a PNG file.
package export

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"

	"tools.zach/dev/wisdomcard/internal/atomicfile"
	"tools.zach/dev/wisdomcard/internal/content"
)

const (
	filePrefix    = "islamic_wisdom_"
	overlaySuffix = "_overlay"
	extension     = ".png"

	// verseSlug is used for every verse; verse citations repeat too often
	// to tell files apart.
	verseSlug = "quran_verse"
)

// EncodingError reports a canvas that could not be serialized.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode png: %v (if the background came from another host, that host must allow cross-origin access to it)", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// unsafeChars are replaced by underscores in file names.
var unsafeChars = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// Slug returns the distinguishing part of a file name for v.
func Slug(v content.Variant) string {
	v = content.Normalize(v)
	if v == nil {
		return "card"
	}
	var s string
	switch v := v.(type) {
	case content.ScriptureVerse:
		s = verseSlug
	case content.Saying:
		s = v.Citation
	case content.Narrative:
		s = v.Heading
	}
	s = unsafeChars.Replace(strings.TrimSpace(s))
	if s == "" {
		s = string(v.Kind())
	}
	return s
}

// Filename returns islamic_wisdom_<slug>.png, or islamic_wisdom_<slug>_overlay.png
// when the file only carries the text layer of a video card.
func Filename(v content.Variant, overlay bool) string {
	name := filePrefix + Slug(v)
	if overlay {
		name += overlaySuffix
	}
	return name + extension
}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return &EncodingError{Err: errors.New("empty canvas")}
	}
	var dc *gg.Context
	if rgba, ok := img.(*image.RGBA); ok {
		dc = gg.NewContextForRGBA(rgba)
	} else {
		dc = gg.NewContextForImage(img)
	}
	if err := dc.EncodePNG(w); err != nil {
		return &EncodingError{Err: err}
	}
	return nil
}

// Save writes encoded card data to path atomically, creating the parent
// directory first.
func Save(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
