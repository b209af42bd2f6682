// Package fonts resolves the four font families used on a card and hands
// out sized faces.
//
// Each family resolves in order: a configured file, then (serif only) a
// Google Fonts download cached on disk, then a bundled Go font. Falling back
// to a bundled face is logged as a warning because the bundled faces carry
// no Arabic glyphs.
package fonts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	tdfont "github.com/tdewolff/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Family names a font role on the card.
type Family int

const (
	// Serif renders right-to-left scripts.
	Serif Family = iota
	Sans
	SansItalic
	SansBold
)

// Families lists every family in resolution order.
var Families = []Family{Serif, Sans, SansItalic, SansBold}

func (f Family) String() string {
	switch f {
	case Serif:
		return "serif"
	case Sans:
		return "sans"
	case SansItalic:
		return "sans-italic"
	case SansBold:
		return "sans-bold"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// builtin maps each family to its bundled fallback.
var builtin = map[Family]struct {
	name string
	data []byte
}{
	Serif:      {"goregular", goregular.TTF},
	Sans:       {"goregular", goregular.TTF},
	SansItalic: {"goitalic", goitalic.TTF},
	SansBold:   {"gobold", gobold.TTF},
}

// ///////////////////////////////////////////////
// Registry
// ///////////////////////////////////////////////

type faceKey struct {
	family Family
	size   float64
}

// Registry holds one parsed font per family and caches sized faces.
// Face lookups are safe for concurrent use; a returned face is shared and
// must only be drawn with by one goroutine at a time.
type Registry struct {
	fonts  map[Family]*opentype.Font
	origin map[Family]string

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// Options configures [Load].
type Options struct {
	// Files maps a family to a .ttf, .otf, .woff or .woff2 path.
	Files map[Family]string
	// SerifFallback is a "google:Family:Weight" spec used when no serif file
	// is configured.
	SerifFallback string
	// CacheDir holds downloaded Google Fonts.
	CacheDir string
	// HTTP fetches Google Fonts. Nil uses a default retrying client.
	HTTP   *retryablehttp.Client
	Logger *slog.Logger
}

// Load resolves every family. A configured file that cannot be read or
// parsed is an error; a failed download falls back to the bundled face.
func Load(ctx context.Context, opts Options) (*Registry, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := newRegistry()

	for _, fam := range Families {
		if path := opts.Files[fam]; path != "" {
			f, err := parseFile(path)
			if err != nil {
				return nil, fmt.Errorf("load %s font: %w", fam, err)
			}
			r.set(fam, f, "file:"+path)
			continue
		}

		if fam == Serif && opts.SerifFallback != "" {
			data, err := FetchGoogleFont(ctx, opts.HTTP, opts.SerifFallback, opts.CacheDir)
			if err == nil {
				f, perr := parse(data)
				if perr == nil {
					r.set(fam, f, opts.SerifFallback)
					continue
				}
				err = perr
			}
			log.Warn("serif font fallback unavailable, using bundled face",
				"spec", opts.SerifFallback, "error", err)
		} else if fam == Serif {
			log.Warn("no serif font configured, Arabic and Urdu text will render without glyphs")
		}

		if err := r.setBuiltin(fam); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Builtin returns a Registry backed only by the bundled Go fonts.
func Builtin() *Registry {
	r := newRegistry()
	for _, fam := range Families {
		if err := r.setBuiltin(fam); err != nil {
			panic(err)
		}
	}
	return r
}

func newRegistry() *Registry {
	return &Registry{
		fonts:  make(map[Family]*opentype.Font, len(Families)),
		origin: make(map[Family]string, len(Families)),
		faces:  make(map[faceKey]font.Face),
	}
}

func (r *Registry) set(fam Family, f *opentype.Font, origin string) {
	r.fonts[fam] = f
	r.origin[fam] = origin
}

func (r *Registry) setBuiltin(fam Family) error {
	b := builtin[fam]
	f, err := opentype.Parse(b.data)
	if err != nil {
		return fmt.Errorf("parse bundled %s font: %w", b.name, err)
	}
	r.set(fam, f, "builtin:"+b.name)
	return nil
}

// Origin describes where a family was loaded from, e.g. "builtin:goitalic".
func (r *Registry) Origin(fam Family) string {
	return r.origin[fam]
}

// Face returns the cached face for fam at size pixels.
func (r *Registry) Face(fam Family, size float64) (font.Face, error) {
	key := faceKey{fam, size}

	r.mu.Lock()
	defer r.mu.Unlock()
	if face, ok := r.faces[key]; ok {
		return face, nil
	}

	f, ok := r.fonts[fam]
	if !ok {
		return nil, fmt.Errorf("font family %s not loaded", fam)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s face at %.0fpx: %w", fam, size, err)
	}
	r.faces[key] = face
	return face, nil
}

// ///////////////////////////////////////////////
// Parsing
// ///////////////////////////////////////////////

func parseFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// parse accepts SFNT data directly and converts WOFF/WOFF2 first.
func parse(data []byte) (*opentype.Font, error) {
	if isWebFont(data) {
		sfnt, err := tdfont.ToSFNT(data)
		if err != nil {
			return nil, fmt.Errorf("convert web font to SFNT: %w", err)
		}
		data = sfnt
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

func isWebFont(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := string(data[:4])
	return magic == "wOF2" || magic == "wOFF"
}

// isWOFF2Name reports whether a URL or path names a WOFF2 file.
func isWOFF2Name(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".woff2")
}
