// Package assets loads background and branding images.
//
// A locator is an http(s) URL, a file:// URL, a data: URL or a filesystem
// path. Every failure is reported as a [*LoadError] whose Kind tells the
// caller whether retrying could help.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ///////////////////////////////////////////////
// Background
// ///////////////////////////////////////////////

// Kind is the media type of a background.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImage, KindVideo:
		return k, nil
	default:
		return "", fmt.Errorf("unknown background kind %q: must be image or video", s)
	}
}

// KindFromMIME classifies a MIME type: image/* is an image, anything else
// is treated as video.
func KindFromMIME(mimeType string) Kind {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return KindImage
	}
	return KindVideo
}

// videoTypes covers extensions the platform MIME table may lack.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".ogv":  "video/ogg",
}

// MIMEFromName guesses a MIME type from a file name or URL path.
func MIMEFromName(name string) string {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

// KindFromLocator guesses a background kind from its name. Locators
// without a recognizable extension are images.
func KindFromLocator(locator string) Kind {
	if m := MIMEFromName(locator); m != "" {
		return KindFromMIME(m)
	}
	return KindImage
}

// Background is the media drawn behind the text.
type Background struct {
	Locator string `json:"locator"`
	Kind    Kind   `json:"kind"`
}

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// FailureKind classifies a LoadError.
type FailureKind string

const (
	FailureNetwork   FailureKind = "network"
	FailureStatus    FailureKind = "status"
	FailureTooLarge  FailureKind = "too-large"
	FailureDecode    FailureKind = "decode"
	FailureNotFound  FailureKind = "not-found"
	FailureCancelled FailureKind = "cancelled"
)

// LoadError reports a background or logo that could not be loaded.
type LoadError struct {
	Locator string
	Kind    FailureKind
	// Status is the HTTP status for FailureStatus.
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	loc := e.Locator
	if strings.HasPrefix(loc, "data:") && len(loc) > 48 {
		loc = loc[:48] + "..."
	}
	if e.Kind == FailureStatus {
		return fmt.Sprintf("load asset %s: HTTP %d", loc, e.Status)
	}
	if e.Err == nil {
		return fmt.Sprintf("load asset %s: %s", loc, e.Kind)
	}
	return fmt.Sprintf("load asset %s: %s: %v", loc, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ///////////////////////////////////////////////
// Loader
// ///////////////////////////////////////////////

// Loader fetches and decodes an image.
type Loader interface {
	Load(ctx context.Context, locator string) (image.Image, error)
}

// Options configures [NewLoader].
type Options struct {
	Timeout  time.Duration
	RetryMax int
	// MaxBytes caps a single asset. Zero means 25 MiB.
	MaxBytes int64
	// MaxPixels caps the decoded width*height. Zero means 40 megapixels.
	MaxPixels int64
	// BaseDir resolves relative file paths.
	BaseDir string
	Logger  *slog.Logger
}

// HTTPLoader is the default Loader.
type HTTPLoader struct {
	client    *retryablehttp.Client
	maxBytes  int64
	maxPixels int64
	baseDir   string
	log       *slog.Logger
}

// NewLoader creates an HTTPLoader.
func NewLoader(opts Options) *HTTPLoader {
	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.RetryMax
	hc.Logger = nil
	if opts.Timeout > 0 {
		hc.HTTPClient.Timeout = opts.Timeout
	}
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = 40_000_000
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HTTPLoader{client: hc, maxBytes: maxBytes, maxPixels: maxPixels, baseDir: opts.BaseDir, log: log}
}

// Load reads and decodes the image at locator.
func (l *HTTPLoader) Load(ctx context.Context, locator string) (image.Image, error) {
	data, err := l.read(ctx, locator)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &LoadError{Locator: locator, Kind: FailureCancelled, Err: ctx.Err()}
		}
		return nil, err
	}

	// dimensions come from the header, before the decoded image is allocated
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureDecode, Err: err}
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > l.maxPixels {
		return nil, &LoadError{Locator: locator, Kind: FailureTooLarge,
			Err: fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, l.maxPixels)}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureDecode, Err: err}
	}
	l.log.Debug("asset loaded", "locator", shortLocator(locator), "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

func (l *HTTPLoader) read(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(locator, "data:"):
		return l.readData(locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return l.readHTTP(ctx, locator)
	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, &LoadError{Locator: locator, Kind: FailureNotFound, Err: err}
		}
		return l.readFile(locator, filepath.FromSlash(u.Path))
	case locator == "":
		return nil, &LoadError{Locator: locator, Kind: FailureNotFound, Err: errors.New("empty locator")}
	default:
		return l.readFile(locator, l.resolve(locator))
	}
}

func (l *HTTPLoader) resolve(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) || l.baseDir == "" {
		return p
	}
	return filepath.Join(l.baseDir, p)
}

func (l *HTTPLoader) readHTTP(ctx context.Context, locator string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureNetwork, Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Locator: locator, Kind: FailureStatus, Status: resp.StatusCode}
	}
	if resp.ContentLength > l.maxBytes {
		return nil, l.tooLarge(locator)
	}
	return l.limitedRead(locator, resp.Body)
}

func (l *HTTPLoader) readFile(locator, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureNotFound, Err: err}
	}
	defer f.Close()
	return l.limitedRead(locator, f)
}

func (l *HTTPLoader) limitedRead(locator string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureNetwork, Err: err}
	}
	if int64(len(data)) > l.maxBytes {
		return nil, l.tooLarge(locator)
	}
	return data, nil
}

func (l *HTTPLoader) tooLarge(locator string) error {
	return &LoadError{Locator: locator, Kind: FailureTooLarge, Err: fmt.Errorf("exceeds %d bytes", l.maxBytes)}
}

// readData decodes "data:[<mediatype>][;base64],<payload>".
func (l *HTTPLoader) readData(locator string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(locator, "data:"), ",")
	if !ok {
		return nil, &LoadError{Locator: locator, Kind: FailureDecode, Err: errors.New("malformed data URL")}
	}
	if int64(len(payload)) > l.maxBytes*4/3+4 {
		return nil, l.tooLarge(locator)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, &LoadError{Locator: locator, Kind: FailureDecode, Err: err}
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, &LoadError{Locator: locator, Kind: FailureDecode, Err: err}
	}
	return []byte(s), nil
}

// shortLocator trims data URLs for logging.
func shortLocator(loc string) string {
	if strings.HasPrefix(loc, "data:") && len(loc) > 32 {
		return loc[:32] + "..."
	}
	return loc
}
