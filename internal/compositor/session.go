package compositor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/export"
	"tools.zach/dev/wisdomcard/internal/layout"
	"tools.zach/dev/wisdomcard/internal/paths"
)

// ExportRequest selects what to export.
type ExportRequest struct {
	Content    content.Variant
	Background *assets.Background
	Format     layout.Format
}

// Export is an encoded card ready to be downloaded or saved.
type Export struct {
	Filename string
	Data     []byte
	// Overlay is true for video backgrounds: Data holds only the text layer.
	Overlay bool
}

// Session is one compositor lifetime: the logo is loaded once when it
// opens and shared read-only by every export until Close. At most one
// export runs at a time.
type Session struct {
	r   *Renderer
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	logo   *assets.Future

	busy       atomic.Bool
	logoWarned atomic.Bool

	mu     sync.Mutex
	canvas *image.RGBA
}

// NewSession opens a session and starts loading the logo. logo is an
// asset locator, paths.LogoBuiltin for the bundled mark, or empty for no
// branding.
func NewSession(ctx context.Context, r *Renderer, logo string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{r: r, log: r.log, ctx: ctx, cancel: cancel}

	switch logo {
	case "":
		s.logo = assets.Resolved(nil)
	case paths.LogoBuiltin:
		img, err := BuiltinMark(r.fonts)
		if err != nil {
			r.log.Warn("builtin logo unavailable", "error", err)
		}
		s.logo = assets.Resolved(img)
	default:
		s.logo = assets.Go(ctx, r.loader, logo)
	}
	return s
}

// AwaitLogo blocks until the logo load has finished or ctx ends. A failed
// logo load is not an error for the session; exports go ahead without it.
func (s *Session) AwaitLogo(ctx context.Context) error {
	select {
	case <-s.logo.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logoImage returns the logo if it has finished loading.
func (s *Session) logoImage() image.Image {
	img, ok, err := s.logo.Ready()
	if !ok {
		s.log.Debug("logo still loading, exporting without it")
		return nil
	}
	if err != nil {
		if s.logoWarned.CompareAndSwap(false, true) {
			s.log.Warn("logo failed to load", "error", err)
		}
		return nil
	}
	return img
}

// Logo returns the loaded logo, or nil while it is loading, after it
// failed, or when branding is off.
func (s *Session) Logo() image.Image {
	img, ok, err := s.logo.Ready()
	if !ok || err != nil {
		return nil
	}
	return img
}

// Export renders and encodes req. The returned error is one of
// ErrNoBackgroundSelected, ErrExportInProgress, ErrSessionClosed, an
// *AssetLoadError or an *export.EncodingError. A failed export leaves the
// session ready for another attempt and the last canvas untouched.
func (s *Session) Export(ctx context.Context, req ExportRequest) (*Export, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	if req.Background == nil || req.Background.Locator == "" {
		s.log.Warn("export blocked", "reason", ErrNoBackgroundSelected)
		return nil, ErrNoBackgroundSelected
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrExportInProgress
	}
	defer s.busy.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	canvas, err := s.r.Render(ctx, Request{
		Content:    req.Content,
		Background: req.Background,
		Format:     req.Format,
		Logo:       s.logoImage(),
	})
	if err != nil {
		if s.ctx.Err() != nil {
			return nil, ErrSessionClosed
		}
		var le *AssetLoadError
		if errors.As(err, &le) {
			s.log.Error("background failed to load", "locator", req.Background.Locator,
				"kind", le.Kind, "status", le.Status, "error", le.Err)
		}
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, canvas); err != nil {
		s.log.Error("export encoding failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.canvas = canvas
	s.mu.Unlock()

	overlay := req.Background.Kind == assets.KindVideo
	out := &Export{
		Filename: export.Filename(req.Content, overlay),
		Data:     buf.Bytes(),
		Overlay:  overlay,
	}
	s.log.Info("card exported", "file", out.Filename, "format", req.Format,
		"overlay", overlay, "bytes", len(out.Data))
	return out, nil
}

// Canvas returns the canvas of the last successful export, or nil.
func (s *Session) Canvas() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas
}

// Busy reports whether an export is running.
func (s *Session) Busy() bool { return s.busy.Load() }

// Close ends the session. Pending loads are abandoned and their results
// discarded; later exports fail with ErrSessionClosed.
func (s *Session) Close() {
	s.cancel()
}
