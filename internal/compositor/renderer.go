// Package compositor paints a card: background, dimming overlay, the text
// stack from the layout plan and the branding mark.
//
// A [Renderer] is stateless between calls. A [Session] owns the logo load
// and guards against overlapping exports.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/fonts"
	"tools.zach/dev/wisdomcard/internal/layout"
	"tools.zach/dev/wisdomcard/internal/logger"
	"tools.zach/dev/wisdomcard/internal/textmetrics"
)

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// AssetLoadError reports a background or logo that failed to load.
type AssetLoadError = assets.LoadError

var (
	// ErrNoBackgroundSelected is returned when an export has no background.
	ErrNoBackgroundSelected = errors.New("no background selected")
	// ErrExportInProgress is returned while another export of the same
	// session is still running.
	ErrExportInProgress = errors.New("an export is already in progress")
	// ErrSessionClosed is returned after Close.
	ErrSessionClosed = errors.New("compositor session closed")
)

// ///////////////////////////////////////////////
// Renderer
// ///////////////////////////////////////////////

// Request is one render.
type Request struct {
	Content    content.Variant
	Background *assets.Background
	Format     layout.Format
	// Logo is drawn in the top-right corner when non-nil.
	Logo image.Image
}

// Renderer paints cards. Painting is serialized because font faces are
// shared between renders.
type Renderer struct {
	fonts  *fonts.Registry
	loader assets.Loader
	log    *slog.Logger

	// OnStage, when set, is called on every stage transition.
	OnStage func(Stage)

	mu sync.Mutex
}

// NewRenderer creates a Renderer.
func NewRenderer(reg *fonts.Registry, loader assets.Loader, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{fonts: reg, loader: loader, log: log}
}

// Fonts returns the font registry the renderer paints with.
func (r *Renderer) Fonts() *fonts.Registry { return r.fonts }

func (r *Renderer) enter(s Stage) {
	logger.Trace(r.log, "render stage", "stage", s)
	if r.OnStage != nil {
		r.OnStage(s)
	}
}

// Render paints req onto a new canvas sized for req.Format.
//
// An image background is fully loaded before any pixel is painted; if it
// fails to load no canvas is produced. A video background is never
// sampled: the result is the text layer on a transparent canvas.
func (r *Renderer) Render(ctx context.Context, req Request) (*image.RGBA, error) {
	r.enter(StageIdle)
	if req.Background == nil || req.Background.Locator == "" {
		return nil, ErrNoBackgroundSelected
	}
	if req.Content == nil {
		return nil, errors.New("render: no content")
	}

	var bg image.Image
	if req.Background.Kind != assets.KindVideo {
		r.enter(StageLoadingBackground)
		img, err := r.loader.Load(ctx, req.Background.Locator)
		if err != nil {
			r.enter(StageFailed)
			return nil, err
		}
		bg = img
	}

	r.enter(StagePainting)
	canvas, err := r.paint(req, bg)
	if err != nil {
		r.enter(StageFailed)
		return nil, err
	}
	r.enter(StageDone)
	return canvas, nil
}

func (r *Renderer) paint(req Request, bg image.Image) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, h := req.Format.Size()
	dc := gg.NewContext(w, h)
	canvas := dc.Image().(*image.RGBA)

	if bg != nil {
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), bg, bg.Bounds(), xdraw.Src, nil)
		dc.SetRGBA(0, 0, 0, layout.OverlayAlpha)
		dc.DrawRectangle(0, 0, float64(w), float64(h))
		dc.Fill()
	}

	plan, err := r.plan(req.Content, req.Format)
	if err != nil {
		return nil, err
	}
	if plan.Overflows() {
		r.log.Warn("text overflows card", "format", req.Format,
			"stack_height", plan.TotalHeight, "available", plan.AvailableHeight)
	}

	for _, p := range plan.Placements {
		st := p.Block.Style
		face, err := r.fonts.Face(st.Family, st.Size)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		dc.SetRGBA(1, 1, 1, st.Opacity)
		textmetrics.WrapAndDraw(dc, p.Block.Text, plan.Width/2, p.Y, plan.ContentWidth, st.LinePixels(), st.Direction)
	}

	if req.Logo != nil {
		drawLogo(canvas, req.Logo)
	}
	return canvas, nil
}

// Plan lays out v for f with the renderer's fonts without painting.
func (r *Renderer) Plan(v content.Variant, f layout.Format) (layout.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plan(v, f)
}

func (r *Renderer) plan(v content.Variant, f layout.Format) (layout.Plan, error) {
	var faceErr error
	measure := func(b layout.Block, maxWidth float64) float64 {
		face, err := r.fonts.Face(b.Style.Family, b.Style.Size)
		if err != nil {
			faceErr = err
			return 0
		}
		return textmetrics.MeasureWrappedHeight(face, b.Text, maxWidth, b.Style.LinePixels())
	}
	plan := layout.Build(f, layout.Blocks(v, f), measure)
	if faceErr != nil {
		return layout.Plan{}, fmt.Errorf("measure text: %w", faceErr)
	}
	return plan, nil
}

// drawLogo scales logo to the branding width, keeping its aspect ratio, and
// blends it into the top-right corner at reduced opacity.
func drawLogo(canvas *image.RGBA, logo image.Image) {
	cw := canvas.Bounds().Dx()
	src := logo.Bounds()
	if src.Empty() {
		return
	}
	lw := int(float64(cw) * layout.LogoWidthFraction)
	lh := lw * src.Dy() / src.Dx()
	pad := int(float64(cw) * layout.LogoPaddingFraction)

	scaled := image.NewRGBA(image.Rect(0, 0, lw, lh))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, src, xdraw.Src, nil)

	dst := image.Rect(cw-pad-lw, pad, cw-pad, pad+lh)
	mask := image.NewUniform(color.Alpha{A: uint8(layout.LogoOpacity*255 + 0.5)})
	draw.DrawMask(canvas, dst, scaled, image.Point{}, mask, image.Point{}, draw.Over)
}
