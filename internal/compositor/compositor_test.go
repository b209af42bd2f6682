// Package compositor tests cover the export scenarios end to end: image
// and video backgrounds, missing and failing backgrounds, overlapping
// exports, session close and byte-for-byte determinism.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/fonts"
	"tools.zach/dev/wisdomcard/internal/layout"
	"tools.zach/dev/wisdomcard/internal/logger"
	"tools.zach/dev/wisdomcard/internal/paths"
)

var (
	verse = content.ScriptureVerse{
		PrimaryScript:        "بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ",
		Translation:          "In the name of Allah",
		SecondaryTranslation: "اللہ کے نام سے",
		Citation:             "Quran 1:1",
	}
	saying = content.Saying{
		Translation:          "Actions are judged by intentions",
		SecondaryTranslation: "اعمال کا دارومدار نیتوں پر ہے",
		Attribution:          "Umar",
		Citation:             "Bukhari 1",
	}
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// mapLoader serves images from memory and reports 404 for anything else.
type mapLoader struct {
	mu     sync.Mutex
	images map[string]image.Image
	calls  []string
}

func (m *mapLoader) Load(_ context.Context, locator string) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, locator)
	if img, ok := m.images[locator]; ok {
		return img, nil
	}
	return nil, &assets.LoadError{Locator: locator, Kind: assets.FailureStatus, Status: http.StatusNotFound}
}

func (m *mapLoader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// gateLoader blocks until released or cancelled.
type gateLoader struct {
	entered chan struct{}
	release chan struct{}
	img     image.Image
}

func newGateLoader() *gateLoader {
	return &gateLoader{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		img:     solid(4, 4, color.White),
	}
}

func (g *gateLoader) Load(ctx context.Context, locator string) (image.Image, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return g.img, nil
	case <-ctx.Done():
		return nil, &assets.LoadError{Locator: locator, Kind: assets.FailureCancelled, Err: ctx.Err()}
	}
}

const bgURL = "https://backgrounds.test/sky.jpg"

func newTestSession(t *testing.T, loader assets.Loader, logo string) (*Session, *Renderer) {
	t.Helper()
	r := NewRenderer(fonts.Builtin(), loader, logger.Discard())
	s := NewSession(context.Background(), r, logo)
	t.Cleanup(s.Close)
	return s, r
}

func imageBackground(loc string) *assets.Background {
	return &assets.Background{Locator: loc, Kind: assets.KindImage}
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	return img
}

// ///////////////////////////////////////////////
// Scenarios
// ///////////////////////////////////////////////

func TestExportVerseOnImage(t *testing.T) {
	loader := &mapLoader{images: map[string]image.Image{bgURL: solid(64, 48, color.RGBA{R: 200, G: 100, B: 50, A: 255})}}
	s, r := newTestSession(t, loader, "")

	var stages []Stage
	r.OnStage = func(st Stage) { stages = append(stages, st) }

	out, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(bgURL), Format: layout.Square})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(out.Filename, "quran_verse") || out.Overlay {
		t.Errorf("filename = %q overlay = %v", out.Filename, out.Overlay)
	}

	want := []Stage{StageIdle, StageLoadingBackground, StagePainting, StageDone}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}

	plan, err := r.Plan(verse, layout.Square)
	if err != nil {
		t.Fatal(err)
	}
	var got []layout.Role
	for _, p := range plan.Placements {
		got = append(got, p.Block.Role)
	}
	wantRoles := []layout.Role{layout.RolePrimaryScript, layout.RoleTranslation, layout.RoleSecondaryTranslation, layout.RoleCitation}
	if !slices.Equal(got, wantRoles) {
		t.Errorf("roles = %v, want %v", got, wantRoles)
	}

	img := decode(t, out.Data)
	if img.Bounds().Dx() != 1080 || img.Bounds().Dy() != 1080 {
		t.Errorf("size = %v", img.Bounds())
	}
	// the corner is background under the 0.45 overlay: 200*0.55 = 110
	r8, g8, _, a8 := img.At(1, 1079).RGBA()
	if a8>>8 != 255 || r8>>8 < 105 || r8>>8 > 115 || g8>>8 < 50 || g8>>8 > 60 {
		t.Errorf("corner = %d,%d alpha %d, want dimmed background", r8>>8, g8>>8, a8>>8)
	}
}

func TestExportWithoutBackgroundIsBlocked(t *testing.T) {
	loader := &mapLoader{}
	s, _ := newTestSession(t, loader, "")

	for _, bg := range []*assets.Background{nil, {Kind: assets.KindImage}} {
		out, err := s.Export(context.Background(), ExportRequest{Content: saying, Background: bg, Format: layout.Square})
		if !errors.Is(err, ErrNoBackgroundSelected) || out != nil {
			t.Errorf("Export(%v) = %v, %v; want ErrNoBackgroundSelected", bg, out, err)
		}
	}
	if s.Canvas() != nil || s.Busy() || loader.callCount() != 0 {
		t.Error("blocked export touched the canvas or loader")
	}
}

func TestExportVideoIsTransparentOverlay(t *testing.T) {
	loader := &mapLoader{}
	s, _ := newTestSession(t, loader, paths.LogoBuiltin)
	if err := s.AwaitLogo(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := s.Export(context.Background(), ExportRequest{
		Content:    saying,
		Background: &assets.Background{Locator: "https://videos.test/clip.mp4", Kind: assets.KindVideo},
		Format:     layout.Vertical,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !out.Overlay || !strings.HasSuffix(out.Filename, "_overlay.png") {
		t.Errorf("filename = %q overlay = %v", out.Filename, out.Overlay)
	}
	if loader.callCount() != 0 {
		t.Error("video background was fetched")
	}

	img := decode(t, out.Data)
	if img.Bounds().Dx() != 1080 || img.Bounds().Dy() != 1920 {
		t.Fatalf("size = %v", img.Bounds())
	}
	if _, _, _, a := img.At(0, 1919).RGBA(); a != 0 {
		t.Errorf("corner alpha = %d, want transparent", a)
	}
	// logo center: x = 1080 - 54 - 108, y = 54 + 108
	if _, _, _, a := img.At(918, 162).RGBA(); a == 0 {
		t.Error("logo not drawn")
	}
	painted := 0
	for y := 700; y < 1300; y += 2 {
		for x := 100; x < 980; x += 2 {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				painted++
			}
		}
	}
	if painted == 0 {
		t.Error("no text painted in the middle of the card")
	}
}

func TestExportBackground404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	good := solid(8, 8, color.Black)
	loader := &mapLoader{images: map[string]image.Image{bgURL: good}}
	s, _ := newTestSession(t, loader, "")

	if _, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(bgURL), Format: layout.Square}); err != nil {
		t.Fatal(err)
	}
	before := s.Canvas()

	// swap in a real HTTP loader for the failing attempt
	s.r.loader = assets.NewLoader(assets.Options{Timeout: 5 * time.Second})
	_, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(srv.URL + "/missing.jpg"), Format: layout.Square})
	var le *AssetLoadError
	if !errors.As(err, &le) || le.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want AssetLoadError 404", err)
	}
	if s.Canvas() != before {
		t.Error("failed export replaced the canvas")
	}
	if s.Busy() {
		t.Error("session still busy after failure")
	}

	s.r.loader = loader
	if _, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(bgURL), Format: layout.Square}); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

// ///////////////////////////////////////////////
// Session behaviour
// ///////////////////////////////////////////////

func TestExportIsDeterministic(t *testing.T) {
	loader := &mapLoader{images: map[string]image.Image{bgURL: solid(32, 32, color.RGBA{G: 90, B: 120, A: 255})}}
	s, _ := newTestSession(t, loader, paths.LogoBuiltin)

	req := ExportRequest{Content: saying, Background: imageBackground(bgURL), Format: layout.Vertical}
	a, err := s.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if a.Filename != b.Filename || !bytes.Equal(a.Data, b.Data) {
		t.Error("identical exports differ")
	}
}

func TestOverlappingExportIsRejected(t *testing.T) {
	gate := newGateLoader()
	s, _ := newTestSession(t, gate, "")
	req := ExportRequest{Content: verse, Background: imageBackground(bgURL), Format: layout.Square}

	done := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background(), req)
		done <- err
	}()
	<-gate.entered

	if _, err := s.Export(context.Background(), req); !errors.Is(err, ErrExportInProgress) {
		t.Errorf("second export: %v, want ErrExportInProgress", err)
	}
	close(gate.release)
	if err := <-done; err != nil {
		t.Errorf("first export: %v", err)
	}
	if s.Busy() {
		t.Error("still busy")
	}
}

func TestCloseDuringLoad(t *testing.T) {
	gate := newGateLoader()
	s, _ := newTestSession(t, gate, "")

	done := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(bgURL), Format: layout.Square})
		done <- err
	}()
	<-gate.entered
	s.Close()

	if err := <-done; !errors.Is(err, ErrSessionClosed) {
		t.Errorf("export after close: %v, want ErrSessionClosed", err)
	}
	if s.Canvas() != nil {
		t.Error("canvas set after close")
	}
	if _, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(bgURL)}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("later export: %v", err)
	}
}

func TestFailedLogoDoesNotBlockExport(t *testing.T) {
	loader := &mapLoader{images: map[string]image.Image{bgURL: solid(8, 8, color.Black)}}
	s, _ := newTestSession(t, loader, "https://logos.test/missing.png")
	if err := s.AwaitLogo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Export(context.Background(), ExportRequest{Content: verse, Background: imageBackground(bgURL), Format: layout.Square}); err != nil {
		t.Errorf("Export: %v", err)
	}
}

func TestLogoIsDrawnOverText(t *testing.T) {
	loader := &mapLoader{}
	video := &assets.Background{Locator: "clip.mp4", Kind: assets.KindVideo}

	plain, _ := newTestSession(t, loader, "")
	branded, _ := newTestSession(t, loader, paths.LogoBuiltin)

	req := ExportRequest{Content: content.Narrative{Heading: "Patience", Body: "A short story."}, Background: video, Format: layout.Square}
	if _, err := plain.Export(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := branded.Export(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := plain.Canvas().At(918, 162).RGBA(); a != 0 {
		t.Errorf("unbranded alpha = %d at logo position", a)
	}
	_, _, _, a := branded.Canvas().At(918, 162).RGBA()
	// 0.9 opacity over transparency
	if a>>8 < 220 || a>>8 > 235 {
		t.Errorf("branded alpha = %d, want about 230", a>>8)
	}
}

// ///////////////////////////////////////////////
// Mark
// ///////////////////////////////////////////////

func TestBuiltinMark(t *testing.T) {
	img, err := BuiltinMark(fonts.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != markSize || img.Bounds().Dy() != markSize {
		t.Errorf("size = %v", img.Bounds())
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("corner outside the disc is painted")
	}
	if _, _, _, a := img.At(markSize/2, 20).RGBA(); a>>8 != 255 {
		t.Error("disc not opaque")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#0F5132", color.NRGBA{0x0f, 0x51, 0x32, 0xff}, false},
		{"ffffff", color.NRGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"#fff", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, %v", tt.in, got, err)
		}
	}
}
