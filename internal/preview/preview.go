// Package preview renders an HTML approximation of a card for live
// feedback. It shares the block list and style table with the raster
// renderer, sized in container-width units so the page tracks the card at
// any on-screen size. Line breaks are left to the browser; the exported
// PNG is laid out precisely at export time.
package preview

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/fonts"
	"tools.zach/dev/wisdomcard/internal/layout"
	"tools.zach/dev/wisdomcard/internal/textmetrics"
)

// DefaultEventsURL receives autoplay beacons from the page.
const DefaultEventsURL = "/api/preview/events"

//go:embed page.html.tmpl
var pageSource string

var page = template.Must(template.New("preview").Parse(pageSource))

// Document is what a preview page shows.
type Document struct {
	Content    content.Variant
	Background *assets.Background
	Format     layout.Format
	// Logo is a URL for the branding mark. Empty hides it.
	Logo string
	// EventsURL overrides DefaultEventsURL.
	EventsURL string
}

type blockView struct {
	Role string
	Text string
	Dir  string
	CSS  template.CSS
}

type pageView struct {
	Title            string
	Format           string
	AspectW, AspectH int
	Background       *assets.Background
	Video            bool
	Shade            template.CSS
	StackCSS         template.CSS
	LogoCSS          template.CSS
	Blocks           []blockView
	Logo             string
	EventsURL        string
}

// cqw converts canvas pixels to container-width units.
func cqw(px float64) string {
	return fmt.Sprintf("%.3fcqw", px/layout.CanvasWidth*100)
}

func familyCSS(f fonts.Family) string {
	switch f {
	case fonts.Serif:
		return "font-family: 'Noto Naskh Arabic', 'Amiri', serif;"
	case fonts.SansItalic:
		return "font-family: 'Lato', system-ui, sans-serif; font-style: italic;"
	case fonts.SansBold:
		return "font-family: 'Lato', system-ui, sans-serif; font-weight: 700;"
	default:
		return "font-family: 'Lato', system-ui, sans-serif;"
	}
}

func view(doc Document) pageView {
	w, h := doc.Format.Size()
	v := pageView{
		Title:      "Preview",
		Format:     doc.Format.String(),
		AspectW:    w,
		AspectH:    h,
		Background: doc.Background,
		Logo:       doc.Logo,
		EventsURL:  doc.EventsURL,
		Shade:      template.CSS(fmt.Sprintf("rgba(0, 0, 0, %.2f)", layout.OverlayAlpha)),
	}
	if v.EventsURL == "" {
		v.EventsURL = DefaultEventsURL
	}
	if v.Background != nil && v.Background.Locator == "" {
		v.Background = nil
	}
	v.Video = v.Background != nil && v.Background.Kind == assets.KindVideo
	if doc.Content != nil {
		v.Title = content.Title(doc.Content)
	}

	pad := layout.CanvasWidth * layout.PaddingFraction
	var blocks []layout.Block
	if doc.Content != nil {
		blocks = layout.Blocks(doc.Content, doc.Format)
	}
	gap := layout.Spacing(doc.Format, blocks)
	v.StackCSS = template.CSS(fmt.Sprintf("padding: %s %s %s; gap: %s;",
		cqw(pad*layout.TopPaddingFactor), cqw(pad), cqw(pad), cqw(gap)))

	for _, b := range blocks {
		st := b.Style
		dir := "ltr"
		if st.Direction == textmetrics.RightToLeft {
			dir = "rtl"
		}
		css := fmt.Sprintf("%s font-size: %s; line-height: %g; opacity: %g;",
			familyCSS(st.Family), cqw(st.Size), st.LineHeight, st.Opacity)
		v.Blocks = append(v.Blocks, blockView{Role: b.Role.String(), Text: b.Text, Dir: dir, CSS: template.CSS(css)})
	}

	logoPad := cqw(layout.CanvasWidth * layout.LogoPaddingFraction)
	v.LogoCSS = template.CSS(fmt.Sprintf("top: %s; right: %s; width: %s; opacity: %g;",
		logoPad, logoPad, cqw(layout.CanvasWidth*layout.LogoWidthFraction), layout.LogoOpacity))
	return v
}

// Render writes the preview page for doc.
func Render(w io.Writer, doc Document) error {
	if err := page.Execute(w, view(doc)); err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Page Events
// ///////////////////////////////////////////////

// Event is a beacon posted by the preview page.
type Event struct {
	Event   string `json:"event"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// EventAutoplayRejected is sent when the browser refuses to start the
// background video. The page keeps working with the poster frame.
const EventAutoplayRejected = "autoplay-rejected"

// LogEvent records a page event. Autoplay rejections are warnings, never
// errors: the preview degrades to a still frame.
func LogEvent(log *slog.Logger, ev Event) {
	attrs := []any{"event", ev.Event, "source", ev.Source, "message", strings.TrimSpace(ev.Message)}
	switch ev.Event {
	case EventAutoplayRejected:
		log.Warn("preview video autoplay rejected", attrs...)
	default:
		log.Debug("preview event", attrs...)
	}
}
