package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/compositor"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/export"
	"tools.zach/dev/wisdomcard/internal/layout"
	"tools.zach/dev/wisdomcard/internal/library"
	"tools.zach/dev/wisdomcard/internal/preview"
	"tools.zach/dev/wisdomcard/internal/store"
)

const (
	mediaPrefix = "/media"
	maxUploadMB = 64
)

// ///////////////////////////////////////////////
// Card Requests
// ///////////////////////////////////////////////

// backgroundRequest names a background by locator or by built-in id.
type backgroundRequest struct {
	ID      string      `json:"id"`
	Locator string      `json:"locator"`
	Kind    assets.Kind `json:"kind"`
}

// cardRequest is the body of the preview and export endpoints.
type cardRequest struct {
	Content    content.Envelope   `json:"content"`
	Background *backgroundRequest `json:"background"`
	Format     layout.Format      `json:"format"`
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

// background resolves the request's background. Nil means none selected.
// Upload URLs are mapped back to files on disk.
func (s *Server) background(b *backgroundRequest) (*assets.Background, error) {
	if b == nil {
		return nil, nil
	}
	if b.ID != "" {
		lib, ok := library.Lookup(b.ID)
		if !ok {
			return nil, badRequest{fmt.Errorf("unknown background %q", b.ID)}
		}
		bg := lib.Asset()
		return &bg, nil
	}
	if b.Locator == "" {
		return nil, nil
	}
	if !remoteLocator(b.Locator) {
		return nil, badRequest{fmt.Errorf("background locator %q: must be an http(s) URL, a data: URL or an uploaded %s/ file", shorten(b.Locator), mediaPrefix)}
	}
	kind := assets.KindFromLocator(b.Locator)
	if b.Kind != "" {
		k, err := assets.ParseKind(string(b.Kind))
		if err != nil {
			return nil, badRequest{err}
		}
		kind = k
	}
	return &assets.Background{Locator: b.Locator, Kind: kind}, nil
}

// remoteLocator reports whether loc may come from an API client. Local
// paths and file:// URLs are refused so a request can only reach files in
// the uploads directory, through /media/.
func remoteLocator(loc string) bool {
	for _, p := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(loc, p) {
			return true
		}
	}
	if !strings.HasPrefix(loc, mediaPrefix+"/") {
		return false
	}
	name := strings.TrimPrefix(loc, mediaPrefix+"/")
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func shorten(loc string) string {
	if len(loc) > 64 {
		return loc[:64] + "..."
	}
	return loc
}

// localLocator turns a /media/ URL into the uploaded file's path.
func (s *Server) localLocator(loc string) string {
	if s.store == nil || !strings.HasPrefix(loc, mediaPrefix+"/") {
		return loc
	}
	name := path.Base(loc)
	return filepath.Join(s.store.UploadsDir(), name)
}

func (s *Server) cardRequest(c *gin.Context) (cardRequest, *assets.Background, error) {
	var req cardRequest
	if err := bindJSON(c, &req); err != nil {
		return req, nil, err
	}
	if req.Content.Variant == nil {
		return req, nil, badRequest{errors.New("missing content")}
	}
	bg, err := s.background(req.Background)
	return req, bg, err
}

func (s *Server) export(c *gin.Context) {
	req, bg, err := s.cardRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if bg != nil {
		local := *bg
		local.Locator = s.localLocator(bg.Locator)
		bg = &local
	}

	out, err := s.session.Export(c.Request.Context(), compositor.ExportRequest{
		Content:    req.Content.Variant,
		Background: bg,
		Format:     req.Format,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Header("X-Wisdomcard-Overlay", strconv.FormatBool(out.Overlay))
	c.Data(http.StatusOK, "image/png", out.Data)
}

func (s *Server) preview(c *gin.Context) {
	req, bg, err := s.cardRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := preview.Render(c.Writer, preview.Document{
		Content:    req.Content.Variant,
		Background: bg,
		Format:     req.Format,
		Logo:       "/api/logo",
	}); err != nil {
		s.log.Error("preview render failed", "error", err)
	}
}

func (s *Server) previewEvent(c *gin.Context) {
	// beacons arrive as text/plain
	var ev preview.Event
	if err := c.ShouldBindBodyWithJSON(&ev); err != nil {
		s.respondError(c, badRequest{err})
		return
	}
	preview.LogEvent(s.log, ev)
	c.Status(http.StatusNoContent)
}

func (s *Server) logo(c *gin.Context) {
	if err := s.session.AwaitLogo(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	img := s.session.Logo()
	if img == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "max-age=3600")
	if err := export.Encode(c.Writer, img); err != nil {
		s.log.Error("logo encode failed", "error", err)
	}
}

func (s *Server) listBackgrounds(c *gin.Context) {
	f, err := layout.ParseFormat(c.Query("format"))
	if err != nil {
		s.respondError(c, badRequest{err})
		return
	}
	resp := gin.H{"builtin": library.ForFormat(f), "uploads": []store.Upload{}}
	if s.store != nil {
		all, err := s.store.ListUploads(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		want := assets.KindImage
		if f == layout.Vertical {
			want = assets.KindVideo
		}
		uploads := make([]store.Upload, 0, len(all))
		for _, u := range all {
			if u.Type == want {
				uploads = append(uploads, u)
			}
		}
		resp["uploads"] = uploads
	}
	c.JSON(http.StatusOK, resp)
}

// ///////////////////////////////////////////////
// Content
// ///////////////////////////////////////////////

type contentRequest struct {
	Topic string       `json:"topic"`
	View  content.View `json:"view"`
}

func (s *Server) fetchContent(c *gin.Context) {
	if s.content == nil {
		s.respondError(c, content.ErrNoEndpoint)
		return
	}
	var req contentRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if req.View == "" {
		req.View = content.ViewHome
	}
	if _, err := content.ParseView(string(req.View)); err != nil {
		s.respondError(c, badRequest{err})
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		s.respondError(c, badRequest{errors.New("empty topic")})
		return
	}

	coll, err := s.content.Fetch(c.Request.Context(), req.Topic, req.View)
	if err != nil {
		s.respondError(c, err)
		return
	}
	items := make([]content.Envelope, 0, coll.Len())
	for _, v := range coll.All() {
		items = append(items, content.Envelope{Variant: v})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) plainText(c *gin.Context) {
	var req struct {
		Content content.Envelope `json:"content"`
	}
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if req.Content.Variant == nil {
		s.respondError(c, badRequest{errors.New("missing content")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": content.PlainText(req.Content.Variant)})
}

// ///////////////////////////////////////////////
// Uploads
// ///////////////////////////////////////////////

func (s *Server) listUploads(c *gin.Context) {
	list, err := s.store.ListUploads(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": list})
}

func multipartSource(fh *multipart.FileHeader) store.Source {
	return store.Source{
		Name: filepath.Base(fh.Filename),
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (s *Server) addUploads(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadMB<<20)
	form, err := c.MultipartForm()
	if err != nil {
		s.respondError(c, badRequest{fmt.Errorf("read upload form: %w", err)})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		s.respondError(c, badRequest{errors.New(`no files in form field "files"`)})
		return
	}
	sources := make([]store.Source, len(files))
	for i, fh := range files {
		sources[i] = multipartSource(fh)
	}
	added, err := s.store.AddUploads(c.Request.Context(), sources)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uploads": added})
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest{fmt.Errorf("invalid id %q", c.Param("id"))}
	}
	return id, nil
}

func (s *Server) deleteUpload(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.store.DeleteUpload(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ///////////////////////////////////////////////
// Schedule
// ///////////////////////////////////////////////

// scheduleRange reads ?month=YYYY-MM or ?start=&end= (RFC 3339). The
// default is the current month.
func scheduleRange(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	if m := c.Query("month"); m != "" {
		t, err := time.ParseInLocation("2006-01", m, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, badRequest{fmt.Errorf("invalid month %q", m)}
		}
		start, end := store.MonthRange(t)
		return start, end, nil
	}
	startQ, endQ := c.Query("start"), c.Query("end")
	if startQ == "" && endQ == "" {
		start, end := store.MonthRange(now)
		return start, end, nil
	}
	start, err := time.Parse(time.RFC3339, startQ)
	if err != nil {
		return time.Time{}, time.Time{}, badRequest{fmt.Errorf("invalid start %q", startQ)}
	}
	end, err := time.Parse(time.RFC3339, endQ)
	if err != nil {
		return time.Time{}, time.Time{}, badRequest{fmt.Errorf("invalid end %q", endQ)}
	}
	return start, end, nil
}

func (s *Server) listSchedule(c *gin.Context) {
	start, end, err := scheduleRange(c, time.Now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	posts, err := s.store.ListScheduled(c.Request.Context(), start, end)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "start": start, "end": end})
}

type scheduleRequest struct {
	Content     content.Envelope `json:"content"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	Title       string           `json:"title"`
}

func (s *Server) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if req.ScheduledAt.IsZero() {
		s.respondError(c, badRequest{errors.New("missing scheduled_at")})
		return
	}
	p, err := store.NewScheduledPost(req.Content.Variant, req.ScheduledAt, req.Title)
	if err != nil {
		s.respondError(c, badRequest{err})
		return
	}
	if p.Title == "" {
		s.respondError(c, badRequest{errors.New("custom posts need a title")})
		return
	}
	created, err := s.store.CreateScheduled(c.Request.Context(), p)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateSchedule(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var u store.ScheduleUpdate
	if err := bindJSON(c, &u); err != nil {
		s.respondError(c, err)
		return
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		s.respondError(c, badRequest{errors.New("empty title")})
		return
	}
	p, err := s.store.UpdateScheduled(c.Request.Context(), id, u)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.store.DeleteScheduled(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
