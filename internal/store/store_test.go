// Package store tests cover upload import and rollback, deletion, and the
// scheduling calendar queries against a temporary SQLite database.
package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Options{
		Path:       filepath.Join(dir, "test.db"),
		UploadsDir: filepath.Join(dir, "uploads"),
		Logger:     logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func uploadsOnDisk(t *testing.T, s *Store) int {
	t.Helper()
	entries, err := os.ReadDir(s.UploadsDir())
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

// ///////////////////////////////////////////////
// Uploads
// ///////////////////////////////////////////////

func TestAddAndListUploads(t *testing.T) {
	s := openTestStore(t)
	src := t.TempDir()
	files := []Source{
		FileSource(writeFile(t, src, "sky.png", pngHeader)),
		FileSource(writeFile(t, src, "clip.mp4", []byte("....ftypmp42"))),
		FileSource(writeFile(t, src, "noext", pngHeader)),
	}

	added, err := s.AddUploads(context.Background(), files)
	if err != nil {
		t.Fatalf("AddUploads: %v", err)
	}
	if len(added) != 3 {
		t.Fatalf("added %d, want 3", len(added))
	}

	want := map[string]assets.Kind{"sky.png": assets.KindImage, "clip.mp4": assets.KindVideo, "noext": assets.KindImage}
	for _, u := range added {
		if u.Type != want[u.Filename] {
			t.Errorf("%s: type %s, want %s", u.Filename, u.Type, want[u.Filename])
		}
		if !strings.HasPrefix(u.PublicURL, "/media/") || !strings.HasSuffix(u.PublicURL, u.StoredName) {
			t.Errorf("%s: public url %q", u.Filename, u.PublicURL)
		}
		if _, err := os.Stat(s.FilePath(u)); err != nil {
			t.Errorf("%s: stored file missing: %v", u.Filename, err)
		}
	}
	if added[2].MIMEType != "image/png" {
		t.Errorf("sniffed mimetype = %q, want image/png", added[2].MIMEType)
	}

	list, err := s.ListUploads(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Error("uploads not newest first")
		}
	}
}

func TestAddUploadsRollsBackOnFailure(t *testing.T) {
	s := openTestStore(t)
	src := t.TempDir()
	files := []Source{
		FileSource(writeFile(t, src, "ok.png", pngHeader)),
		{Name: "broken.png", Open: func() (io.ReadCloser, error) { return nil, errors.New("permission denied") }},
	}

	if _, err := s.AddUploads(context.Background(), files); err == nil {
		t.Fatal("AddUploads succeeded with a broken source")
	}
	if n := uploadsOnDisk(t, s); n != 0 {
		t.Errorf("%d files left in uploads dir, want 0", n)
	}
	list, _ := s.ListUploads(context.Background())
	if len(list) != 0 {
		t.Errorf("%d records after rollback", len(list))
	}
}

func TestDeleteUpload(t *testing.T) {
	s := openTestStore(t)
	added, err := s.AddUploads(context.Background(), []Source{FileSource(writeFile(t, t.TempDir(), "a.png", pngHeader))})
	if err != nil {
		t.Fatal(err)
	}
	id := added[0].ID

	if err := s.DeleteUpload(context.Background(), id); err != nil {
		t.Fatalf("DeleteUpload: %v", err)
	}
	if n := uploadsOnDisk(t, s); n != 0 {
		t.Errorf("file not removed")
	}
	if err := s.DeleteUpload(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestDeleteUploadMissingFileStillRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	added, err := s.AddUploads(context.Background(), []Source{FileSource(writeFile(t, t.TempDir(), "a.png", pngHeader))})
	if err != nil {
		t.Fatal(err)
	}
	os.Remove(s.FilePath(added[0]))

	if err := s.DeleteUpload(context.Background(), added[0].ID); err != nil {
		t.Fatalf("DeleteUpload: %v", err)
	}
	if _, err := s.GetUpload(context.Background(), added[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("record survived: %v", err)
	}
}

// ///////////////////////////////////////////////
// Schedule
// ///////////////////////////////////////////////

func TestScheduleLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	p, err := NewScheduledPost(content.Saying{Translation: "Be kind", Citation: "Muslim 2593"}, at, "")
	if err != nil {
		t.Fatal(err)
	}
	created, err := s.CreateScheduled(ctx, p)
	if err != nil {
		t.Fatalf("CreateScheduled: %v", err)
	}
	if created.ID == uuid.Nil || created.Title != "Muslim 2593" || created.ContentType != "hadith" {
		t.Errorf("created = %+v", created)
	}

	newTitle := "Friday reminder"
	newAt := at.Add(48 * time.Hour)
	updated, err := s.UpdateScheduled(ctx, created.ID, ScheduleUpdate{Title: &newTitle, ScheduledAt: &newAt})
	if err != nil {
		t.Fatalf("UpdateScheduled: %v", err)
	}
	if updated.Title != newTitle || !updated.ScheduledAt.Equal(newAt) {
		t.Errorf("updated = %+v", updated)
	}
	v, err := updated.Variant()
	if err != nil {
		t.Fatal(err)
	}
	if sv, ok := v.(content.Saying); !ok || sv.Translation != "Be kind" {
		t.Errorf("content changed by update: %#v", v)
	}

	if err := s.DeleteScheduled(ctx, created.ID); err != nil {
		t.Fatalf("DeleteScheduled: %v", err)
	}
	if err := s.DeleteScheduled(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if _, err := s.UpdateScheduled(ctx, created.ID, ScheduleUpdate{Title: &newTitle}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update after delete: %v", err)
	}
}

func TestListScheduledRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, at := range times {
		p, _ := NewScheduledPost(nil, at, "post")
		if _, err := s.CreateScheduled(ctx, p); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	start, end := MonthRange(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	got, err := s.ListScheduled(ctx, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("listed %d posts in March, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ScheduledAt.Before(got[i-1].ScheduledAt) {
			t.Error("posts not in ascending order")
		}
	}
	if got[2].ScheduledAt.Day() != 31 {
		t.Error("last day of month excluded")
	}
}

func TestCreateScheduledValidation(t *testing.T) {
	s := openTestStore(t)
	at := time.Now()
	tests := []struct {
		name string
		p    ScheduledPost
	}{
		{"empty title", ScheduledPost{ScheduledAt: at, ContentType: ContentCustom}},
		{"zero time", ScheduledPost{Title: "x", ContentType: ContentCustom}},
		{"bad type", ScheduledPost{Title: "x", ScheduledAt: at, ContentType: "poem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateScheduled(context.Background(), tt.p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2028, 2, 10, 15, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if end.Day() != 29 || end.Hour() != 23 || !end.Add(time.Nanosecond).Equal(time.Date(2028, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}

func TestNewScheduledPostVerseTitle(t *testing.T) {
	p, err := NewScheduledPost(content.ScriptureVerse{Translation: strings.Repeat("a", 60)}, time.Now(), "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != strings.Repeat("a", 50)+"..." || p.ContentType != "quran" {
		t.Errorf("post = %+v", p)
	}
}
