package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/atomicfile"
)

// maxParallelCopies bounds concurrent file copies in AddUploads.
const maxParallelCopies = 4

// Upload is a user-supplied background file.
// StoredName is the file name under the uploads directory.
type Upload struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Filename   string      `gorm:"not null" json:"filename"`
	PublicURL  string      `gorm:"column:public_url;not null" json:"public_url"`
	StoredName string      `gorm:"column:stored_name;not null;uniqueIndex" json:"-"`
	MIMEType   string      `gorm:"column:mimetype" json:"mimetype"`
	Type       assets.Kind `gorm:"column:type;not null" json:"type"`
	CreatedAt  time.Time   `gorm:"not null;index" json:"created_at"`
}

func (Upload) TableName() string { return "uploads" }

// ListUploads returns every upload, newest first.
func (s *Store) ListUploads(ctx context.Context) ([]Upload, error) {
	var out []Upload
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return out, nil
}

// GetUpload returns one upload.
func (s *Store) GetUpload(ctx context.Context, id uuid.UUID) (Upload, error) {
	var u Upload
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Upload{}, ErrNotFound
	}
	if err != nil {
		return Upload{}, fmt.Errorf("get upload %s: %w", id, err)
	}
	return u, nil
}

// FilePath returns where an upload's bytes live on disk.
func (s *Store) FilePath(u Upload) string {
	return filepath.Join(s.uploadsDir, u.StoredName)
}

// Source is one file to import.
type Source struct {
	// Name is the original file name.
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource imports a file from disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// AddUploads copies every source into the uploads directory and records
// them in one transaction. Either all of them are added or none: on any
// failure the copied files are removed again.
func (s *Store) AddUploads(ctx context.Context, sources []Source) ([]Upload, error) {
	if s.uploadsDir == "" {
		return nil, errors.New("add uploads: no uploads directory configured")
	}
	if len(sources) == 0 {
		return nil, nil
	}

	records := make([]Upload, len(sources))
	var mu sync.Mutex
	var copied []string
	rollback := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range copied {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.Warn("remove orphaned upload", "path", p, "error", err)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCopies)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, path, err := s.copyIn(src)
			if path != "" {
				mu.Lock()
				copied = append(copied, path)
				mu.Unlock()
			}
			if err != nil {
				return err
			}
			records[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rollback()
		return nil, fmt.Errorf("add uploads: %w", err)
	}

	now := s.now()
	for i := range records {
		// distinct timestamps keep the listing order stable
		records[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	}); err != nil {
		rollback()
		return nil, fmt.Errorf("record uploads: %w", err)
	}

	for _, u := range records {
		s.log.Info("upload added", "id", u.ID, "file", u.Filename, "type", u.Type)
	}
	return records, nil
}

// copyIn stores src under a fresh id. path is set once a file exists on
// disk, even if a later step fails.
func (s *Store) copyIn(src Source) (u Upload, path string, err error) {
	r, err := src.Open()
	if err != nil {
		return Upload{}, "", fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer r.Close()

	id := uuid.New()
	stored := id.String() + strings.ToLower(filepath.Ext(src.Name))
	path = filepath.Join(s.uploadsDir, stored)

	// sniff before copying so the type does not depend on the extension alone
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Upload{}, "", fmt.Errorf("read %s: %w", src.Name, err)
	}
	head = head[:n]

	mimeType := assets.MIMEFromName(src.Name)
	if mimeType == "" {
		mimeType = http.DetectContentType(head)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if _, err := atomicfile.WriteFrom(path, body, 0o644); err != nil {
		return Upload{}, "", fmt.Errorf("store %s: %w", src.Name, err)
	}

	return Upload{
		ID:         id,
		Filename:   src.Name,
		PublicURL:  s.publicPrefix + stored,
		StoredName: stored,
		MIMEType:   mimeType,
		Type:       assets.KindFromMIME(mimeType),
	}, path, nil
}

// DeleteUpload removes the file and then the record. A file that cannot be
// removed is logged and the record is deleted anyway.
func (s *Store) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	u, err := s.GetUpload(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.FilePath(u)); err != nil {
		s.log.Warn("could not delete upload file, removing record", "id", id, "path", s.FilePath(u), "error", err)
	}
	res := s.db.WithContext(ctx).Delete(&Upload{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete upload %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
