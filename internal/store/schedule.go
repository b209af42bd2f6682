package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tools.zach/dev/wisdomcard/internal/content"
)

// ContentCustom marks a scheduled post that is not tied to fetched content.
const ContentCustom = "custom"

// ScheduledPost is a calendar entry. Content holds the tagged content
// envelope, or null for custom posts.
type ScheduledPost struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ScheduledAt time.Time      `gorm:"column:scheduled_at;not null;index" json:"scheduled_at"`
	Title       string         `gorm:"not null" json:"title"`
	Content     datatypes.JSON `gorm:"type:json" json:"content"`
	ContentType string         `gorm:"column:content_type;not null" json:"content_type"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (ScheduledPost) TableName() string { return "scheduled_posts" }

// Variant decodes the stored content. Custom posts have none.
func (p ScheduledPost) Variant() (content.Variant, error) {
	if p.ContentType == ContentCustom || len(p.Content) == 0 || string(p.Content) == "null" {
		return nil, nil
	}
	return content.Decode(p.Content)
}

// NewScheduledPost builds an entry for v at the given time. An empty title
// falls back to content.Title. A nil v makes a custom post.
func NewScheduledPost(v content.Variant, at time.Time, title string) (ScheduledPost, error) {
	p := ScheduledPost{ScheduledAt: at, Title: strings.TrimSpace(title), ContentType: ContentCustom}
	if v = content.Normalize(v); v != nil {
		data, err := content.Encode(v)
		if err != nil {
			return ScheduledPost{}, err
		}
		p.Content = datatypes.JSON(data)
		p.ContentType = string(v.Kind())
		if p.Title == "" {
			p.Title = content.Title(v)
		}
	}
	return p, nil
}

func validContentType(t string) bool {
	if t == ContentCustom {
		return true
	}
	_, err := content.ParseKind(t)
	return err == nil
}

// ListScheduled returns posts scheduled within [start, end], earliest first.
func (s *Store) ListScheduled(ctx context.Context, start, end time.Time) ([]ScheduledPost, error) {
	var out []ScheduledPost
	err := s.db.WithContext(ctx).
		Where("scheduled_at >= ? AND scheduled_at <= ?", start.UTC(), end.UTC()).
		Order("scheduled_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list scheduled posts: %w", err)
	}
	return out, nil
}

// CreateScheduled stores p and returns it with its id and creation time set.
func (s *Store) CreateScheduled(ctx context.Context, p ScheduledPost) (ScheduledPost, error) {
	if p.Title == "" {
		return ScheduledPost{}, errors.New("create scheduled post: empty title")
	}
	if p.ScheduledAt.IsZero() {
		return ScheduledPost{}, errors.New("create scheduled post: missing time")
	}
	if !validContentType(p.ContentType) {
		return ScheduledPost{}, fmt.Errorf("create scheduled post: unknown content type %q", p.ContentType)
	}
	p.ID = uuid.New()
	p.ScheduledAt = p.ScheduledAt.UTC()
	p.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return ScheduledPost{}, fmt.Errorf("create scheduled post: %w", err)
	}
	s.log.Info("post scheduled", "id", p.ID, "at", p.ScheduledAt, "type", p.ContentType)
	return p, nil
}

// ScheduleUpdate changes the title and time of a post. Nil fields are
// left alone; content is never changed.
type ScheduleUpdate struct {
	Title       *string    `json:"title"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// UpdateScheduled applies u and returns the updated post.
func (s *Store) UpdateScheduled(ctx context.Context, id uuid.UUID, u ScheduleUpdate) (ScheduledPost, error) {
	changes := map[string]any{}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return ScheduledPost{}, errors.New("update scheduled post: empty title")
		}
		changes["title"] = t
	}
	if u.ScheduledAt != nil {
		changes["scheduled_at"] = u.ScheduledAt.UTC()
	}

	var p ScheduledPost
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&p).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&p, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ScheduledPost{}, ErrNotFound
	}
	if err != nil {
		return ScheduledPost{}, fmt.Errorf("update scheduled post %s: %w", id, err)
	}
	return p, nil
}

// DeleteScheduled removes a post.
func (s *Store) DeleteScheduled(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&ScheduledPost{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete scheduled post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthRange returns the first and last instant of t's calendar month in
// t's location.
func MonthRange(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
