package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tadka/internal/clock"
	"tadka/internal/models"
)

// Store is the article and scheduler-settings persistence used by the publisher,
// the control service and the article editing endpoints.
type Store interface {
	// ListEligible returns scheduled articles with scheduled_publish_at <= now,
	// ordered by (scheduled_publish_at, id) ascending.
	ListEligible(ctx context.Context, now time.Time) ([]models.Article, error)
	// Publish moves a scheduled article to published. At most one concurrent
	// caller observes PublishPublished for a given article.
	Publish(ctx context.Context, id int64, now time.Time) (models.PublishOutcome, error)

	CreateArticle(ctx context.Context, a models.Article) (models.Article, error)
	GetArticle(ctx context.Context, id int64) (models.Article, error)
	ScheduleArticle(ctx context.Context, id int64, at time.Time) (models.Article, error)
	DraftArticle(ctx context.Context, id int64) (models.Article, error)

	// GetSettings returns the singleton, creating it with defaults if missing.
	GetSettings(ctx context.Context) (models.SchedulerSettings, error)
	UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.SchedulerSettings, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Options are shared by both backends.
type Options struct {
	Clock    clock.Clock
	Defaults models.SchedulerSettings
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.NewZoned(nil)
	}
	if o.Defaults.CheckFrequencyMinutes < models.MinCheckFrequencyMinutes {
		o.Defaults.CheckFrequencyMinutes = models.DefaultCheckFrequencyMinutes
	}
	return o
}

// Open connects to the store selected by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string, opts Options) (Store, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return NewDB(ctx, dsn, opts)
	case "sqlite", "sqlite3":
		return NewSQLiteDB(ctx, dsn, opts)
	}
	return nil, fmt.Errorf("unknown database driver: %q", driver)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

// prepareNew validates an article coming from the editing surface and stamps it.
func prepareNew(a models.Article, now time.Time) (models.Article, error) {
	if strings.TrimSpace(a.Title) == "" {
		return a, fmt.Errorf("%w: title must not be empty", models.ErrInvalidArgument)
	}
	switch a.State {
	case "":
		a.State = models.StateDraft
	case models.StateDraft, models.StateScheduled:
	case models.StatePublished:
		return a, fmt.Errorf("%w: articles are published by the scheduler only", models.ErrInvalidArgument)
	default:
		return a, fmt.Errorf("%w: unknown state %q", models.ErrInvalidArgument, a.State)
	}
	if a.State == models.StateScheduled && a.ScheduledPublishAt == nil {
		return a, fmt.Errorf("%w: scheduled article needs scheduled_publish_at", models.ErrInvalidArgument)
	}
	if a.State == models.StateDraft {
		a.ScheduledPublishAt = nil
	}
	a.ID = 0
	a.PublishedAt = nil
	a.CreatedAt = now
	a.UpdatedAt = now
	return a, nil
}

// editOutcome maps a zero-row conditional update to the right error kind.
func editOutcome(op string, id int64, exists bool) error {
	if !exists {
		return fmt.Errorf("%s %d: %w", op, id, models.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", op, id, models.ErrNotEligible)
}

func localize(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(loc)
	return &v
}
