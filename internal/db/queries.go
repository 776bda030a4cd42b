package db

import (
	"time"

	"tadka/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const (
	articlesTable = "articles"
	settingsTable = "scheduler_settings"
	settingsRowID = 1
)

var articleColumns = []string{
	"id", "title", "slug", "body", "category", "state",
	"scheduled_publish_at", "published_at", "created_at", "updated_at",
}

var settingsColumns = []string{"enabled", "check_frequency_minutes", "updated_at"}

// dialect builds the statements shared by both backends. Timestamps are bound
// through ts so each backend keeps its native column representation.
type dialect struct {
	sb sq.StatementBuilderType
	ts func(time.Time) any
}

var postgresDialect = dialect{
	sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	ts: func(t time.Time) any { return t },
}

var sqliteDialect = dialect{
	sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	ts: func(t time.Time) any { return t.UnixMicro() },
}

func (d dialect) nullableTs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.ts(*t)
}

func (d dialect) listEligible(now time.Time) (string, []any, error) {
	return d.sb.Select(articleColumns...).
		From(articlesTable).
		Where(sq.Eq{"state": string(models.StateScheduled)}).
		Where(sq.LtOrEq{"scheduled_publish_at": d.ts(now)}).
		OrderBy("scheduled_publish_at ASC", "id ASC").
		ToSql()
}

// publish is the compare-and-set on state; callers inspect the affected-row count.
func (d dialect) publish(id int64, now time.Time) (string, []any, error) {
	return d.sb.Update(articlesTable).
		Set("state", string(models.StatePublished)).
		Set("published_at", d.ts(now)).
		Set("updated_at", d.ts(now)).
		Where(sq.Eq{"id": id, "state": string(models.StateScheduled)}).
		ToSql()
}

func (d dialect) countArticle(id int64) (string, []any, error) {
	return d.sb.Select("COUNT(*)").From(articlesTable).Where(sq.Eq{"id": id}).ToSql()
}

func (d dialect) getArticle(id int64) (string, []any, error) {
	return d.sb.Select(articleColumns...).From(articlesTable).Where(sq.Eq{"id": id}).ToSql()
}

func (d dialect) insertArticle(a models.Article) (string, []any, error) {
	return d.sb.Insert(articlesTable).
		Columns("title", "slug", "body", "category", "state",
			"scheduled_publish_at", "published_at", "created_at", "updated_at").
		Values(a.Title, a.Slug, a.Body, a.Category, string(a.State),
			d.nullableTs(a.ScheduledPublishAt), nil, d.ts(a.CreatedAt), d.ts(a.UpdatedAt)).
		Suffix("RETURNING id").
		ToSql()
}

func (d dialect) scheduleArticle(id int64, at, now time.Time) (string, []any, error) {
	return d.sb.Update(articlesTable).
		Set("state", string(models.StateScheduled)).
		Set("scheduled_publish_at", d.ts(at)).
		Set("updated_at", d.ts(now)).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": string(models.StatePublished)}).
		ToSql()
}

func (d dialect) draftArticle(id int64, now time.Time) (string, []any, error) {
	return d.sb.Update(articlesTable).
		Set("state", string(models.StateDraft)).
		Set("scheduled_publish_at", nil).
		Set("updated_at", d.ts(now)).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": string(models.StatePublished)}).
		ToSql()
}

func (d dialect) ensureSettings(defaults models.SchedulerSettings, now time.Time) (string, []any, error) {
	return d.sb.Insert(settingsTable).
		Columns("id", "enabled", "check_frequency_minutes", "updated_at").
		Values(settingsRowID, defaults.Enabled, defaults.CheckFrequencyMinutes, d.ts(now)).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
}

func (d dialect) selectSettings() (string, []any, error) {
	return d.sb.Select(settingsColumns...).From(settingsTable).Where(sq.Eq{"id": settingsRowID}).ToSql()
}

// updateSettings applies a partial update in one statement so concurrent writers
// resolve per field, last writer wins.
func (d dialect) updateSettings(patch models.SettingsPatch, now time.Time) (string, []any, error) {
	return d.sb.Update(settingsTable).
		Set("enabled", sq.Expr("COALESCE(?, enabled)", optional(patch.Enabled))).
		Set("check_frequency_minutes", sq.Expr("COALESCE(?, check_frequency_minutes)", optional(patch.CheckFrequencyMinutes))).
		Set("updated_at", d.ts(now)).
		Where(sq.Eq{"id": settingsRowID}).
		Suffix("RETURNING enabled, check_frequency_minutes, updated_at").
		ToSql()
}

func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
