package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tadka/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is the PostgreSQL store backed by a pgx connection pool.
type Database struct {
	Pool *pgxpool.Pool

	opts    Options
	dialect dialect
}

var _ Store = (*Database)(nil)

// NewDB creates a new pool for connString and returns a Database.
func NewDB(ctx context.Context, connString string, opts Options) (*Database, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewDBFromPool(pool, opts), nil
}

// NewDBFromPool wraps an existing pool.
func NewDBFromPool(pool *pgxpool.Pool, opts Options) *Database {
	return &Database{Pool: pool, opts: opts.withDefaults(), dialect: postgresDialect}
}

// Close closes the pool.
func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *Database) Migrate(ctx context.Context) error {
	return runMigrations(ctx, db, "migrations/postgres", db.opts.Clock.Now)
}

func (db *Database) ListEligible(ctx context.Context, now time.Time) ([]models.Article, error) {
	query, args, err := db.dialect.listEligible(now)
	if err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list eligible articles", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		a, err := db.scanArticle(rows)
		if err != nil {
			return nil, storeErr("scan article", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list eligible articles", err)
	}
	return articles, nil
}

func (db *Database) Publish(ctx context.Context, id int64, now time.Time) (models.PublishOutcome, error) {
	query, args, err := db.dialect.publish(id, now)
	if err != nil {
		return models.PublishNotEligible, err
	}
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return models.PublishNotEligible, storeErr(fmt.Sprintf("publish article %d", id), err)
	}
	if tag.RowsAffected() == 1 {
		return models.PublishPublished, nil
	}

	exists, err := db.exists(ctx, db.Pool, id)
	if err != nil {
		return models.PublishNotEligible, storeErr(fmt.Sprintf("publish article %d", id), err)
	}
	if !exists {
		return models.PublishNotFound, nil
	}
	return models.PublishNotEligible, nil
}

func (db *Database) CreateArticle(ctx context.Context, a models.Article) (models.Article, error) {
	a, err := prepareNew(a, db.opts.Clock.Now())
	if err != nil {
		return a, err
	}
	query, args, err := db.dialect.insertArticle(a)
	if err != nil {
		return a, err
	}
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&a.ID); err != nil {
		return a, storeErr("create article", err)
	}
	return db.GetArticle(ctx, a.ID)
}

func (db *Database) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	query, args, err := db.dialect.getArticle(id)
	if err != nil {
		return models.Article{}, err
	}
	a, err := db.scanArticle(db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Article{}, fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Article{}, storeErr(fmt.Sprintf("get article %d", id), err)
	}
	return a, nil
}

func (db *Database) ScheduleArticle(ctx context.Context, id int64, at time.Time) (models.Article, error) {
	query, args, err := db.dialect.scheduleArticle(id, at, db.opts.Clock.Now())
	if err != nil {
		return models.Article{}, err
	}
	return db.editArticle(ctx, "schedule article", id, query, args)
}

func (db *Database) DraftArticle(ctx context.Context, id int64) (models.Article, error) {
	query, args, err := db.dialect.draftArticle(id, db.opts.Clock.Now())
	if err != nil {
		return models.Article{}, err
	}
	return db.editArticle(ctx, "draft article", id, query, args)
}

func (db *Database) editArticle(ctx context.Context, op string, id int64, query string, args []any) (models.Article, error) {
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return models.Article{}, storeErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := db.exists(ctx, db.Pool, id)
		if err != nil {
			return models.Article{}, storeErr(op, err)
		}
		return models.Article{}, editOutcome(op, id, exists)
	}
	return db.GetArticle(ctx, id)
}

func (db *Database) GetSettings(ctx context.Context) (models.SchedulerSettings, error) {
	var s models.SchedulerSettings
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := db.ensureSettings(ctx, tx); err != nil {
			return err
		}
		query, args, err := db.dialect.selectSettings()
		if err != nil {
			return err
		}
		s, err = db.scanSettings(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return s, storeErr("get scheduler settings", err)
	}
	return s, nil
}

func (db *Database) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.SchedulerSettings, error) {
	var s models.SchedulerSettings
	if err := patch.Validate(); err != nil {
		return s, err
	}
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := db.ensureSettings(ctx, tx); err != nil {
			return err
		}
		query, args, err := db.dialect.updateSettings(patch, db.opts.Clock.Now())
		if err != nil {
			return err
		}
		s, err = db.scanSettings(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return s, storeErr("update scheduler settings", err)
	}
	return s, nil
}

func (db *Database) ensureSettings(ctx context.Context, tx pgx.Tx) error {
	query, args, err := db.dialect.ensureSettings(db.opts.Defaults, db.opts.Clock.Now())
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, query, args...)
	return err
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *Database) exists(ctx context.Context, q pgQuerier, id int64) (bool, error) {
	query, args, err := db.dialect.countArticle(id)
	if err != nil {
		return false, err
	}
	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *Database) scanArticle(row pgx.Row) (models.Article, error) {
	var (
		a     models.Article
		state string
	)
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Body, &a.Category, &state,
		&a.ScheduledPublishAt, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	loc := db.opts.Clock.Location()
	a.State = models.ArticleState(state)
	a.ScheduledPublishAt = localize(a.ScheduledPublishAt, loc)
	a.PublishedAt = localize(a.PublishedAt, loc)
	a.CreatedAt = a.CreatedAt.In(loc)
	a.UpdatedAt = a.UpdatedAt.In(loc)
	return a, nil
}

func (db *Database) scanSettings(row pgx.Row) (models.SchedulerSettings, error) {
	var s models.SchedulerSettings
	if err := row.Scan(&s.Enabled, &s.CheckFrequencyMinutes, &s.UpdatedAt); err != nil {
		return s, err
	}
	s.UpdatedAt = s.UpdatedAt.In(db.opts.Clock.Location())
	return s, nil
}

func (db *Database) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            applied_at TIMESTAMP WITH TIME ZONE NOT NULL
        )
    `)
	return err
}

func (db *Database) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (db *Database) applyMigration(ctx context.Context, m migration, appliedAt time.Time) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			m.version, m.name, appliedAt)
		return err
	})
}
