package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tadka/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteDatabase is the embedded store used for local runs and tests.
// Timestamps are stored as unix microseconds.
type SQLiteDatabase struct {
	DB *sql.DB

	opts    Options
	dialect dialect
}

var _ Store = (*SQLiteDatabase)(nil)

// NewSQLiteDB opens path (":memory:" for a private in-memory database).
// A single connection is used: SQLite serializes writers anyway, and an
// in-memory database lives only as long as its connection.
func NewSQLiteDB(ctx context.Context, path string, opts Options) (*SQLiteDatabase, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return &SQLiteDatabase{DB: conn, opts: opts.withDefaults(), dialect: sqliteDialect}, nil
}

func (db *SQLiteDatabase) Close() {
	db.DB.Close()
}

func (db *SQLiteDatabase) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *SQLiteDatabase) Migrate(ctx context.Context) error {
	return runMigrations(ctx, db, "migrations/sqlite", db.opts.Clock.Now)
}

func (db *SQLiteDatabase) ListEligible(ctx context.Context, now time.Time) ([]models.Article, error) {
	query, args, err := db.dialect.listEligible(now)
	if err != nil {
		return nil, err
	}
	rows, err := db.DB.QueryContext(ctx, query, args...)
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

func (db *SQLiteDatabase) Publish(ctx context.Context, id int64, now time.Time) (models.PublishOutcome, error) {
	query, args, err := db.dialect.publish(id, now)
	if err != nil {
		return models.PublishNotEligible, err
	}
	res, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return models.PublishNotEligible, storeErr(fmt.Sprintf("publish article %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.PublishNotEligible, storeErr(fmt.Sprintf("publish article %d", id), err)
	}
	if n == 1 {
		return models.PublishPublished, nil
	}

	exists, err := db.exists(ctx, id)
	if err != nil {
		return models.PublishNotEligible, storeErr(fmt.Sprintf("publish article %d", id), err)
	}
	if !exists {
		return models.PublishNotFound, nil
	}
	return models.PublishNotEligible, nil
}

func (db *SQLiteDatabase) CreateArticle(ctx context.Context, a models.Article) (models.Article, error) {
	a, err := prepareNew(a, db.opts.Clock.Now())
	if err != nil {
		return a, err
	}
	query, args, err := db.dialect.insertArticle(a)
	if err != nil {
		return a, err
	}
	if err := db.DB.QueryRowContext(ctx, query, args...).Scan(&a.ID); err != nil {
		return a, storeErr("create article", err)
	}
	return db.GetArticle(ctx, a.ID)
}

func (db *SQLiteDatabase) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	query, args, err := db.dialect.getArticle(id)
	if err != nil {
		return models.Article{}, err
	}
	a, err := db.scanArticle(db.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Article{}, fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Article{}, storeErr(fmt.Sprintf("get article %d", id), err)
	}
	return a, nil
}

func (db *SQLiteDatabase) ScheduleArticle(ctx context.Context, id int64, at time.Time) (models.Article, error) {
	query, args, err := db.dialect.scheduleArticle(id, at, db.opts.Clock.Now())
	if err != nil {
		return models.Article{}, err
	}
	return db.editArticle(ctx, "schedule article", id, query, args)
}

func (db *SQLiteDatabase) DraftArticle(ctx context.Context, id int64) (models.Article, error) {
	query, args, err := db.dialect.draftArticle(id, db.opts.Clock.Now())
	if err != nil {
		return models.Article{}, err
	}
	return db.editArticle(ctx, "draft article", id, query, args)
}

func (db *SQLiteDatabase) editArticle(ctx context.Context, op string, id int64, query string, args []any) (models.Article, error) {
	res, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Article{}, storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Article{}, storeErr(op, err)
	}
	if n == 0 {
		exists, err := db.exists(ctx, id)
		if err != nil {
			return models.Article{}, storeErr(op, err)
		}
		return models.Article{}, editOutcome(op, id, exists)
	}
	return db.GetArticle(ctx, id)
}

func (db *SQLiteDatabase) GetSettings(ctx context.Context) (models.SchedulerSettings, error) {
	var s models.SchedulerSettings
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := db.ensureSettings(ctx, tx); err != nil {
			return err
		}
		query, args, err := db.dialect.selectSettings()
		if err != nil {
			return err
		}
		s, err = db.scanSettings(tx.QueryRowContext(ctx, query, args...))
		return err
	})
	if err != nil {
		return s, storeErr("get scheduler settings", err)
	}
	return s, nil
}

func (db *SQLiteDatabase) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.SchedulerSettings, error) {
	var s models.SchedulerSettings
	if err := patch.Validate(); err != nil {
		return s, err
	}
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := db.ensureSettings(ctx, tx); err != nil {
			return err
		}
		query, args, err := db.dialect.updateSettings(patch, db.opts.Clock.Now())
		if err != nil {
			return err
		}
		s, err = db.scanSettings(tx.QueryRowContext(ctx, query, args...))
		return err
	})
	if err != nil {
		return s, storeErr("update scheduler settings", err)
	}
	return s, nil
}

func (db *SQLiteDatabase) ensureSettings(ctx context.Context, tx *sql.Tx) error {
	query, args, err := db.dialect.ensureSettings(db.opts.Defaults, db.opts.Clock.Now())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func (db *SQLiteDatabase) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

func (db *SQLiteDatabase) exists(ctx context.Context, id int64) (bool, error) {
	query, args, err := db.dialect.countArticle(id)
	if err != nil {
		return false, err
	}
	var n int
	if err := db.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *SQLiteDatabase) scanArticle(row rowScanner) (models.Article, error) {
	var (
		a                    models.Article
		state                string
		scheduled, published sql.NullInt64
		created, updated     int64
	)
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Body, &a.Category, &state,
		&scheduled, &published, &created, &updated)
	if err != nil {
		return a, err
	}
	a.State = models.ArticleState(state)
	a.ScheduledPublishAt = db.fromNullMicros(scheduled)
	a.PublishedAt = db.fromNullMicros(published)
	a.CreatedAt = db.fromMicros(created)
	a.UpdatedAt = db.fromMicros(updated)
	return a, nil
}

func (db *SQLiteDatabase) scanSettings(row rowScanner) (models.SchedulerSettings, error) {
	var (
		s       models.SchedulerSettings
		updated int64
	)
	if err := row.Scan(&s.Enabled, &s.CheckFrequencyMinutes, &updated); err != nil {
		return s, err
	}
	s.UpdatedAt = db.fromMicros(updated)
	return s, nil
}

func (db *SQLiteDatabase) fromMicros(v int64) time.Time {
	return time.UnixMicro(v).In(db.opts.Clock.Location())
}

func (db *SQLiteDatabase) fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := db.fromMicros(v.Int64)
	return &t
}

func (db *SQLiteDatabase) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.DB.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            applied_at INTEGER NOT NULL
        )
    `)
	return err
}

func (db *SQLiteDatabase) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.DB.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *SQLiteDatabase) applyMigration(ctx context.Context, m migration, appliedAt time.Time) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, appliedAt.UnixMicro())
		return err
	})
}
