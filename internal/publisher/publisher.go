package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tadka/internal/clock"
	"tadka/internal/logger"
	"tadka/internal/metrics"
	"tadka/internal/models"

	"github.com/google/uuid"
)

// ArticleStore is the part of the article store the publisher drives.
type ArticleStore interface {
	ListEligible(ctx context.Context, now time.Time) ([]models.Article, error)
	Publish(ctx context.Context, id int64, now time.Time) (models.PublishOutcome, error)
}

// SettingsStore reads the persisted scheduler settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (models.SchedulerSettings, error)
}

// Notifier is told about every successful publish.
type Notifier interface {
	ArticlePublished(ctx context.Context, event models.ArticlePublished) error
}

type Deps struct {
	Articles ArticleStore
	Settings SettingsStore
	Clock    clock.Clock
	Notifier Notifier
	Metrics  *metrics.Publisher
}

// Publisher owns the recurring trigger and runs scans that move eligible
// scheduled articles to published. At most one scan runs at a time.
type Publisher struct {
	articles ArticleStore
	settings SettingsStore
	clock    clock.Clock
	notifier Notifier
	metrics  *metrics.Publisher
	log      *logger.Entry

	// lifecycle serializes Start, Stop and Reconcile.
	lifecycle sync.Mutex
	// scanMu is held for the whole of a scan.
	scanMu sync.Mutex
	// triggers tracks every trigger goroutine, including replaced ones.
	triggers sync.WaitGroup

	mu            sync.Mutex
	ctx           context.Context
	started       bool
	trigger       *trigger
	scanning      bool
	scans         int
	lastScanAt    *time.Time
	lastPublished int
	lastErr       *string
}

func New(deps Deps) *Publisher {
	if deps.Clock == nil {
		deps.Clock = clock.NewZoned(nil)
	}
	return &Publisher{
		articles: deps.Articles,
		settings: deps.Settings,
		clock:    deps.Clock,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		log:      logger.WithComponent("publisher"),
		ctx:      context.Background(),
	}
}

// Start marks the publisher as running and installs a trigger if the persisted
// settings are enabled. When disabled it stays stopped, and a later Reconcile
// that observes enabled settings installs the trigger.
func (p *Publisher) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	settings, err := p.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("start publisher: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("start publisher: %w", err)
	}

	p.mu.Lock()
	p.started = true
	p.ctx = context.WithoutCancel(ctx)
	p.mu.Unlock()

	p.apply(settings)
	return nil
}

// Reconcile re-reads the settings and aligns the trigger with them. Reading
// under the lifecycle lock makes concurrent callers converge on the latest record.
func (p *Publisher) Reconcile(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	settings, err := p.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("reconcile publisher: %w", err)
	}
	// an unusable period keeps the current trigger
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("reconcile publisher: %w", err)
	}
	p.apply(settings)
	return nil
}

// Stop removes the trigger and waits for in-flight scans, including ones that
// belong to already replaced triggers and RunNow calls.
func (p *Publisher) Stop(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	p.started = false
	t := p.trigger
	p.trigger = nil
	p.mu.Unlock()
	if t != nil {
		close(t.stop)
	}

	done := make(chan struct{})
	go func() {
		p.triggers.Wait()
		p.scanMu.Lock()
		p.scanMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("Publisher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop publisher: %w", ctx.Err())
	}
}

// RunNow scans immediately, waiting for a scan already in progress to finish first.
func (p *Publisher) RunNow(ctx context.Context) (models.ScanResult, error) {
	p.scanMu.Lock()
	defer p.scanMu.Unlock()

	res, err := p.scan(context.WithoutCancel(ctx))
	if err == nil && res.Disabled {
		return res, fmt.Errorf("%w: scheduled publishing is disabled", models.ErrPreconditionFailed)
	}
	return res, err
}

// Snapshot returns the current job state.
func (p *Publisher) Snapshot() models.JobSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := models.JobSnapshot{
		Status:             models.JobStopped,
		Scans:              p.scans,
		LastScanAt:         p.lastScanAt,
		LastPublishedCount: p.lastPublished,
		LastError:          p.lastErr,
	}
	if p.trigger != nil {
		period := p.trigger.period
		snap.TriggerPeriod = &period
		snap.Status = models.JobRunningIdle
	}
	if p.scanning {
		snap.Status = models.JobRunningActive
	}
	return snap
}

// apply must be called with lifecycle held.
func (p *Publisher) apply(s models.SchedulerSettings) {
	p.metrics.SetSettings(s.Enabled, s.CheckFrequencyMinutes)

	p.mu.Lock()
	started, current := p.started, p.trigger
	p.mu.Unlock()
	if !started {
		return
	}

	period := s.Period()
	switch {
	case !s.Enabled && current != nil:
		p.removeTrigger(true)
		p.log.Info("Publisher disabled, trigger removed")
	case s.Enabled && current == nil:
		p.installTrigger(period)
		p.log.WithField("period", period.String()).Info("Publisher trigger installed")
	case s.Enabled && current.period != period:
		p.removeTrigger(false)
		p.installTrigger(period)
		p.log.WithFields(logger.Fields{
			"old_period": current.period.String(),
			"period":     period.String(),
		}).Info("Publisher trigger replaced")
	}
}

func (p *Publisher) installTrigger(period time.Duration) {
	t := newTrigger(p.clock, period)

	p.mu.Lock()
	p.trigger = t
	ctx := p.ctx
	p.mu.Unlock()

	p.triggers.Add(1)
	go func() {
		defer p.triggers.Done()
		t.run(ctx, p.tick)
	}()
}

// removeTrigger cancels the current trigger. With wait it returns only after
// the trigger goroutine, and so any scan it started, has finished.
func (p *Publisher) removeTrigger(wait bool) {
	p.mu.Lock()
	t := p.trigger
	p.trigger = nil
	p.mu.Unlock()
	if t == nil {
		return
	}
	close(t.stop)
	if wait {
		<-t.done
	}
}

// tick is the trigger callback. A tick that finds a scan in progress is dropped.
func (p *Publisher) tick(ctx context.Context) {
	if !p.scanMu.TryLock() {
		p.log.Warn("Scan still in progress, tick coalesced")
		p.metrics.ObserveSkip(metrics.ScanCoalesced)
		return
	}
	defer p.scanMu.Unlock()

	if _, err := p.scan(ctx); err != nil {
		p.log.Errorf("Scan failed: %v", err)
	}
}

// scan must be called with scanMu held.
func (p *Publisher) scan(ctx context.Context) (models.ScanResult, error) {
	startedAt := p.clock.Now()
	res := models.ScanResult{
		ScanID:    uuid.NewString(),
		StartedAt: startedAt,
		Published: []int64{},
		Errors:    []models.ArticleError{},
	}
	log := p.log.WithField("scan_id", res.ScanID)

	p.setScanning(true)
	defer p.setScanning(false)

	settings, err := p.settings.GetSettings(ctx)
	if err != nil {
		err = fmt.Errorf("read scheduler settings: %w", err)
		p.recordFailure(err)
		p.metrics.ObserveScan(metrics.ScanError, 0, 0, 0)
		return res, err
	}
	if !settings.Enabled {
		res.Disabled = true
		p.record(startedAt, 0, nil)
		p.metrics.ObserveSkip(metrics.ScanDisabled)
		log.Debug("Publisher disabled, tick recorded")
		return res, nil
	}

	articles, err := p.articles.ListEligible(ctx, p.clock.Now())
	if err != nil {
		err = fmt.Errorf("list eligible articles: %w", err)
		p.record(startedAt, 0, err)
		p.metrics.ObserveScan(metrics.ScanError, 0, 0, p.clock.Now().Sub(startedAt))
		return res, err
	}

	var failures []string
	for _, a := range articles {
		publishedAt := p.clock.Now()
		outcome, err := p.articles.Publish(ctx, a.ID, publishedAt)
		if err != nil {
			log.WithField("article_id", a.ID).Errorf("Failed to publish article: %v", err)
			res.Errors = append(res.Errors, models.ArticleError{ArticleID: a.ID, Error: err.Error()})
			failures = append(failures, fmt.Sprintf("article %d: %v", a.ID, err))
			continue
		}
		if outcome != models.PublishPublished {
			log.WithFields(logger.Fields{
				"article_id": a.ID,
				"outcome":    outcome.String(),
			}).Debug("Article no longer eligible, skipped")
			res.Skipped = append(res.Skipped, a.ID)
			continue
		}

		res.Published = append(res.Published, a.ID)
		log.WithField("article_id", a.ID).Info("Published scheduled article")
		p.notify(ctx, a, publishedAt)
	}
	res.PublishedCount = len(res.Published)

	var scanErr error
	if len(failures) > 0 {
		scanErr = errors.New(strings.Join(failures, "; "))
	}
	p.record(startedAt, res.PublishedCount, scanErr)

	result := metrics.ScanOK
	if len(failures) > 0 {
		result = metrics.ScanPartial
	}
	p.metrics.ObserveScan(result, res.PublishedCount, len(failures), p.clock.Now().Sub(startedAt))

	log.WithFields(logger.Fields{
		"eligible":  len(articles),
		"published": res.PublishedCount,
		"skipped":   len(res.Skipped),
		"failed":    len(failures),
	}).Info("Scan finished")
	return res, nil
}

func (p *Publisher) notify(ctx context.Context, a models.Article, publishedAt time.Time) {
	if p.notifier == nil {
		return
	}
	event := models.ArticlePublished{
		EventID:            uuid.NewString(),
		ArticleID:          a.ID,
		Title:              a.Title,
		PublishedAt:        publishedAt,
		ScheduledPublishAt: a.ScheduledPublishAt,
	}
	if err := p.notifier.ArticlePublished(ctx, event); err != nil {
		p.log.WithField("article_id", a.ID).Warnf("Failed to emit publish event: %v", err)
	}
}

func (p *Publisher) setScanning(v bool) {
	p.mu.Lock()
	p.scanning = v
	p.mu.Unlock()
}

func (p *Publisher) record(at time.Time, published int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scans++
	p.lastScanAt = &at
	p.lastPublished = published
	p.lastErr = errString(err)
}

// recordFailure keeps the previous scan observation and only sets the error.
func (p *Publisher) recordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scans++
	p.lastErr = errString(err)
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
