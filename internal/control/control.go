package control

import (
	"context"
	"errors"
	"fmt"

	"tadka/internal/logger"
	"tadka/internal/models"
)

// SettingsStore is the persisted scheduler settings record.
type SettingsStore interface {
	GetSettings(ctx context.Context) (models.SchedulerSettings, error)
	UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.SchedulerSettings, error)
}

// Job is the publisher as seen by the control surface.
type Job interface {
	Reconcile(ctx context.Context) error
	RunNow(ctx context.Context) (models.ScanResult, error)
	Snapshot() models.JobSnapshot
}

// Service implements the scheduler control operations on top of the settings
// store and the publisher job.
type Service struct {
	settings SettingsStore
	job      Job
	log      *logger.Entry
}

func NewService(settings SettingsStore, job Job) *Service {
	return &Service{
		settings: settings,
		job:      job,
		log:      logger.WithComponent("control"),
	}
}

// GetStatus combines the persisted settings with the job's runtime state.
func (s *Service) GetStatus(ctx context.Context) (models.Status, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return models.Status{}, fmt.Errorf("get status: %w", err)
	}
	snap := s.job.Snapshot()
	return models.Status{
		Enabled:               settings.Enabled,
		CheckFrequencyMinutes: settings.CheckFrequencyMinutes,
		JobStatus:             snap.Status,
		LastScanAt:            snap.LastScanAt,
		LastPublishedCount:    snap.LastPublishedCount,
		LastError:             snap.LastError,
	}, nil
}

func (s *Service) SetEnabled(ctx context.Context, enabled bool) (models.SchedulerSettings, error) {
	settings, err := s.update(ctx, models.SettingsPatch{Enabled: &enabled})
	if err != nil {
		return settings, fmt.Errorf("set enabled: %w", err)
	}
	s.log.WithField("enabled", enabled).Info("Scheduled publishing toggled")
	return settings, nil
}

func (s *Service) SetFrequency(ctx context.Context, minutes int) (models.SchedulerSettings, error) {
	patch := models.SettingsPatch{CheckFrequencyMinutes: &minutes}
	if err := patch.Validate(); err != nil {
		return models.SchedulerSettings{}, fmt.Errorf("set frequency: %w", err)
	}
	settings, err := s.update(ctx, patch)
	if err != nil {
		return settings, fmt.Errorf("set frequency: %w", err)
	}
	s.log.WithField("minutes", minutes).Info("Check frequency changed")
	return settings, nil
}

// RunNow scans synchronously. It is rejected while publishing is disabled.
func (s *Service) RunNow(ctx context.Context) (models.ScanResult, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return models.ScanResult{}, fmt.Errorf("run now: %w", err)
	}
	if !settings.Enabled {
		return models.ScanResult{}, fmt.Errorf("run now: %w: scheduled publishing is disabled", models.ErrPreconditionFailed)
	}
	res, err := s.job.RunNow(ctx)
	if err != nil {
		return res, fmt.Errorf("run now: %w", err)
	}
	return res, nil
}

// update persists the patch and aligns the job with the stored record. When
// the reconcile fails the saved settings are returned together with a
// store_unavailable error, and repeating the call is safe.
func (s *Service) update(ctx context.Context, patch models.SettingsPatch) (models.SchedulerSettings, error) {
	settings, err := s.settings.UpdateSettings(ctx, patch)
	if err != nil {
		return settings, err
	}
	if err := s.job.Reconcile(ctx); err != nil {
		s.log.Errorf("Reconcile after settings update failed: %v", err)
		if !errors.Is(err, models.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}
		return settings, err
	}
	return settings, nil
}
