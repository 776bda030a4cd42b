package models

import "time"

// JobStatus is the runtime state of the publisher job.
type JobStatus string

const (
	JobStopped       JobStatus = "stopped"
	JobRunningIdle   JobStatus = "running-idle"
	JobRunningActive JobStatus = "running-active"
)

// JobSnapshot is a point-in-time view of the publisher job.
type JobSnapshot struct {
	Status             JobStatus      `json:"job_status"`
	TriggerPeriod      *time.Duration `json:"-"`
	Scans              int            `json:"-"`
	LastScanAt         *time.Time     `json:"last_scan_at"`
	LastPublishedCount int            `json:"last_published_count"`
	LastError          *string        `json:"last_error"`
}

// ArticleError records a store failure for one article during a scan.
type ArticleError struct {
	ArticleID int64  `json:"article_id"`
	Error     string `json:"error"`
}

// ScanResult summarises one scan.
type ScanResult struct {
	ScanID         string         `json:"scan_id"`
	StartedAt      time.Time      `json:"started_at"`
	Disabled       bool           `json:"disabled,omitempty"`
	PublishedCount int            `json:"published_count"`
	Published      []int64        `json:"published"`
	Skipped        []int64        `json:"skipped,omitempty"`
	Errors         []ArticleError `json:"errors"`
}

// Status is the control surface's combined view of settings and job.
type Status struct {
	Enabled               bool       `json:"enabled"`
	CheckFrequencyMinutes int        `json:"check_frequency_minutes"`
	JobStatus             JobStatus  `json:"job_status"`
	LastScanAt            *time.Time `json:"last_scan_at"`
	LastPublishedCount    int        `json:"last_published_count"`
	LastError             *string    `json:"last_error"`
}

// ArticlePublished is emitted after a successful publish transition.
type ArticlePublished struct {
	EventID            string     `json:"event_id"`
	ArticleID          int64      `json:"article_id"`
	Title              string     `json:"title"`
	PublishedAt        time.Time  `json:"published_at"`
	ScheduledPublishAt *time.Time `json:"scheduled_publish_at,omitempty"`
}
