package models

import "time"

// ArticleState is the publication state of an article.
type ArticleState string

const (
	StateDraft     ArticleState = "draft"
	StateScheduled ArticleState = "scheduled"
	StatePublished ArticleState = "published"
)

// Valid reports whether s is one of the known states.
func (s ArticleState) Valid() bool {
	switch s {
	case StateDraft, StateScheduled, StatePublished:
		return true
	}
	return false
}

// Article is a content record. Only State, ScheduledPublishAt and PublishedAt
// participate in scheduled publication; the rest is carried for the editing surface.
type Article struct {
	ID                 int64        `json:"id"`
	Title              string       `json:"title"`
	Slug               string       `json:"slug"`
	Body               string       `json:"body"`
	Category           string       `json:"category"`
	State              ArticleState `json:"state"`
	ScheduledPublishAt *time.Time   `json:"scheduled_publish_at,omitempty"`
	PublishedAt        *time.Time   `json:"published_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// IsPublished returns true if the article is published.
func (a *Article) IsPublished() bool {
	return a.State == StatePublished
}

// EligibleAt reports whether the publisher may publish the article at now.
func (a *Article) EligibleAt(now time.Time) bool {
	return a.State == StateScheduled && a.ScheduledPublishAt != nil && !a.ScheduledPublishAt.After(now)
}

// PublishOutcome is the result of a conditional publish.
type PublishOutcome int

const (
	PublishPublished PublishOutcome = iota
	PublishNotEligible
	PublishNotFound
)

func (o PublishOutcome) String() string {
	switch o {
	case PublishPublished:
		return "published"
	case PublishNotEligible:
		return "not_eligible"
	case PublishNotFound:
		return "not_found"
	}
	return "unknown"
}
