package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArticle_EligibleAt(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name    string
		article Article
		want    bool
	}{
		{"due", Article{State: StateScheduled, ScheduledPublishAt: at(-time.Second)}, true},
		{"exactly now", Article{State: StateScheduled, ScheduledPublishAt: at(0)}, true},
		{"future", Article{State: StateScheduled, ScheduledPublishAt: at(time.Second)}, false},
		{"no time", Article{State: StateScheduled}, false},
		{"draft", Article{State: StateDraft, ScheduledPublishAt: at(-time.Hour)}, false},
		{"published", Article{State: StatePublished, ScheduledPublishAt: at(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.article.EligibleAt(now))
		})
	}
}

func TestArticleState_Valid(t *testing.T) {
	require.True(t, StateDraft.Valid())
	require.True(t, StatePublished.Valid())
	require.False(t, ArticleState("archived").Valid())
}

func TestSettingsPatch_Validate(t *testing.T) {
	minutes := func(v int) SettingsPatch { return SettingsPatch{CheckFrequencyMinutes: &v} }

	require.NoError(t, SettingsPatch{}.Validate())
	require.NoError(t, minutes(1).Validate())
	require.NoError(t, minutes(MaxCheckFrequencyMinutes).Validate())
	require.ErrorIs(t, minutes(0).Validate(), ErrInvalidArgument)
	require.ErrorIs(t, minutes(MaxCheckFrequencyMinutes+1).Validate(), ErrInvalidArgument)
	require.ErrorIs(t, minutes(200_000_000).Validate(), ErrInvalidArgument)
}

func TestSchedulerSettings_ValidatePeriodStaysPositive(t *testing.T) {
	require.NoError(t, SchedulerSettings{CheckFrequencyMinutes: MaxCheckFrequencyMinutes}.Validate())
	require.Positive(t, SchedulerSettings{CheckFrequencyMinutes: MaxCheckFrequencyMinutes}.Period())
	require.ErrorIs(t, SchedulerSettings{CheckFrequencyMinutes: 200_000_000}.Validate(), ErrInvalidArgument)
}

func TestSchedulerSettings_Period(t *testing.T) {
	require.Equal(t, 15*time.Minute, SchedulerSettings{CheckFrequencyMinutes: 15}.Period())
}

func TestPublishOutcome_String(t *testing.T) {
	require.Equal(t, "published", PublishPublished.String())
	require.Equal(t, "not_eligible", PublishNotEligible.String())
	require.Equal(t, "not_found", PublishNotFound.String())
}
