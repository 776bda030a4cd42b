package queue_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"tadka/internal/logger"
	"tadka/internal/models"
	"tadka/internal/queue"

	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	published := time.Date(2024, 5, 10, 9, 0, 0, 0, loc)
	scheduled := published.Add(-time.Minute)

	body, err := queue.EncodeEvent(models.ArticlePublished{
		EventID:            "e-1",
		ArticleID:          42,
		Title:              "Box office weekend",
		PublishedAt:        published,
		ScheduledPublishAt: &scheduled,
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "e-1", got["event_id"])
	require.Equal(t, 42.0, got["article_id"])
	require.Equal(t, "2024-05-10T09:00:00+05:30", got["published_at"])
	require.Equal(t, "2024-05-10T08:59:00+05:30", got["scheduled_publish_at"])
}

func TestProducer_Publish(t *testing.T) {
	url := os.Getenv("TADKA_TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("TADKA_TEST_RABBITMQ_URL not set")
	}
	logger.Discard()

	p, err := queue.NewProducer(url, "tadka.test.published")
	require.NoError(t, err)
	defer p.Close()

	err = p.ArticlePublished(context.Background(), models.ArticlePublished{
		EventID:     "e-2",
		ArticleID:   1,
		Title:       "t",
		PublishedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestNewProducer_BadURL(t *testing.T) {
	_, err := queue.NewProducer("amqp://127.0.0.1:1/", "q")
	require.Error(t, err)
}
