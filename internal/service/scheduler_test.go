package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/internal/store"
)

func TestSweepIsolatesFailedPush(t *testing.T) {
	db := openTestDB(t)
	gw := newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var doc struct {
			ContentID string `json:"contentId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&doc)
		w.Header().Set("Content-Type", "application/json")
		if doc.ContentID == "theiauto-2" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorMessage":"rejected"}`))
			return
		}
		_, _ = w.Write([]byte(`{"contentId":"` + doc.ContentID + `","uuid":"uuid-` + doc.ContentID + `","status":"READY"}`))
	})

	now := time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		createArticle(t, db, models.Article{ArticleStatus: models.ArticleStatusScheduled, PublishedAt: &past})
	}
	later := createArticle(t, db, models.Article{ArticleStatus: models.ArticleStatusScheduled, PublishedAt: &future})

	articles := store.NewArticleStore(db)
	pusher := newTestPublisherService(t, db, gw.URL)
	scheduler := NewScheduler(&config.SchedulerConfig{Env: "prod"}, zap.NewNop(), articles, pusher)
	scheduler.now = func() time.Time { return now }

	report, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 3, Published: 3, Pushed: 2, Failed: 1}, report)

	for _, id := range []int{1, 3} {
		article := loadArticle(t, db, id)
		assert.Equal(t, models.ArticleStatusPublish, article.ArticleStatus)
		require.NotNil(t, article.DaumUUID)
		assert.NotEmpty(t, *article.DaumUUID)
	}
	second := loadArticle(t, db, 2)
	assert.Equal(t, models.ArticleStatusPublish, second.ArticleStatus)
	require.NotNil(t, second.DaumStatus)
	assert.Equal(t, "ERROR", *second.DaumStatus)
	assert.Nil(t, second.DaumUUID)

	var failure models.DaumFeedLog
	require.NoError(t, db.Where("article_id = ? AND status = ?", 2, publisher.StatusError).First(&failure).Error)
	require.NotNil(t, failure.ErrorMessage)
	assert.Equal(t, "rejected", *failure.ErrorMessage)

	assert.Equal(t, models.ArticleStatusScheduled, loadArticle(t, db, later.ArticleID).ArticleStatus)

	// a second tick finds nothing: failed pushes are not retried
	report, err = scheduler.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Len(t, gw.requests(), 3)
}

type stubScheduledArticles struct {
	due       []models.Article
	markErr   map[int]error
	published []int
}

func (s *stubScheduledArticles) ListDueScheduled(context.Context, time.Time) ([]models.Article, error) {
	return s.due, nil
}

func (s *stubScheduledArticles) MarkPublished(_ context.Context, id int) error {
	if err := s.markErr[id]; err != nil {
		return err
	}
	s.published = append(s.published, id)
	return nil
}

type stubPusher struct {
	pushed []int
	panic  int
}

func (p *stubPusher) PushArticleJSON(_ context.Context, _ string, id int, _ publisher.Options) (*publisher.Result, error) {
	if id == p.panic {
		panic("boom")
	}
	p.pushed = append(p.pushed, id)
	return &publisher.Result{OK: true, Status: http.StatusOK}, nil
}

func TestSweepRecoversPanicsAndSkipsChangedArticles(t *testing.T) {
	articles := &stubScheduledArticles{
		due: []models.Article{{ArticleID: 1}, {ArticleID: 2}, {ArticleID: 3}, {ArticleID: 4}},
		markErr: map[int]error{
			2: store.ErrStatusChanged,
			3: errors.New("db down"),
		},
	}
	pusher := &stubPusher{panic: 4}
	scheduler := NewScheduler(&config.SchedulerConfig{}, zap.NewNop(), articles, pusher)

	report, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepReport{Due: 4, Published: 2, Pushed: 1, Failed: 2, Skipped: 1}, report)
	assert.Equal(t, []int{1, 4}, articles.published)
	assert.Equal(t, []int{1}, pusher.pushed)
}

func TestSchedulerNextTickAlignsToMinute(t *testing.T) {
	scheduler := NewScheduler(&config.SchedulerConfig{Timezone: "Asia/Seoul"}, zap.NewNop(), &stubScheduledArticles{}, &stubPusher{})

	now := time.Date(2025, 5, 1, 3, 4, 35, 0, time.UTC)
	next := scheduler.nextTick(now, time.Minute)
	assert.True(t, next.Equal(time.Date(2025, 5, 1, 3, 5, 0, 0, time.UTC)))

	next = scheduler.nextTick(now, time.Hour)
	assert.True(t, next.Equal(time.Date(2025, 5, 1, 4, 0, 0, 0, time.UTC)))
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := NewScheduler(&config.SchedulerConfig{Enabled: true, Interval: "1m"}, zap.NewNop(), &stubScheduledArticles{}, &stubPusher{})
	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.Stop()
	scheduler.Stop()

	bad := NewScheduler(&config.SchedulerConfig{Enabled: true, Interval: "soon"}, zap.NewNop(), &stubScheduledArticles{}, &stubPusher{})
	assert.Error(t, bad.Start(context.Background()))
}
