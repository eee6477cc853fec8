package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "feedsync.db"),
	})
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }

func TestFindArticlePreloadsRelations(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)

	category := models.Category{CategoryName: "신차"}
	admin := models.Admin{Name: "홍길동", Rank: "기자", Email: "hong@example.com"}
	require.NoError(t, db.Create(&category).Error)
	require.NoError(t, db.Create(&admin).Error)
	article := models.Article{
		ArticleTitle:  "title",
		ArticleStatus: models.ArticleStatusPublish,
		CategoryID:    &category.CategoryID,
		AdminID:       &admin.AdminID,
	}
	require.NoError(t, db.Create(&article).Error)

	got, err := s.FindArticle(context.Background(), article.ArticleID)
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	require.NotNil(t, got.Admin)
	assert.Equal(t, "신차", got.Category.CategoryName)
	assert.Equal(t, "hong@example.com", got.Admin.Email)

	_, err = s.FindArticle(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPushOutcome(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)
	ctx := context.Background()

	article := models.Article{ArticleTitle: "a", ArticleStatus: models.ArticleStatusPublish}
	require.NoError(t, db.Create(&article).Error)

	pushedAt := time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordPushOutcome(ctx, article.ArticleID, PushOutcome{
		ContentID: "theiauto-1",
		PushedAt:  pushedAt,
		Succeeded: true,
		UUID:      strPtr("uuid-1"),
		Status:    strPtr("REQUESTED"),
	}))

	got, err := s.FindArticle(ctx, article.ArticleID)
	require.NoError(t, err)
	assert.Equal(t, "theiauto-1", *got.DaumContentID)
	assert.Equal(t, "uuid-1", *got.DaumUUID)
	assert.Equal(t, "REQUESTED", *got.DaumStatus)
	require.NotNil(t, got.DaumLastPushedAt)

	require.NoError(t, s.RecordPushOutcome(ctx, article.ArticleID, PushOutcome{
		ContentID: "theiauto-1",
		PushedAt:  pushedAt.Add(time.Minute),
	}))

	got, err = s.FindArticle(ctx, article.ArticleID)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", *got.DaumStatus)
	assert.Equal(t, "uuid-1", *got.DaumUUID, "failed push keeps the last gateway uuid")

	assert.ErrorIs(t, s.RecordPushOutcome(ctx, 4242, PushOutcome{ContentID: "x", PushedAt: pushedAt}), ErrNotFound)
}

func TestListDueScheduledAndMarkPublished(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)
	ctx := context.Background()

	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	past := now.Add(-10 * time.Minute)
	future := now.Add(10 * time.Minute)

	due := models.Article{ArticleTitle: "due", ArticleStatus: models.ArticleStatusScheduled, PublishedAt: &past}
	later := models.Article{ArticleTitle: "later", ArticleStatus: models.ArticleStatusScheduled, PublishedAt: &future}
	draft := models.Article{ArticleTitle: "draft", ArticleStatus: models.ArticleStatusDraft, PublishedAt: &past}
	for _, a := range []*models.Article{&due, &later, &draft} {
		require.NoError(t, db.Create(a).Error)
	}

	kst := time.FixedZone("KST", 9*60*60)
	articles, err := s.ListDueScheduled(ctx, now.In(kst))
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, due.ArticleID, articles[0].ArticleID)

	require.NoError(t, s.MarkPublished(ctx, due.ArticleID))
	assert.ErrorIs(t, s.MarkPublished(ctx, due.ArticleID), ErrStatusChanged)

	articles, err = s.ListDueScheduled(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestListDueScheduledComparesInstantsAcrossZones(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)
	ctx := context.Background()

	kst := time.FixedZone("KST", 9*60*60)
	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	past := now.Add(-10 * time.Minute).In(kst)
	future := now.Add(10 * time.Minute).In(kst)

	due := models.Article{ArticleTitle: "due", ArticleStatus: models.ArticleStatusScheduled, PublishedAt: &past}
	later := models.Article{ArticleTitle: "later", ArticleStatus: models.ArticleStatusScheduled, PublishedAt: &future}
	require.NoError(t, db.Create(&due).Error)
	require.NoError(t, db.Create(&later).Error)

	// a row written by another client with an explicit +09:00 offset
	require.NoError(t, db.Exec(
		"INSERT INTO articles (article_title, article_status, published_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"raw", models.ArticleStatusScheduled, "2026-10-17 11:55:00+09:00", now, now,
	).Error)

	articles, err := s.ListDueScheduled(ctx, now)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, due.ArticleID, articles[0].ArticleID)
	assert.Equal(t, "raw", articles[1].ArticleTitle)

	articles, err = s.ListDueScheduled(ctx, now.Add(11*time.Minute).In(kst))
	require.NoError(t, err)
	assert.Len(t, articles, 3)
}

func TestFindBySyndicationKey(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)
	ctx := context.Background()

	a := models.Article{ArticleTitle: "a", DaumContentID: strPtr("theiauto-7"), DaumUUID: strPtr("u-7")}
	require.NoError(t, db.Create(&a).Error)

	got, err := s.FindBySyndicationKey(ctx, "u-7", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ArticleID, got.ArticleID)

	got, err = s.FindBySyndicationKey(ctx, "other", "theiauto-7")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = s.FindBySyndicationKey(ctx, "missing", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.FindBySyndicationKey(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteArticleReturnsPreviousRow(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)
	ctx := context.Background()

	a := models.Article{ArticleTitle: "a", DaumUUID: strPtr("u-1")}
	require.NoError(t, db.Create(&a).Error)

	deleted, err := s.DeleteArticle(ctx, a.ArticleID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", *deleted.DaumUUID)

	_, err = s.FindArticle(ctx, a.ArticleID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.DeleteArticle(ctx, a.ArticleID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFeedLogs(t *testing.T) {
	db := openTestDB(t)
	s := NewArticleStore(db)
	ctx := context.Background()

	one, two := 1, 2
	require.NoError(t, db.Create(&models.DaumFeedLog{ArticleID: &one, Action: "PUSH_JSON"}).Error)
	require.NoError(t, db.Create(&models.DaumFeedLog{ArticleID: &two, Action: "PUSH_JSON"}).Error)
	require.NoError(t, db.Create(&models.DaumFeedLog{ArticleID: &one, Action: "RESULT"}).Error)

	logs, err := s.ListFeedLogs(ctx, FeedLogFilter{ArticleID: &one})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "RESULT", logs[0].Action)

	logs, err = s.ListFeedLogs(ctx, FeedLogFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
