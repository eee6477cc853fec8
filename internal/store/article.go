package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/theiauto/feedsync/internal/models"
)

var (
	// ErrNotFound is returned when an article does not exist.
	ErrNotFound = errors.New("article not found")
	// ErrStatusChanged is returned when a conditional status transition matched no row.
	ErrStatusChanged = errors.New("article status changed concurrently")
)

// PushOutcome is what a live push attempt writes back to the article.
type PushOutcome struct {
	ContentID string
	PushedAt  time.Time
	Succeeded bool
	// UUID and Status are only written when Succeeded; a failed push always
	// stores the literal ERROR status and leaves the uuid alone.
	UUID   *string
	Status *string
}

// ArticleStore reads articles and writes their syndication columns.
type ArticleStore struct {
	db *gorm.DB
}

func NewArticleStore(db *gorm.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// FindArticle loads an article with its admin and category.
func (s *ArticleStore) FindArticle(ctx context.Context, articleID int) (*models.Article, error) {
	var article models.Article
	err := s.db.WithContext(ctx).
		Preload("Admin").
		Preload("Category").
		Where("article_id = ?", articleID).
		First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %d: %w", articleID, err)
	}
	return &article, nil
}

func (s *ArticleStore) RecordPushOutcome(ctx context.Context, articleID int, outcome PushOutcome) error {
	updates := map[string]interface{}{
		"daum_content_id":     outcome.ContentID,
		"daum_last_pushed_at": outcome.PushedAt,
	}
	if outcome.Succeeded {
		updates["daum_uuid"] = outcome.UUID
		updates["daum_status"] = outcome.Status
	} else {
		updates["daum_status"] = "ERROR"
	}

	result := s.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("article_id = ?", articleID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to record push outcome for article %d: %w", articleID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBySyndicationKey matches an article by gateway uuid or content id.
// Blank keys are ignored; a miss returns nil without error.
func (s *ArticleStore) FindBySyndicationKey(ctx context.Context, uuid, contentID string) (*models.Article, error) {
	if uuid == "" && contentID == "" {
		return nil, nil
	}

	query := s.db.WithContext(ctx).Model(&models.Article{})
	switch {
	case uuid != "" && contentID != "":
		query = query.Where("daum_uuid = ? OR daum_content_id = ?", uuid, contentID)
	case uuid != "":
		query = query.Where("daum_uuid = ?", uuid)
	default:
		query = query.Where("daum_content_id = ?", contentID)
	}

	var article models.Article
	err := query.Order("article_id ASC").First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up article by syndication key: %w", err)
	}
	return &article, nil
}

// UpdateFeedStatus stores the latest gateway status and preview path.
func (s *ArticleStore) UpdateFeedStatus(ctx context.Context, articleID int, status, previewPath *string) error {
	return s.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("article_id = ?", articleID).
		Updates(map[string]interface{}{
			"daum_status":       status,
			"daum_preview_path": previewPath,
		}).Error
}

// ListDueScheduled returns scheduled articles whose publish time has passed.
func (s *ArticleStore) ListDueScheduled(ctx context.Context, now time.Time) ([]models.Article, error) {
	// sqlite keeps timestamps as text with the writer's offset; compare
	// instants, not strings.
	publishedAt, bound := "published_at", "?"
	if s.db.Dialector.Name() == "sqlite" {
		publishedAt, bound = "julianday(published_at)", "julianday(?)"
	}

	var articles []models.Article
	if err := s.db.WithContext(ctx).
		Where("article_status = ? AND "+publishedAt+" <= "+bound, models.ArticleStatusScheduled, now.UTC()).
		Order(publishedAt + " ASC, article_id ASC").
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to list due scheduled articles: %w", err)
	}
	return articles, nil
}

// MarkPublished moves a scheduled article to publish.
func (s *ArticleStore) MarkPublished(ctx context.Context, articleID int) error {
	result := s.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("article_id = ? AND article_status = ?", articleID, models.ArticleStatusScheduled).
		Update("article_status", models.ArticleStatusPublish)
	if result.Error != nil {
		return fmt.Errorf("failed to publish article %d: %w", articleID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// DeleteArticle removes an article and returns the row as it was before deletion.
func (s *ArticleStore) DeleteArticle(ctx context.Context, articleID int) (*models.Article, error) {
	var article models.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", articleID).First(&article).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Delete(&models.Article{}, "article_id = ?", articleID).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete article %d: %w", articleID, err)
	}
	return &article, nil
}

// FeedLogFilter narrows ListFeedLogs.
type FeedLogFilter struct {
	ArticleID *int
	Limit     int
}

// ListFeedLogs returns audit rows, newest first.
func (s *ArticleStore) ListFeedLogs(ctx context.Context, filter FeedLogFilter) ([]models.DaumFeedLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&models.DaumFeedLog{})
	if filter.ArticleID != nil {
		query = query.Where("article_id = ?", *filter.ArticleID)
	}

	var logs []models.DaumFeedLog
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list feed logs: %w", err)
	}
	return logs, nil
}
