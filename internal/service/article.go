package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/store"
	"github.com/theiauto/feedsync/pkg/util"
)

// ArticleService is the local-delete hook: the article row is removed first,
// then the gateway copy is queued for deletion.
type ArticleService struct {
	articles  *store.ArticleStore
	deletions *DeletionWorker
	logger    *zap.Logger
}

func NewArticleService(articles *store.ArticleStore, deletions *DeletionWorker, logger *zap.Logger) *ArticleService {
	return &ArticleService{
		articles:  articles,
		deletions: deletions,
		logger:    logger,
	}
}

// DeleteArticle deletes the article locally and returns the deleted row.
// The gateway delete runs later on the DeletionWorker; its outcome never
// reaches the caller.
func (s *ArticleService) DeleteArticle(ctx context.Context, env string, articleID int) (*models.Article, error) {
	article, err := s.articles.DeleteArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	task := DeletionTask{
		Env:       env,
		ArticleID: article.ArticleID,
		UUID:      util.Deref(article.DaumUUID),
		ContentID: util.Deref(article.DaumContentID),
	}
	if !s.deletions.Enqueue(task) {
		s.logger.Warn("Article deleted but feed deletion was not queued", zap.Int("article_id", articleID))
	}

	s.logger.Info("Article deleted", zap.Int("article_id", articleID))
	return article, nil
}
