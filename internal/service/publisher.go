package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/internal/service/publisher/daum"
	"github.com/theiauto/feedsync/internal/store"
	"github.com/theiauto/feedsync/pkg/util"
)

// PublisherService is the entry point for Daum syndication. It snapshots the
// daum configuration once per call and hands it to the orchestrator.
type PublisherService struct {
	logger    *zap.Logger
	articles  *store.ArticleStore
	publisher *daum.Publisher

	mu     sync.RWMutex
	config config.DaumConfig
}

func NewPublisherService(cfg *config.DaumConfig, articles *store.ArticleStore, audit publisher.AuditSink, logger *zap.Logger) *PublisherService {
	return &PublisherService{
		logger:    logger,
		articles:  articles,
		publisher: daum.NewPublisher(articles, audit, logger),
		config:    *cfg,
	}
}

// Settings returns the current configuration snapshot.
func (s *PublisherService) Settings() daum.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return daum.SettingsFromConfig(&s.config)
}

// SetToggles changes the kill switch and dry-run default. Nil leaves a value unchanged.
func (s *PublisherService) SetToggles(pushEnabled, dryRun *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pushEnabled != nil {
		enabled := *pushEnabled
		s.config.PushEnabled = &enabled
	}
	if dryRun != nil {
		s.config.DryRun = *dryRun
	}
	s.logger.Info("Daum toggles updated",
		zap.Bool("push_enabled", s.config.IsPushEnabled()),
		zap.Bool("dry_run", s.config.DryRun))
}

// Environment resolves a user supplied environment name; blank means the
// configured default.
func (s *PublisherService) Environment(name string) daum.Environment {
	if util.IsBlank(name) {
		s.mu.RLock()
		name = s.config.DefaultEnv
		s.mu.RUnlock()
	}
	return daum.ParseEnvironment(name)
}

func (s *PublisherService) PushArticleJSON(ctx context.Context, env string, articleID int, opts publisher.Options) (*publisher.Result, error) {
	return s.publisher.PushJSON(ctx, s.Settings(), s.Environment(env), articleID, opts)
}

func (s *PublisherService) PushArticleWithFiles(ctx context.Context, env string, articleID int, files []publisher.File, opts publisher.Options) (*publisher.Result, error) {
	return s.publisher.PushWithFiles(ctx, s.Settings(), s.Environment(env), articleID, files, opts)
}

func (s *PublisherService) FetchFeedResult(ctx context.Context, env, by, value string) (*publisher.Result, error) {
	return s.publisher.FetchResult(ctx, s.Settings(), s.Environment(env), by, value)
}

func (s *PublisherService) DeleteByUUID(ctx context.Context, env, uuid string) (*publisher.Result, error) {
	return s.publisher.DeleteByUUID(ctx, s.Settings(), s.Environment(env), uuid)
}

func (s *PublisherService) DeleteByContentID(ctx context.Context, env, contentID string) (*publisher.Result, error) {
	return s.publisher.DeleteByContentID(ctx, s.Settings(), s.Environment(env), contentID)
}

// DeleteArticleFeed removes the gateway copy of a locally deleted article,
// by uuid when one was stored, else by stored or derived content id.
func (s *PublisherService) DeleteArticleFeed(ctx context.Context, task DeletionTask) (*publisher.Result, error) {
	if uuid := util.FirstNonBlank(task.UUID); uuid != "" {
		return s.DeleteByUUID(ctx, task.Env, uuid)
	}

	contentID := util.FirstNonBlank(task.ContentID)
	if contentID == "" {
		contentID = daum.DeriveContentID(task.ArticleID, s.Settings().Payload.ContentIDPrefix)
	}
	return s.DeleteByContentID(ctx, task.Env, contentID)
}

func (s *PublisherService) CheckAuth(ctx context.Context, env, method string) (*publisher.Result, error) {
	return s.publisher.CheckAuth(ctx, s.Settings(), s.Environment(env), method)
}

func (s *PublisherService) Preview(ctx context.Context, env string, articleID int) (*daum.PreviewResult, error) {
	return s.publisher.Preview(ctx, s.Settings(), s.Environment(env), articleID)
}

// ListFeedLogs returns the audit trail, newest first.
func (s *PublisherService) ListFeedLogs(ctx context.Context, filter store.FeedLogFilter) ([]models.DaumFeedLog, error) {
	return s.articles.ListFeedLogs(ctx, filter)
}
