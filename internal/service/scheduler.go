package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/internal/store"
)

const defaultSweepInterval = time.Minute

// ScheduledArticles is what the scheduler needs from the article store.
type ScheduledArticles interface {
	ListDueScheduled(ctx context.Context, now time.Time) ([]models.Article, error)
	MarkPublished(ctx context.Context, articleID int) error
}

// ArticlePusher pushes a single article as JSON.
type ArticlePusher interface {
	PushArticleJSON(ctx context.Context, env string, articleID int, opts publisher.Options) (*publisher.Result, error)
}

// SweepReport summarizes one scheduler tick.
type SweepReport struct {
	Due       int `json:"due"`
	Published int `json:"published"`
	Pushed    int `json:"pushed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Scheduler promotes due scheduled articles to publish and pushes them.
// Ticks are aligned to interval boundaries in the configured time zone and
// run on a single goroutine, so sweeps never overlap.
type Scheduler struct {
	config    *config.SchedulerConfig
	logger    *zap.Logger
	articles  ScheduledArticles
	publisher ArticlePusher
	location  *time.Location
	now       func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, articles ScheduledArticles, pusher ArticlePusher) *Scheduler {
	return &Scheduler{
		config:    cfg,
		logger:    logger,
		articles:  articles,
		publisher: pusher,
		location:  loadLocation(cfg.Timezone, logger),
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

func loadLocation(name string, logger *zap.Logger) *time.Location {
	if name == "" {
		name = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("Failed to load scheduler time zone, using fixed +09:00",
			zap.String("timezone", name), zap.Error(err))
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

func (s *Scheduler) interval() (time.Duration, error) {
	if s.config.Interval == "" {
		return defaultSweepInterval, nil
	}
	interval, err := time.ParseDuration(s.config.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid scheduler interval %q: %w", s.config.Interval, err)
	}
	if interval < time.Second {
		return 0, fmt.Errorf("scheduler interval %s is too short", interval)
	}
	return interval, nil
}

// nextTick returns the first interval boundary strictly after now, in the
// scheduler's time zone.
func (s *Scheduler) nextTick(now time.Time, interval time.Duration) time.Time {
	local := now.In(s.location)
	_, offset := local.Zone()
	shift := time.Duration(offset) * time.Second
	return local.Add(shift).Truncate(interval).Add(interval).Add(-shift)
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := s.interval()
	if err != nil {
		s.logger.Error("Invalid scheduler interval", zap.String("interval", s.config.Interval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler",
		zap.Duration("interval", interval),
		zap.String("timezone", s.location.String()),
		zap.String("env", s.config.Env))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(time.Until(s.nextTick(s.now(), interval)))
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("Scheduled sweep failed", zap.Error(err))
				}
				timer.Reset(time.Until(s.nextTick(s.now(), interval)))
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("Scheduler shutdown completed")
}

// Sweep runs one tick. Failures are isolated per article and never retried
// within the tick; the error return is reserved for the due-article query.
func (s *Scheduler) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()

	due, err := s.articles.ListDueScheduled(ctx, s.now())
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Due: len(due)}
	for i := range due {
		s.sweepArticle(ctx, due[i].ArticleID, &report)
	}

	if report.Due > 0 {
		s.logger.Info("Scheduled sweep completed",
			zap.Int("due", report.Due),
			zap.Int("published", report.Published),
			zap.Int("pushed", report.Pushed),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Duration("duration", time.Since(start)))
	}
	return report, nil
}

func (s *Scheduler) sweepArticle(ctx context.Context, articleID int, report *SweepReport) {
	defer func() {
		if r := recover(); r != nil {
			report.Failed++
			s.logger.Error("Scheduled publish panicked",
				zap.Int("article_id", articleID),
				zap.Any("panic", r))
		}
	}()

	if err := s.articles.MarkPublished(ctx, articleID); err != nil {
		if errors.Is(err, store.ErrStatusChanged) {
			report.Skipped++
			s.logger.Info("Scheduled article changed before publish, skipping", zap.Int("article_id", articleID))
			return
		}
		report.Failed++
		s.logger.Error("Failed to publish scheduled article", zap.Int("article_id", articleID), zap.Error(err))
		return
	}
	report.Published++

	result, err := s.publisher.PushArticleJSON(ctx, s.config.Env, articleID, publisher.Options{})
	switch {
	case err != nil:
		report.Failed++
		s.logger.Error("Failed to push scheduled article",
			zap.Int("article_id", articleID), zap.Error(err))
	case !result.OK:
		report.Failed++
		s.logger.Error("Scheduled article push was not accepted",
			zap.Int("article_id", articleID),
			zap.Int("status", result.Status),
			zap.Bool("blocked", result.Blocked))
	default:
		report.Pushed++
	}
}
