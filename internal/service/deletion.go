package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/service/publisher"
)

// DeletionTask asks for the gateway copy of a deleted article to be removed.
type DeletionTask struct {
	Env       string
	ArticleID int
	UUID      string
	ContentID string
}

// DeletionError reports a task whose gateway delete failed.
type DeletionError struct {
	Task DeletionTask
	Err  error
}

func (e DeletionError) Error() string {
	return fmt.Sprintf("feed deletion for article %d failed: %v", e.Task.ArticleID, e.Err)
}

func (e DeletionError) Unwrap() error {
	return e.Err
}

// FeedDeleter removes an article's gateway copy.
type FeedDeleter interface {
	DeleteArticleFeed(ctx context.Context, task DeletionTask) (*publisher.Result, error)
}

// DeletionWorker runs gateway deletes in the background. Callers enqueue and
// return immediately; failures are logged and published on Errors.
type DeletionWorker struct {
	deleter FeedDeleter
	logger  *zap.Logger
	tasks   chan DeletionTask
	errs    chan DeletionError

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDeletionWorker(deleter FeedDeleter, logger *zap.Logger, queueSize int) *DeletionWorker {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &DeletionWorker{
		deleter: deleter,
		logger:  logger,
		tasks:   make(chan DeletionTask, queueSize),
		errs:    make(chan DeletionError, queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins processing queued tasks.
func (w *DeletionWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("Starting feed deletion worker")
		for {
			select {
			case task := <-w.tasks:
				w.process(ctx, task)
			case <-w.done:
				w.logger.Info("Feed deletion worker stopped", zap.Int("pending", len(w.tasks)))
				return
			case <-ctx.Done():
				w.logger.Info("Feed deletion worker stopped due to context cancellation")
				return
			}
		}
	}()
}

// Enqueue hands a task to the worker without blocking. It reports false when
// the queue is full or the worker has stopped.
func (w *DeletionWorker) Enqueue(task DeletionTask) bool {
	select {
	case <-w.done:
		w.logger.Warn("Feed deletion worker is stopped, dropping task", zap.Int("article_id", task.ArticleID))
		return false
	default:
	}

	select {
	case w.tasks <- task:
		return true
	default:
		w.logger.Warn("Feed deletion queue is full, dropping task", zap.Int("article_id", task.ArticleID))
		return false
	}
}

// Errors delivers failed deletions. Failures are dropped when nobody drains it.
func (w *DeletionWorker) Errors() <-chan DeletionError {
	return w.errs
}

// Stop stops the worker and waits for the in-flight task.
func (w *DeletionWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *DeletionWorker) process(ctx context.Context, task DeletionTask) {
	defer func() {
		if r := recover(); r != nil {
			w.report(task, fmt.Errorf("panic: %v", r))
		}
	}()

	result, err := w.deleter.DeleteArticleFeed(ctx, task)
	if err != nil {
		w.report(task, err)
		return
	}
	if !result.OK {
		w.report(task, fmt.Errorf("gateway returned status %d", result.Status))
		return
	}

	w.logger.Info("Deleted article feed",
		zap.Int("article_id", task.ArticleID),
		zap.String("uuid", task.UUID),
		zap.String("content_id", task.ContentID))
}

func (w *DeletionWorker) report(task DeletionTask, err error) {
	w.logger.Error("Failed to delete article feed",
		zap.Int("article_id", task.ArticleID),
		zap.String("uuid", task.UUID),
		zap.String("content_id", task.ContentID),
		zap.Error(err))

	select {
	case w.errs <- DeletionError{Task: task, Err: err}:
	default:
	}
}
