package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/internal/service/publisher/daum"
	"github.com/theiauto/feedsync/pkg/util"
)

// AuditLog writes syndication actions to daum_feed_logs. A failed write is
// logged and dropped; it never fails the action being audited.
type AuditLog struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditLog(db *gorm.DB, logger *zap.Logger) *AuditLog {
	return &AuditLog{
		db:     db,
		logger: logger,
	}
}

var _ publisher.AuditSink = (*AuditLog)(nil)

// Record stores entry.
func (a *AuditLog) Record(ctx context.Context, entry publisher.AuditEntry) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Audit log write panicked",
				zap.String("action", string(entry.Action)),
				zap.Any("panic", r))
		}
	}()

	row := &models.DaumFeedLog{
		ArticleID:    entry.ArticleID,
		ContentID:    util.StringPtr(entry.ContentID),
		UUID:         util.StringPtr(entry.UUID),
		Action:       string(entry.Action),
		Status:       util.StringPtr(entry.Status),
		RequestBody:  a.encode(entry.Request),
		ResponseBody: a.encode(entry.Response),
	}
	if entry.Err != nil {
		row.ErrorMessage = util.StringPtr(daum.ErrorMessage(entry.Err))
	}

	if err := a.db.WithContext(ctx).Create(row).Error; err != nil {
		a.logger.Error("Failed to write audit log",
			zap.String("action", row.Action),
			zap.String("content_id", entry.ContentID),
			zap.Error(err))
	}
}

func (a *AuditLog) encode(v interface{}) *string {
	switch body := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return util.StringPtr(string(body))
	case string:
		return util.StringPtr(body)
	}

	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("Failed to encode audit body", zap.Error(err))
		return nil
	}
	return util.StringPtr(string(data))
}
