package daum

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/internal/store"
	"github.com/theiauto/feedsync/pkg/util"
)

const (
	blockedMessage    = "daum push is disabled (daum.push_enabled=false)"
	dryRunMessage     = "DRY_RUN"
	previewNotReady   = "Preview not ready. Try again later."
	defaultPreviewCT  = "text/html; charset=utf-8"
	previewUnknownKey = "no preview available yet: article has no uuid or content id"
)

// ArticleStore is the slice of the article repository the publisher needs.
type ArticleStore interface {
	FindArticle(ctx context.Context, articleID int) (*models.Article, error)
	RecordPushOutcome(ctx context.Context, articleID int, outcome store.PushOutcome) error
	FindBySyndicationKey(ctx context.Context, uuid, contentID string) (*models.Article, error)
	UpdateFeedStatus(ctx context.Context, articleID int, status, previewPath *string) error
}

// PreviewResult is a relayed gateway preview page.
type PreviewResult struct {
	Status      int
	ContentType string
	Body        []byte
}

// Publisher drives pushes, reconciliation and deletion against the Daum
// feed gateway. Every call takes a Settings snapshot, so configuration
// changes never affect an action already in flight.
type Publisher struct {
	articles ArticleStore
	audit    publisher.AuditSink
	logger   *zap.Logger
	now      func() time.Time
}

func NewPublisher(articles ArticleStore, audit publisher.AuditSink, logger *zap.Logger) *Publisher {
	return &Publisher{
		articles: articles,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// sendFunc performs the live gateway call of a push.
type sendFunc func(ctx context.Context, client *Client, doc FeedDocument) (*FeedResponse, error)

// PushJSON creates or updates the article's feed item with a JSON body.
func (p *Publisher) PushJSON(ctx context.Context, settings Settings, env Environment, articleID int, opts publisher.Options) (*publisher.Result, error) {
	return p.push(ctx, publisher.ActionPushJSON, settings, env, articleID, opts, nil,
		func(ctx context.Context, client *Client, doc FeedDocument) (*FeedResponse, error) {
			return client.PushFeed(ctx, doc)
		})
}

// PushWithFiles is PushJSON with binary attachments sent as multipart parts.
func (p *Publisher) PushWithFiles(ctx context.Context, settings Settings, env Environment, articleID int, files []publisher.File, opts publisher.Options) (*publisher.Result, error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}

	return p.push(ctx, publisher.ActionPushFile, settings, env, articleID, opts, names,
		func(ctx context.Context, client *Client, doc FeedDocument) (*FeedResponse, error) {
			return client.PushFeedWithFiles(ctx, doc, files)
		})
}

func (p *Publisher) push(
	ctx context.Context,
	action publisher.Action,
	settings Settings,
	env Environment,
	articleID int,
	opts publisher.Options,
	filenames []string,
	send sendFunc,
) (*publisher.Result, error) {
	var article *models.Article

	// Production only ever carries published articles.
	if env.IsProduction() {
		loaded, err := p.articles.FindArticle(ctx, articleID)
		if err != nil {
			return nil, err
		}
		if loaded.ArticleStatus != models.ArticleStatusPublish {
			return nil, ErrProductionRequiresPublish
		}
		article = loaded
	}

	dryRun := opts.DryRun || settings.DryRunDefault

	if !settings.PushEnabled && !dryRun {
		p.audit.Record(ctx, publisher.AuditEntry{
			Action:    action,
			Status:    publisher.StatusBlocked,
			ArticleID: publisher.IntPtr(articleID),
		})
		p.logger.Warn("Daum push blocked by kill switch",
			zap.String("action", string(action)),
			zap.Int("article_id", articleID))
		return &publisher.Result{
			OK:      false,
			Status:  http.StatusServiceUnavailable,
			Data:    publisher.Message(blockedMessage),
			Blocked: true,
		}, nil
	}

	creds, err := ResolveCredentials(settings, env)
	if err != nil {
		return nil, err
	}

	if article == nil {
		article, err = p.articles.FindArticle(ctx, articleID)
		if err != nil {
			return nil, err
		}
	}

	doc := BuildPayload(article, opts, settings.Payload)
	request := auditRequest(doc, filenames)

	if dryRun {
		p.audit.Record(ctx, publisher.AuditEntry{
			Action:    action,
			Status:    publisher.StatusDryRun,
			ArticleID: publisher.IntPtr(articleID),
			ContentID: doc.ContentID,
			Request:   request,
		})
		return &publisher.Result{
			OK:      true,
			Status:  http.StatusOK,
			Data:    map[string]interface{}{"message": dryRunMessage, "payload": doc},
			Payload: doc,
			DryRun:  true,
		}, nil
	}

	client := NewClient(env, creds, settings.Timeout)
	resp, sendErr := send(ctx, client, doc)
	pushedAt := p.now()

	if sendErr != nil {
		gwErr := AsGatewayError(sendErr)

		persistErr := p.articles.RecordPushOutcome(ctx, articleID, store.PushOutcome{
			ContentID: doc.ContentID,
			PushedAt:  pushedAt,
			Succeeded: false,
		})
		p.audit.Record(ctx, publisher.AuditEntry{
			Action:    action,
			Status:    publisher.StatusError,
			ArticleID: publisher.IntPtr(articleID),
			ContentID: doc.ContentID,
			Request:   request,
			Response:  gwErr.Data(),
			Err:       gwErr,
		})
		p.logger.Error("Daum push failed",
			zap.String("action", string(action)),
			zap.String("env", string(env)),
			zap.Int("article_id", articleID),
			zap.String("content_id", doc.ContentID),
			zap.Int("status_code", gwErr.StatusCode),
			zap.String("error", gwErr.Message()))

		if persistErr != nil {
			return nil, fmt.Errorf("failed to record failed push of article %d: %w", articleID, persistErr)
		}
		return &publisher.Result{
			OK:      false,
			Status:  gwErr.Status(),
			Data:    gwErr.Data(),
			Payload: doc,
		}, nil
	}

	persistErr := p.articles.RecordPushOutcome(ctx, articleID, store.PushOutcome{
		ContentID: doc.ContentID,
		PushedAt:  pushedAt,
		Succeeded: true,
		UUID:      util.StringPtr(resp.UUID),
		Status:    util.StringPtr(resp.Status),
	})
	p.audit.Record(ctx, publisher.AuditEntry{
		Action:    action,
		Status:    resp.Status,
		ArticleID: publisher.IntPtr(articleID),
		ContentID: doc.ContentID,
		UUID:      resp.UUID,
		Request:   request,
		Response:  responseData(resp.Raw),
	})
	p.logger.Info("Daum push succeeded",
		zap.String("action", string(action)),
		zap.String("env", string(env)),
		zap.Int("article_id", articleID),
		zap.String("content_id", doc.ContentID),
		zap.String("uuid", resp.UUID),
		zap.String("status", resp.Status))

	if persistErr != nil {
		return nil, fmt.Errorf("failed to record push of article %d: %w", articleID, persistErr)
	}
	return &publisher.Result{
		OK:      true,
		Status:  resp.StatusCode,
		Data:    responseData(resp.Raw),
		Payload: doc,
	}, nil
}

func auditRequest(doc FeedDocument, filenames []string) map[string]interface{} {
	request := map[string]interface{}{"payload": doc}
	if filenames != nil {
		request["filenames"] = filenames
	}
	return request
}

// FetchResult reads the gateway status of a feed item and copies status and
// preview path onto the matching local article, if any.
func (p *Publisher) FetchResult(ctx context.Context, settings Settings, env Environment, by, value string) (*publisher.Result, error) {
	result, _, err := p.fetchResult(ctx, settings, env, by, value)
	return result, err
}

func (p *Publisher) fetchResult(ctx context.Context, settings Settings, env Environment, by, value string) (*publisher.Result, *FeedResponse, error) {
	key, err := ParseLookupKey(by)
	if err != nil {
		return nil, nil, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil, &PreconditionError{Reason: "value is required"}
	}

	creds, err := ResolveCredentials(settings, env)
	if err != nil {
		return nil, nil, err
	}

	client := NewClient(env, creds, settings.Timeout)
	resp, err := client.FeedResult(ctx, key, value)
	if err != nil {
		gwErr := AsGatewayError(err)
		entry := publisher.AuditEntry{
			Action:   publisher.ActionResult,
			Status:   publisher.StatusError,
			Response: gwErr.Data(),
			Err:      gwErr,
		}
		if key == LookupUUID {
			entry.UUID = value
		} else {
			entry.ContentID = value
		}
		p.audit.Record(ctx, entry)
		p.logger.Error("Daum result lookup failed",
			zap.String("env", string(env)),
			zap.String("by", string(key)),
			zap.String("value", value),
			zap.String("error", gwErr.Message()))

		return &publisher.Result{OK: false, Status: gwErr.Status(), Data: gwErr.Data()}, nil, nil
	}

	var articleID *int
	article, err := p.articles.FindBySyndicationKey(ctx, resp.UUID, resp.ContentID)
	if err != nil {
		return nil, nil, err
	}
	if article != nil {
		articleID = publisher.IntPtr(article.ArticleID)
		if err := p.articles.UpdateFeedStatus(ctx, article.ArticleID,
			util.StringPtr(resp.Status), util.StringPtr(resp.PreviewURL)); err != nil {
			return nil, nil, fmt.Errorf("failed to update feed status of article %d: %w", article.ArticleID, err)
		}
	}

	p.audit.Record(ctx, publisher.AuditEntry{
		Action:    publisher.ActionResult,
		Status:    resp.Status,
		ArticleID: articleID,
		ContentID: resp.ContentID,
		UUID:      resp.UUID,
		Response:  responseData(resp.Raw),
	})

	return &publisher.Result{OK: true, Status: resp.StatusCode, Data: responseData(resp.Raw)}, resp, nil
}

// DeleteByUUID removes a feed item addressed by its gateway uuid.
func (p *Publisher) DeleteByUUID(ctx context.Context, settings Settings, env Environment, uuid string) (*publisher.Result, error) {
	return p.deleteFeed(ctx, settings, env, LookupUUID, uuid)
}

// DeleteByContentID removes a feed item addressed by its content id.
func (p *Publisher) DeleteByContentID(ctx context.Context, settings Settings, env Environment, contentID string) (*publisher.Result, error) {
	return p.deleteFeed(ctx, settings, env, LookupContentID, contentID)
}

func (p *Publisher) deleteFeed(ctx context.Context, settings Settings, env Environment, key LookupKey, value string) (*publisher.Result, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &PreconditionError{Reason: fmt.Sprintf("%s is required", key)}
	}

	creds, err := ResolveCredentials(settings, env)
	if err != nil {
		return nil, err
	}

	entry := publisher.AuditEntry{Action: publisher.ActionDeleteContentID, ContentID: value}
	if key == LookupUUID {
		entry = publisher.AuditEntry{Action: publisher.ActionDeleteUUID, UUID: value}
	}

	client := NewClient(env, creds, settings.Timeout)
	resp, err := client.DeleteFeed(ctx, key, value)
	if err != nil {
		gwErr := AsGatewayError(err)
		entry.Status = publisher.StatusError
		entry.Response = gwErr.Data()
		entry.Err = gwErr
		p.audit.Record(ctx, entry)
		p.logger.Error("Daum delete failed",
			zap.String("action", string(entry.Action)),
			zap.String("env", string(env)),
			zap.String(string(key), value),
			zap.String("error", gwErr.Message()))

		return &publisher.Result{OK: false, Status: gwErr.Status(), Data: gwErr.Data()}, nil
	}

	entry.Status = publisher.StatusSuccess
	entry.Response = map[string]int{"status": resp.StatusCode}
	p.audit.Record(ctx, entry)
	p.logger.Info("Daum delete succeeded",
		zap.String("action", string(entry.Action)),
		zap.String("env", string(env)),
		zap.String(string(key), value))

	return &publisher.Result{OK: true, Status: resp.StatusCode}, nil
}

// CheckAuth asks the gateway whether the environment's credentials are valid.
func (p *Publisher) CheckAuth(ctx context.Context, settings Settings, env Environment, method string) (*publisher.Result, error) {
	creds, err := ResolveCredentials(settings, env)
	if err != nil {
		return nil, err
	}

	client := NewClient(env, creds, settings.Timeout)
	resp, err := client.CheckAuth(ctx, method)
	if err != nil {
		gwErr := AsGatewayError(err)
		p.logger.Warn("Daum auth check failed",
			zap.String("env", string(env)),
			zap.Int("status_code", gwErr.StatusCode),
			zap.String("error", gwErr.Message()))
		return &publisher.Result{OK: false, Status: gwErr.Status(), Data: gwErr.Data()}, nil
	}

	return &publisher.Result{OK: true, Status: resp.StatusCode, Data: responseData(resp.Body)}, nil
}

// Preview relays the gateway's preview page of an article. When no preview
// path is stored yet the status is reconciled first, by uuid when known,
// else by content id.
func (p *Publisher) Preview(ctx context.Context, settings Settings, env Environment, articleID int) (*PreviewResult, error) {
	article, err := p.articles.FindArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	previewPath := strings.TrimSpace(util.Deref(article.DaumPreviewPath))
	if previewPath == "" {
		by, value := LookupUUID, strings.TrimSpace(util.Deref(article.DaumUUID))
		if value == "" {
			by, value = LookupContentID, strings.TrimSpace(util.Deref(article.DaumContentID))
		}
		if value == "" {
			return nil, &PreconditionError{Reason: previewUnknownKey}
		}

		result, resp, err := p.fetchResult(ctx, settings, env, string(by), value)
		if err != nil {
			return nil, err
		}
		if !result.OK {
			return gatewayPreview(result), nil
		}
		if resp.PreviewURL == "" {
			return &PreviewResult{
				Status:      http.StatusAccepted,
				ContentType: "text/plain; charset=utf-8",
				Body:        []byte(previewNotReady),
			}, nil
		}
		previewPath = resp.PreviewURL
	}

	creds, err := ResolveCredentials(settings, env)
	if err != nil {
		return nil, err
	}

	client := NewClient(env, creds, settings.Timeout)
	page, err := client.Fetch(ctx, previewPath)
	if err != nil {
		gwErr := AsGatewayError(err)
		p.logger.Warn("Daum preview fetch failed",
			zap.Int("article_id", articleID),
			zap.String("preview_path", previewPath),
			zap.String("error", gwErr.Message()))
		return gatewayPreview(&publisher.Result{Status: gwErr.Status(), Data: gwErr.Data()}), nil
	}

	contentType := page.ContentType
	if contentType == "" {
		contentType = defaultPreviewCT
	}
	return &PreviewResult{Status: http.StatusOK, ContentType: contentType, Body: page.Body}, nil
}

func gatewayPreview(result *publisher.Result) *PreviewResult {
	switch data := result.Data.(type) {
	case string:
		return &PreviewResult{Status: result.Status, ContentType: "text/plain; charset=utf-8", Body: []byte(data)}
	default:
		body, err := jsonBytes(data)
		if err != nil {
			body = []byte(err.Error())
		}
		return &PreviewResult{Status: result.Status, ContentType: "application/json", Body: body}
	}
}
