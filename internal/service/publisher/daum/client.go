package daum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/theiauto/feedsync/internal/service/publisher"
)

const (
	feedPath          = "/api/v1/contents/feed"
	feedFilePath      = "/api/v1/contents/feed/file"
	feedByUUIDPath    = "/api/v1/contents/feed/uuid/{uuid}"
	feedByContentPath = "/api/v1/contents/feed/content-id/{contentId}"
	checkAuthPath     = "/feed/api/check/auth"
)

// LookupKey selects how a feed item is addressed on the gateway.
type LookupKey string

const (
	LookupUUID      LookupKey = "uuid"
	LookupContentID LookupKey = "contentId"
)

// ParseLookupKey accepts "uuid" or "contentId".
func ParseLookupKey(by string) (LookupKey, error) {
	switch LookupKey(by) {
	case LookupUUID, LookupContentID:
		return LookupKey(by), nil
	default:
		return "", &PreconditionError{Reason: "by must be uuid or contentId"}
	}
}

// FeedResponse is the gateway's answer to a push or status lookup.
type FeedResponse struct {
	ContentID    string `json:"contentId"`
	UUID         string `json:"uuid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	PreviewURL   string `json:"previewUrl,omitempty"`

	StatusCode int    `json:"-"`
	Raw        []byte `json:"-"`
}

// RawResponse is an undecoded gateway response.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client is a pre-authenticated gateway client bound to one environment.
// It never retries; a failure is reported once to the caller.
type Client struct {
	env  Environment
	http *resty.Client
}

func NewClient(env Environment, creds Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(creds.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Authorization", BasicAuthHeader(creds.ID, creds.Key))

	return &Client{env: env, http: httpClient}
}

func (c *Client) Environment() Environment {
	return c.env
}

// PushFeed creates or updates a feed item from a JSON document.
func (c *Client) PushFeed(ctx context.Context, doc FeedDocument) (*FeedResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(doc).
		Post(feedPath)
	return decodeFeedResponse(resp, err)
}

// PushFeedWithFiles sends the document as the "request" part of a multipart
// body with one "files" part per attachment.
func (c *Client) PushFeedWithFiles(ctx context.Context, doc FeedDocument, files []publisher.File) (*FeedResponse, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed document: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetMultipartFields(&resty.MultipartField{
			Param:       "request",
			ContentType: "application/json",
			Reader:      bytes.NewReader(body),
		})

	for _, f := range files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.SetMultipartField("files", f.Name, contentType, bytes.NewReader(f.Data))
	}

	resp, err := req.Post(feedFilePath)
	return decodeFeedResponse(resp, err)
}

// FeedResult looks up the current state of a feed item.
func (c *Client) FeedResult(ctx context.Context, by LookupKey, value string) (*FeedResponse, error) {
	path, param := lookupPath(by)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam(param, value).
		Get(path)
	return decodeFeedResponse(resp, err)
}

// DeleteFeed removes a feed item.
func (c *Client) DeleteFeed(ctx context.Context, by LookupKey, value string) (*RawResponse, error) {
	path, param := lookupPath(by)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam(param, value).
		Delete(path)
	return toRawResponse(resp, err)
}

// CheckAuth verifies the credentials with GET or POST.
func (c *Client) CheckAuth(ctx context.Context, method string) (*RawResponse, error) {
	req := c.http.R().SetContext(ctx)

	var (
		resp *resty.Response
		err  error
	)
	if strings.EqualFold(method, http.MethodPost) {
		resp, err = req.Post(checkAuthPath)
	} else {
		resp, err = req.Get(checkAuthPath)
	}
	return toRawResponse(resp, err)
}

// Fetch GETs an arbitrary gateway path (or absolute URL) with the client's credentials.
func (c *Client) Fetch(ctx context.Context, path string) (*RawResponse, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	return toRawResponse(resp, err)
}

func lookupPath(by LookupKey) (string, string) {
	if by == LookupUUID {
		return feedByUUIDPath, "uuid"
	}
	return feedByContentPath, "contentId"
}

func toRawResponse(resp *resty.Response, err error) (*RawResponse, error) {
	if err != nil {
		gwErr := &GatewayError{Err: err}
		if resp != nil && resp.RawResponse != nil {
			gwErr.StatusCode = resp.StatusCode()
			gwErr.Body = resp.Body()
		}
		return nil, gwErr
	}
	if !resp.IsSuccess() {
		return nil, &GatewayError{
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	return &RawResponse{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

func decodeFeedResponse(resp *resty.Response, err error) (*FeedResponse, error) {
	raw, err := toRawResponse(resp, err)
	if err != nil {
		return nil, err
	}

	out := &FeedResponse{StatusCode: raw.StatusCode, Raw: raw.Body}
	if len(raw.Body) > 0 {
		// Non-JSON success bodies are kept raw only.
		_ = json.Unmarshal(raw.Body, out)
	}
	return out, nil
}
