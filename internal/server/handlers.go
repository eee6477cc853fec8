package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/internal/service/publisher/daum"
	"github.com/theiauto/feedsync/internal/store"
)

const (
	maxUploadFiles    = 20
	maxUploadFileSize = 30 << 20
)

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"video/mp4":  true,
}

// pushRequest is the optional JSON body of a push.
type pushRequest struct {
	BodyHTML    *string                 `json:"bodyHtml"`
	ExternalURL string                  `json:"externalUrl"`
	Related     []publisher.RelatedLink `json:"related"`
}

type settingsRequest struct {
	PushEnabled *bool `json:"pushEnabled"`
	DryRun      *bool `json:"dryRun"`
}

func (s *Server) handleCheckAuth(c *gin.Context) {
	method := strings.ToUpper(c.DefaultQuery("method", http.MethodGet))

	result, err := s.Publisher.CheckAuth(c.Request.Context(), c.Query("env"), method)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(result.Status, result)
}

func (s *Server) handlePushJSON(c *gin.Context) {
	articleID, ok := articleIDParam(c, "id")
	if !ok {
		return
	}

	// chunked bodies report ContentLength -1
	var body pushRequest
	if c.Request.ContentLength != 0 && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
	}

	opts := publisher.Options{
		DryRun:        c.Query("dryRun") == "true",
		EnableComment: parseToggle(c.Query("enableComment"), "true", "false"),
		BodyHTML:      body.BodyHTML,
		ExternalURL:   body.ExternalURL,
		Related:       body.Related,
	}

	result, err := s.Publisher.PushArticleJSON(c.Request.Context(), c.Query("env"), articleID, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(result.Status, result)
}

func (s *Server) handlePushWithFiles(c *gin.Context) {
	articleID, ok := articleIDParam(c, "id")
	if !ok {
		return
	}

	files, status, err := readUploadFiles(c)
	if err != nil {
		c.JSON(status, gin.H{"ok": false, "message": err.Error()})
		return
	}

	enableComment := parseToggle(c.Query("comment"), "on", "off")
	if enableComment == nil {
		enableComment = parseToggle(c.Query("enableComment"), "true", "false")
	}
	opts := publisher.Options{
		DryRun:        c.Query("dryRun") == "true",
		EnableComment: enableComment,
	}

	result, err := s.Publisher.PushArticleWithFiles(c.Request.Context(), c.Query("env"), articleID, files, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(result.Status, result)
}

func (s *Server) handleFetchResult(c *gin.Context) {
	by := c.Query("by")
	value := c.Query("value")
	if (by != string(daum.LookupUUID) && by != string(daum.LookupContentID)) || value == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":      false,
			"message": "query 'by' must be 'uuid' or 'contentId' and 'value' is required",
		})
		return
	}

	result, err := s.Publisher.FetchFeedResult(c.Request.Context(), c.Query("env"), by, value)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(result.Status, result)
}

func (s *Server) handleDeleteByUUID(c *gin.Context) {
	result, err := s.Publisher.DeleteByUUID(c.Request.Context(), c.Query("env"), c.Param("uuid"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(result.Status, result)
}

func (s *Server) handleDeleteByContentID(c *gin.Context) {
	result, err := s.Publisher.DeleteByContentID(c.Request.Context(), c.Query("env"), c.Param("contentId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(result.Status, result)
}

func (s *Server) handlePreview(c *gin.Context) {
	articleID, err := strconv.Atoi(c.Param("articleId"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid articleId")
		return
	}

	page, err := s.Publisher.Preview(c.Request.Context(), c.Query("env"), articleID)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.Logger.Error("Failed to render preview", zap.Int("article_id", articleID), zap.Error(err))
		}
		if errors.Is(err, store.ErrNotFound) {
			c.String(status, "Article not found")
			return
		}
		c.String(status, err.Error())
		return
	}

	c.Data(page.Status, page.ContentType, page.Body)
}

func (s *Server) handleListFeedLogs(c *gin.Context) {
	filter := store.FeedLogFilter{}
	if raw := c.Query("articleId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "invalid articleId"})
			return
		}
		filter.ArticleID = &id
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	logs, err := s.Publisher.ListFeedLogs(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "logs": logs})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings := s.Publisher.Settings()
	c.JSON(http.StatusOK, gin.H{
		"pushEnabled": settings.PushEnabled,
		"dryRun":      settings.DryRunDefault,
		"defaultEnv":  s.Publisher.Environment(""),
	})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	s.Publisher.SetToggles(req.PushEnabled, req.DryRun)
	s.handleGetSettings(c)
}

func (s *Server) handleDeleteArticle(c *gin.Context) {
	articleID, ok := articleIDParam(c, "id")
	if !ok {
		return
	}

	article, err := s.Articles.DeleteArticle(c.Request.Context(), c.Query("env"), articleID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "articleId": article.ArticleID})
}

func articleIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "invalid articleId"})
		return 0, false
	}
	return id, true
}

// parseToggle maps on/off style query values to a bool; anything else is nil.
func parseToggle(value, on, off string) *bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case on:
		v := true
		return &v
	case off:
		v := false
		return &v
	default:
		return nil
	}
}

// readUploadFiles returns the "files" parts of a multipart request. A
// request without a multipart body carries no files.
func readUploadFiles(c *gin.Context) ([]publisher.File, int, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, http.StatusOK, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart body: %w", err)
	}

	headers := form.File["files"]
	if len(headers) > maxUploadFiles {
		return nil, http.StatusBadRequest, fmt.Errorf("too many files: %d (max %d)", len(headers), maxUploadFiles)
	}

	files := make([]publisher.File, 0, len(headers))
	for _, fh := range headers {
		file, status, err := readUploadFile(fh)
		if err != nil {
			return nil, status, err
		}
		files = append(files, file)
	}
	return files, http.StatusOK, nil
}

func readUploadFile(fh *multipart.FileHeader) (publisher.File, int, error) {
	contentType := fh.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		return publisher.File{}, http.StatusBadRequest, fmt.Errorf("unsupported file type %q for %s", contentType, fh.Filename)
	}
	if fh.Size > maxUploadFileSize {
		return publisher.File{}, http.StatusRequestEntityTooLarge, fmt.Errorf("file %s exceeds %d bytes", fh.Filename, maxUploadFileSize)
	}

	f, err := fh.Open()
	if err != nil {
		return publisher.File{}, http.StatusBadRequest, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return publisher.File{}, http.StatusBadRequest, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}

	return publisher.File{Name: fh.Filename, ContentType: contentType, Data: data}, http.StatusOK, nil
}

func errorStatus(err error) int {
	var precondition *daum.PreconditionError
	switch {
	case errors.As(err, &precondition):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		// configuration and store errors
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"ok": false, "message": err.Error()})
}
