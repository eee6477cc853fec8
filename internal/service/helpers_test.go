package service

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/store"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.NewDatabase(&config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "feedsync.db"),
	})
	require.NoError(t, err)
	return db
}

// fakeGateway records the request paths it receives.
type fakeGateway struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newFakeGateway(t *testing.T, handler http.HandlerFunc) *fakeGateway {
	t.Helper()
	gw := &fakeGateway{}
	gw.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.mu.Lock()
		gw.paths = append(gw.paths, r.Method+" "+r.URL.Path)
		gw.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(gw.Close)
	return gw
}

func (g *fakeGateway) requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.paths...)
}

func testDaumConfig(baseURL string) *config.DaumConfig {
	creds := config.DaumCredentialConfig{ID: "id", Key: "key", BaseURL: baseURL}
	return &config.DaumConfig{
		Test:            creds,
		Prod:            creds,
		Timeout:         "2s",
		DefaultEnv:      "prod",
		ContentIDPrefix: "theiauto-",
	}
}

func newTestPublisherService(t *testing.T, db *gorm.DB, baseURL string) *PublisherService {
	t.Helper()
	articles := store.NewArticleStore(db)
	return NewPublisherService(testDaumConfig(baseURL), articles, NewAuditLog(db, zap.NewNop()), zap.NewNop())
}

func createArticle(t *testing.T, db *gorm.DB, article models.Article) models.Article {
	t.Helper()
	if article.ArticleTitle == "" {
		article.ArticleTitle = "제목"
	}
	require.NoError(t, db.Create(&article).Error)
	return article
}

func loadArticle(t *testing.T, db *gorm.DB, id int) models.Article {
	t.Helper()
	var article models.Article
	require.NoError(t, db.First(&article, "article_id = ?", id).Error)
	return article
}
