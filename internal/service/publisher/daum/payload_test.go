package daum

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
)

func sampleArticle() *models.Article {
	published := time.Date(2024, 11, 27, 5, 0, 0, 0, time.UTC)
	return &models.Article{
		ArticleID:       42,
		ArticleStatus:   models.ArticleStatusPublish,
		ArticleTitle:    "새 SUV 출시",
		ArticleSubTitle: "부제",
		ArticleContent:  "<p>본문</p>",
		ArticleBanner:   "https://cdn.example.com/42.jpg",
		PublishedAt:     &published,
		CreatedAt:       published.Add(-time.Hour),
		UpdatedAt:       published.Add(30 * time.Minute),
		Category:        &models.Category{CategoryID: 1, CategoryName: "신차"},
		Admin:           &models.Admin{AdminID: 1, Name: "김기자", Rank: "수석기자", Email: "kim@example.com"},
	}
}

func TestBuildPayload(t *testing.T) {
	article := sampleArticle()
	defaults := DefaultPayloadDefaults()
	defaults.FrontBaseURL = "https://www.theiauto.com/"

	doc := BuildPayload(article, publisher.Options{}, defaults)

	assert.Equal(t, "theiauto-42", doc.ContentID)
	assert.Equal(t, "새 SUV 출시", doc.Title)
	assert.Equal(t, "부제", doc.Subtitle)
	assert.Equal(t, []string{"신차"}, doc.Categories)
	assert.Equal(t, "https://www.theiauto.com/news/42", doc.Links.External.URL)
	assert.Empty(t, doc.Links.Related)
	require.Len(t, doc.Writers, 1)
	assert.Equal(t, Writer{Name: "김기자 수석기자", Email: "kim@example.com"}, doc.Writers[0])
	assert.Equal(t, "2024-11-27T14:00:00.000+09:00", doc.CreatedDate)
	assert.Equal(t, "2024-11-27T14:30:00.000+09:00", doc.ModifiedDate)
	assert.False(t, doc.EnableComment)
	assert.True(t, strings.HasPrefix(doc.BodyHTML, `<p><img src="https://cdn.example.com/42.jpg"`))
	assert.True(t, strings.HasSuffix(doc.BodyHTML, "<p>본문</p>"))
}

func TestBuildPayloadDoesNotMutateArticle(t *testing.T) {
	article := sampleArticle()
	before := *article

	BuildPayload(article, publisher.Options{}, DefaultPayloadDefaults())

	assert.Equal(t, before.ArticleContent, article.ArticleContent)
	assert.Nil(t, article.DaumContentID)
}

func TestBuildPayloadKeepsStoredContentID(t *testing.T) {
	article := sampleArticle()
	stored := "  legacy-7  "
	article.DaumContentID = &stored

	doc := BuildPayload(article, publisher.Options{}, DefaultPayloadDefaults())
	assert.Equal(t, "legacy-7", doc.ContentID)

	blank := "   "
	article.DaumContentID = &blank
	doc = BuildPayload(article, publisher.Options{}, DefaultPayloadDefaults())
	assert.Equal(t, "theiauto-42", doc.ContentID)
}

func TestBuildPayloadTitles(t *testing.T) {
	article := sampleArticle()
	article.ArticleTitle = strings.Repeat("가", 600)
	article.ArticleSubTitle = strings.Repeat("나", 501)

	doc := BuildPayload(article, publisher.Options{}, DefaultPayloadDefaults())
	assert.Equal(t, 500, len([]rune(doc.Title)))
	assert.Equal(t, 500, len([]rune(doc.Subtitle)))

	article.ArticleTitle = ""
	doc = BuildPayload(article, publisher.Options{}, DefaultPayloadDefaults())
	assert.Equal(t, "(제목 없음)", doc.Title)
}

func TestBuildPayloadWriterFallback(t *testing.T) {
	defaults := DefaultPayloadDefaults()

	article := sampleArticle()
	article.Admin = nil
	doc := BuildPayload(article, publisher.Options{}, defaults)
	assert.Equal(t, Writer{Name: "더아이오토", Email: "theiauto@naver.com"}, doc.Writers[0])

	article.Admin = &models.Admin{Name: "박기자", Rank: "기자"}
	doc = BuildPayload(article, publisher.Options{}, defaults)
	assert.Equal(t, Writer{Name: "박기자 기자", Email: "theiauto@naver.com"}, doc.Writers[0])

	article.Admin = &models.Admin{Name: "이기자", Email: "lee@example.com"}
	doc = BuildPayload(article, publisher.Options{}, defaults)
	assert.Equal(t, Writer{Name: "이기자", Email: "lee@example.com"}, doc.Writers[0])
}

func TestBuildPayloadOptions(t *testing.T) {
	article := sampleArticle()
	article.Category = nil
	article.ArticleBanner = ""

	enable := true
	body := "<p>override</p>"
	related := make([]publisher.RelatedLink, 12)
	for i := range related {
		related[i] = publisher.RelatedLink{Title: "r", URL: "https://example.com"}
	}

	defaults := DefaultPayloadDefaults()
	defaults.EnableComment = false

	doc := BuildPayload(article, publisher.Options{
		EnableComment: &enable,
		BodyHTML:      &body,
		ExternalURL:   "https://m.example.com/a/42",
		Related:       related,
	}, defaults)

	assert.True(t, doc.EnableComment)
	assert.Equal(t, "<p>override</p>", doc.BodyHTML)
	assert.Equal(t, "https://m.example.com/a/42", doc.Links.External.URL)
	assert.Len(t, doc.Links.Related, 10)
	assert.Equal(t, []string{}, doc.Categories)
}

func TestBuildPayloadDatesFallBackToCreatedAt(t *testing.T) {
	article := sampleArticle()
	article.PublishedAt = nil
	article.UpdatedAt = time.Time{}

	doc := BuildPayload(article, publisher.Options{}, DefaultPayloadDefaults())

	assert.Equal(t, "2024-11-27T13:00:00.000+09:00", doc.CreatedDate)
	assert.Equal(t, doc.CreatedDate, doc.ModifiedDate)
}

func TestFormatKST(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	assert.Equal(t, "2024-11-27T14:00:00.000+09:00",
		FormatKST(time.Date(2024, 11, 27, 14, 0, 0, 0, seoul)))
	assert.Equal(t, "2025-01-01T08:59:59.123+09:00",
		FormatKST(time.Date(2024, 12, 31, 23, 59, 59, 123_000_000, time.UTC)))
}
