package daum

import (
	"fmt"
	"strings"
	"time"

	"github.com/theiauto/feedsync/internal/models"
	"github.com/theiauto/feedsync/internal/service/publisher"
	"github.com/theiauto/feedsync/pkg/util"
)

const (
	maxTitleLength   = 500
	maxRelatedLinks  = 10
	untitledFallback = "(제목 없음)"
	emptyBody        = "<p></p>"

	// The gateway expects Korea Standard Time timestamps.
	kstOffset     = 9 * time.Hour
	kstTimeLayout = "2006-01-02T15:04:05.000"
	kstZoneSuffix = "+09:00"
)

// FeedDocument is the gateway's create/update body.
type FeedDocument struct {
	ContentID     string    `json:"contentId"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle"`
	Categories    []string  `json:"categories"`
	Links         FeedLinks `json:"links"`
	Writers       []Writer  `json:"writers"`
	BodyHTML      string    `json:"bodyHtml"`
	CreatedDate   string    `json:"createdDate"`
	ModifiedDate  string    `json:"modifiedDate"`
	EnableComment bool      `json:"enableComment"`
}

type FeedLinks struct {
	External ExternalLink            `json:"external"`
	Related  []publisher.RelatedLink `json:"related"`
}

type ExternalLink struct {
	URL string `json:"url"`
}

// Writer is a byline. The gateway requires at least one writer with an email.
type Writer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PayloadDefaults are the configured values the builder falls back to.
type PayloadDefaults struct {
	FrontBaseURL        string
	EnableComment       bool
	ContentIDPrefix     string
	FallbackWriterName  string
	FallbackWriterEmail string
}

func DefaultPayloadDefaults() PayloadDefaults {
	return PayloadDefaults{
		FrontBaseURL:        "http://localhost:3000",
		ContentIDPrefix:     "theiauto-",
		FallbackWriterName:  "더아이오토",
		FallbackWriterEmail: "theiauto@naver.com",
	}
}

// ContentID returns the article's stable gateway key: the stored value when
// present, else prefix + article id.
func ContentID(article *models.Article, prefix string) string {
	if stored := util.FirstNonBlank(util.Deref(article.DaumContentID)); stored != "" {
		return stored
	}
	return DeriveContentID(article.ArticleID, prefix)
}

func DeriveContentID(articleID int, prefix string) string {
	if prefix == "" {
		prefix = DefaultPayloadDefaults().ContentIDPrefix
	}
	return fmt.Sprintf("%s%d", prefix, articleID)
}

// ArticleURL is the canonical front-end link of an article.
func ArticleURL(frontBaseURL string, articleID int) string {
	return util.JoinURL(frontBaseURL, fmt.Sprintf("/news/%d", articleID))
}

// BuildPayload turns an article snapshot into a FeedDocument. It only reads
// the article.
func BuildPayload(article *models.Article, opts publisher.Options, defaults PayloadDefaults) FeedDocument {
	categories := []string{}
	if article.Category != nil && article.Category.CategoryName != "" {
		categories = append(categories, article.Category.CategoryName)
	}

	externalURL := opts.ExternalURL
	if externalURL == "" {
		externalURL = ArticleURL(defaults.FrontBaseURL, article.ArticleID)
	}

	related := []publisher.RelatedLink{}
	for _, link := range opts.Related {
		if len(related) == maxRelatedLinks {
			break
		}
		related = append(related, link)
	}

	body := article.ArticleContent
	if opts.BodyHTML != nil {
		body = *opts.BodyHTML
	}
	if body == "" {
		body = emptyBody
	}

	enableComment := defaults.EnableComment
	if opts.EnableComment != nil {
		enableComment = *opts.EnableComment
	}

	created, modified := feedDates(article)

	title := util.TruncateRunes(article.ArticleTitle, maxTitleLength)
	if util.IsBlank(title) {
		title = untitledFallback
	}

	return FeedDocument{
		ContentID:  ContentID(article, defaults.ContentIDPrefix),
		Title:      title,
		Subtitle:   util.TruncateRunes(article.ArticleSubTitle, maxTitleLength),
		Categories: categories,
		Links: FeedLinks{
			External: ExternalLink{URL: externalURL},
			Related:  related,
		},
		Writers:       []Writer{buildWriter(article.Admin, defaults)},
		BodyHTML:      EnsureBannerAtTop(body, article.ArticleBanner, article.ArticleTitle),
		CreatedDate:   FormatKST(created),
		ModifiedDate:  FormatKST(modified),
		EnableComment: enableComment,
	}
}

func buildWriter(admin *models.Admin, defaults PayloadDefaults) Writer {
	var name, rank, email string
	if admin != nil {
		name = strings.TrimSpace(admin.Name)
		rank = strings.TrimSpace(admin.Rank)
		email = strings.TrimSpace(admin.Email)
	}

	display := name
	if name != "" && rank != "" {
		display = name + " " + rank
	}

	if name != "" && email != "" {
		return Writer{Name: display, Email: email}
	}

	if display == "" {
		display = defaults.FallbackWriterName
	}
	return Writer{Name: display, Email: defaults.FallbackWriterEmail}
}

// feedDates picks publishedAt (else createdAt) and updatedAt (else the first).
func feedDates(article *models.Article) (time.Time, time.Time) {
	var created time.Time
	switch {
	case article.PublishedAt != nil && !article.PublishedAt.IsZero():
		created = *article.PublishedAt
	case !article.CreatedAt.IsZero():
		created = article.CreatedAt
	default:
		created = time.Now()
	}

	modified := created
	if !article.UpdatedAt.IsZero() {
		modified = article.UpdatedAt
	}
	return created, modified
}

// FormatKST renders t as a +09:00 timestamp by shifting the UTC instant
// nine hours and swapping the zone marker.
func FormatKST(t time.Time) string {
	return t.UTC().Add(kstOffset).Format(kstTimeLayout) + kstZoneSuffix
}
