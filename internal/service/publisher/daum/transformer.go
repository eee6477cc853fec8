package daum

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnsureBannerAtTop makes the banner the feed thumbnail. When the first
// <img> of the body already points at the banner the body is returned
// unchanged, so normalizing twice never duplicates the banner. Otherwise a
// banner <img data-thumbnail="true"> paragraph is prepended. The body is
// only scanned; its markup is never re-serialized.
func EnsureBannerAtTop(body, bannerURL, title string) string {
	if body == "" {
		body = emptyBody
	}
	bannerURL = strings.TrimSpace(bannerURL)
	if bannerURL == "" {
		return body
	}

	if src, ok := firstImageSrc(body); ok && src == bannerURL {
		return body
	}

	return fmt.Sprintf("<p>%s</p>\n%s", bannerTag(bannerURL, title), body)
}

func bannerTag(bannerURL, title string) string {
	return fmt.Sprintf(`<img src="%s" alt="%s" data-thumbnail="true" />`,
		html.EscapeString(bannerURL), html.EscapeString(title))
}

// firstImageSrc returns the src of the first <img> element in document order.
func firstImageSrc(body string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	img := doc.Find("img").First()
	if img.Length() == 0 {
		return "", false
	}

	src, _ := img.Attr("src")
	return strings.TrimSpace(src), true
}
