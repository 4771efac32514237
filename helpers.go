package starcms

import (
	"encoding/json"
	"html"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/eringen/starcms/content"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	htmlPolicy     *bluemonday.Policy
	htmlPolicyOnce sync.Once
)

// SanitizeHTML strips scripts, event handlers and other unsafe markup from
// rich text written in the editor before it is rendered on public pages.
func SanitizeHTML(s string) string {
	htmlPolicyOnce.Do(func() {
		htmlPolicy = bluemonday.UGCPolicy()
		htmlPolicy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return htmlPolicy.Sanitize(s)
}

var (
	textPolicy     *bluemonday.Policy
	textPolicyOnce sync.Once
)

// PlainText strips all markup from s and shortens the result to at most max
// runes, cutting at a word boundary.
func PlainText(s string, max int) string {
	textPolicyOnce.Do(func() { textPolicy = bluemonday.StrictPolicy() })
	text := strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	cut := string(r[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

func marshalJsonLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	return marshalJsonLD(data)
}

// PersonJsonLD returns a JSON-LD string for a celebrity profile.
func PersonJsonLD(c *content.Celebrity, cfg SiteConfig) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Person",
		"name":     c.Name,
		"url":      BuildURL(cfg.URL, "celebrities", c.Slug),
	}
	if c.Profession != "" {
		data["jobTitle"] = c.Profession
	}
	if c.Nationality != "" {
		data["nationality"] = c.Nationality
	}
	if c.BirthDate != "" {
		data["birthDate"] = c.BirthDate
	}
	if c.Birthplace != "" {
		data["birthPlace"] = c.Birthplace
	}
	if content.IsPermanent(c.ProfileImage) {
		data["image"] = c.ProfileImage
	}
	if links := FilterEmpty([]string{
		c.Social.Instagram, c.Social.Twitter, c.Social.Facebook,
		c.Social.YouTube, c.Social.TikTok, c.Social.Website,
	}); len(links) > 0 {
		data["sameAs"] = links
	}
	return marshalJsonLD(data)
}

// NewsArticleJsonLD returns a JSON-LD string for a news article.
func NewsArticleJsonLD(n *content.News, cfg SiteConfig) string {
	articleURL := BuildURL(cfg.URL, "news", n.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "NewsArticle",
		"headline":      n.Title,
		"description":   n.Excerpt,
		"datePublished": n.PublishDate,
		"url":           articleURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   articleURL,
		},
	}
	if n.Author != "" {
		data["author"] = map[string]string{"@type": "Person", "name": n.Author}
	} else if cfg.Author != "" {
		data["author"] = map[string]string{"@type": "Person", "name": cfg.Author}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{"@type": "Organization", "name": cfg.Name}
	}
	if content.IsPermanent(n.FeaturedImage) {
		data["image"] = n.FeaturedImage
	}
	if len(n.Tags) > 0 {
		data["keywords"] = strings.Join(n.Tags, ", ")
	}
	return marshalJsonLD(data)
}

// MetaFor builds page metadata from a document's SEO fields, falling back
// to its heading and the given description.
func MetaFor(doc content.Document, pageURL, ogType, fallbackDesc string) PageMeta {
	seo := doc.Base().SEO
	m := PageMeta{
		Title:       seo.MetaTitle,
		Description: seo.MetaDescription,
		URL:         pageURL,
		OGType:      ogType,
		Image:       seo.OGImage,
	}
	if m.Title == "" {
		m.Title = doc.Heading()
	}
	if m.Description == "" {
		m.Description = fallbackDesc
	}
	if m.Image == "" {
		if media := doc.Media(); len(media) > 0 {
			m.Image = media[0]
		}
	}
	return m
}
