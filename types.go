package starcms

import "github.com/eringen/starcms/content"

// ListQuery selects one page of documents of a kind.
type ListQuery struct {
	Page   int
	Limit  int
	Search string // matches title or slug, case-insensitive
	Status content.Status
	Sort   string // newest, oldest, title or updated
	// Featured restricts results to featured documents.
	Featured bool
	// Fields filters on top-level JSON fields of the document, e.g.
	// {"celebrityId": id}.
	Fields map[string]string
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	switch q.Sort {
	case "newest", "oldest", "title", "updated":
	default:
		q.Sort = "newest"
	}
}

// Page is one page of a document listing.
type Page struct {
	Items      []content.Document `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}

// Stats summarizes the documents of one kind.
type Stats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Draft     int `json:"draft"`
	Archived  int `json:"archived"`
	Featured  int `json:"featured"`
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website", "article" or "profile"
	Image       string
}

// HomeData feeds the landing page.
type HomeData struct {
	Meta       PageMeta
	JsonLD     string
	Featured   []*content.Celebrity
	Upcoming   []*content.Movie
	LatestNews []*content.News
}

// CelebrityList is one page of the celebrity directory.
type CelebrityList struct {
	Meta       PageMeta
	Items      []*content.Celebrity
	Page       int
	TotalPages int
}

// CelebrityProfile feeds a celebrity page. Bio is sanitized HTML.
type CelebrityProfile struct {
	Meta      PageMeta
	JsonLD    string
	Celebrity *content.Celebrity
	Bio       string
	Outfits   []*content.Outfit
}

// MoviesPage lists upcoming releases, soonest first.
type MoviesPage struct {
	Meta   PageMeta
	Movies []*content.Movie
}

// NewsPage feeds a news article page. Body is sanitized HTML.
type NewsPage struct {
	Meta    PageMeta
	JsonLD  string
	Article *content.News
	Body    string
	Related []*content.News
}

// KindStats pairs a kind with its dashboard counters.
type KindStats struct {
	Kind  content.Kind `json:"kind"`
	Stats Stats        `json:"stats"`
}
