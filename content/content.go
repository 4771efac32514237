// Package content defines the records authored through the dashboard and the
// editor schema of each record kind.
package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eringen/starcms/upload"
)

// Kind names a record type. It doubles as the route segment of the admin API.
type Kind string

const (
	KindCelebrity Kind = "celebrity"
	KindMovie     Kind = "movie"
	KindNews      Kind = "news"
	KindOutfit    Kind = "outfit"
	KindReview    Kind = "review"
)

var plurals = map[Kind]string{
	KindCelebrity: "celebrities",
	KindMovie:     "movies",
	KindNews:      "news",
	KindOutfit:    "outfits",
	KindReview:    "reviews",
}

// Kinds lists every record kind in dashboard order.
func Kinds() []Kind {
	return []Kind{KindCelebrity, KindMovie, KindNews, KindOutfit, KindReview}
}

// ParseKind accepts the singular or plural name of a kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, p := range plurals {
		if s == string(k) || s == p {
			return k, true
		}
	}
	return "", false
}

// Plural returns the collection name used in URLs and storage folders.
func (k Kind) Plural() string { return plurals[k] }

// Status is the publication state of a record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("content: invalid document")

// ValidationError names the offending field and a message for the editor.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// SEO carries search and sharing metadata.
type SEO struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
	OGImage         string   `json:"ogImage"`
}

// Meta holds the fields every record kind shares.
type Meta struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Status    Status    `json:"status"`
	Featured  bool      `json:"featured"`
	SEO       SEO       `json:"seo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Base gives generic code access to the shared fields.
func (m *Meta) Base() *Meta { return m }

// Document is implemented by pointers to every record type.
type Document interface {
	Base() *Meta
	// Heading is the name or title shown in lists.
	Heading() string
	// Media lists every image reference held by the record.
	Media() []string
	// Prepare recomputes derived fields and fills defaults before the record
	// is stored.
	Prepare(now time.Time)
	Validate() error
}

// IsPermanent reports whether ref may be persisted: it is set and is not a
// transient preview handle.
func IsPermanent(ref string) bool {
	return strings.TrimSpace(ref) != "" && !upload.IsPreview(ref)
}

func (m *Meta) prepare(heading string) {
	if m.Status == "" {
		m.Status = StatusDraft
	}
	if m.Slug == "" {
		m.Slug = Slugify(heading)
	}
}

func (m *Meta) validate(headingField, heading string) error {
	if strings.TrimSpace(heading) == "" {
		return &ValidationError{Field: headingField, Message: fmt.Sprintf("%s is required", strings.ToUpper(headingField[:1])+headingField[1:])}
	}
	if m.Slug == "" || Slugify(m.Slug) != m.Slug {
		return &ValidationError{Field: "slug", Message: "Slug may only contain lowercase letters, digits and hyphens"}
	}
	if !m.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("Unknown status %q", m.Status)}
	}
	return nil
}

func media(refs ...any) []string {
	var out []string
	for _, r := range refs {
		switch v := r.(type) {
		case string:
			if IsPermanent(v) {
				out = append(out, v)
			}
		case []string:
			for _, s := range v {
				if IsPermanent(s) {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
