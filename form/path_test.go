package form

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type seo struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

type base struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	SEO  seo    `json:"seo"`
}

type item struct {
	Title string `json:"title"`
}

func (i item) Empty() bool { return i.Title == "" }

type article struct {
	base
	Title   string            `json:"title"`
	Rating  int               `json:"rating"`
	Images  []string          `json:"images"`
	Items   []item            `json:"items"`
	Extra   map[string]string `json:"extra"`
	Cover   *seo              `json:"cover"`
	private string
}

func TestSetPathNested(t *testing.T) {
	orig := article{base: base{SEO: seo{MetaTitle: "old", MetaDescription: "keep"}}}
	got, err := SetPath(orig, "seo.metaTitle", "new")
	if err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if got.SEO.MetaTitle != "new" {
		t.Errorf("metaTitle = %q, want new", got.SEO.MetaTitle)
	}
	if got.SEO.MetaDescription != "keep" {
		t.Errorf("sibling metaDescription changed to %q", got.SEO.MetaDescription)
	}
	if orig.SEO.MetaTitle != "old" {
		t.Errorf("original record mutated: %q", orig.SEO.MetaTitle)
	}
}

func TestSetPathSliceIndexDoesNotAlias(t *testing.T) {
	orig := article{Images: []string{"a", "b", "c"}}
	got, err := SetPath(orig, "images.1", "B")
	if err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "B", "c"}, got.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}
	if orig.Images[1] != "b" {
		t.Errorf("original slice mutated: %v", orig.Images)
	}
}

func TestSetPathMapAndPointer(t *testing.T) {
	orig := article{Extra: map[string]string{"a": "1"}}
	got, err := SetPath(orig, "extra.b", "2")
	if err != nil {
		t.Fatalf("SetPath map: %v", err)
	}
	if len(orig.Extra) != 1 || got.Extra["b"] != "2" || got.Extra["a"] != "1" {
		t.Errorf("map copy-on-write failed: orig=%v got=%v", orig.Extra, got.Extra)
	}
	got, err = SetPath(got, "cover.metaTitle", "poster")
	if err != nil {
		t.Fatalf("SetPath pointer: %v", err)
	}
	if got.Cover == nil || got.Cover.MetaTitle != "poster" {
		t.Errorf("cover = %+v", got.Cover)
	}
}

func TestSetPathConvertsValues(t *testing.T) {
	rec, err := SetPath(article{}, "rating", float64(7))
	if err != nil {
		t.Fatalf("SetPath rating: %v", err)
	}
	if rec.Rating != 7 {
		t.Errorf("rating = %d, want 7", rec.Rating)
	}
	rec, err = SetPath(rec, "images", []any{"x", "y"})
	if err != nil {
		t.Fatalf("SetPath images: %v", err)
	}
	if diff := cmp.Diff([]string{"x", "y"}, rec.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}
	rec, err = SetPath(rec, "seo", json.RawMessage(`{"metaTitle":"raw"}`))
	if err != nil {
		t.Fatalf("SetPath raw: %v", err)
	}
	if rec.SEO.MetaTitle != "raw" {
		t.Errorf("metaTitle = %q, want raw", rec.SEO.MetaTitle)
	}
}

func TestSetPathErrors(t *testing.T) {
	rec := article{Images: []string{"a"}}
	if _, err := SetPath(rec, "missing", "x"); !errors.Is(err, ErrUnknownPath) {
		t.Errorf("missing field err = %v", err)
	}
	if _, err := SetPath(rec, "images.5", "x"); !errors.Is(err, ErrUnknownPath) {
		t.Errorf("out of range err = %v", err)
	}
	if _, err := SetPath(rec, "private", "x"); !errors.Is(err, ErrUnknownPath) {
		t.Errorf("unexported err = %v", err)
	}
	if _, err := SetPath(rec, "seo..metaTitle", "x"); !errors.Is(err, ErrUnknownPath) {
		t.Errorf("empty segment err = %v", err)
	}
	if _, err := SetPath(rec, "rating", "seven"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("mismatch err = %v", err)
	}
	if _, err := SetPath(rec, "rating", 7.5); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("fraction into int err = %v", err)
	}
}

func TestGetPath(t *testing.T) {
	rec := article{base: base{Slug: "s", SEO: seo{Keywords: []string{"k"}}}}
	v, err := GetPath(rec, "seo.keywords.0")
	if err != nil || v != "k" {
		t.Errorf("GetPath = %v, %v", v, err)
	}
	v, err = GetPath(rec, "slug")
	if err != nil || v != "s" {
		t.Errorf("GetPath slug = %v, %v", v, err)
	}
}

func TestCompact(t *testing.T) {
	rec := article{
		base:   base{SEO: seo{Keywords: []string{"go", " ", ""}}},
		Title:  "preview:abc",
		Images: []string{"https://cdn/x.jpg", "", "preview:123", "https://cdn/y.jpg"},
		Items:  []item{{Title: "a"}, {}, {Title: "b"}},
	}
	got := Compact(rec, func(s string) bool { return len(s) > 8 && s[:8] == "preview:" })
	if diff := cmp.Diff([]string{"https://cdn/x.jpg", "https://cdn/y.jpg"}, got.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"go"}, got.SEO.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
	if len(got.Items) != 2 {
		t.Errorf("items = %v, want 2 entries", got.Items)
	}
	if got.Title != "" {
		t.Errorf("preview handle persisted in scalar field: %q", got.Title)
	}
	if len(rec.Images) != 4 {
		t.Errorf("original list mutated: %v", rec.Images)
	}
}
