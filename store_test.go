package starcms

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/starcms/content"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	// every save moves the clock so created_at ordering is deterministic
	clk := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clk = clk.Add(time.Second)
		return clk
	}
	return s
}

func celebrity(name, slug string, status content.Status) *content.Celebrity {
	c := &content.Celebrity{Name: name, Profession: "Actor"}
	c.Slug = slug
	c.Status = status
	return c
}

func mustSave(t *testing.T, s *Store, kind content.Kind, doc content.Document) content.Document {
	t.Helper()
	saved, err := s.Save(context.Background(), kind, doc)
	if err != nil {
		t.Fatalf("Save(%s %q): %v", kind, doc.Heading(), err)
	}
	return saved
}

func slugs(docs []content.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Base().Slug)
	}
	return out
}

func TestNewStoreMigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		s, err := NewStore(context.Background(), path)
		if err != nil {
			t.Fatalf("open %d: %v", i+1, err)
		}
		s.Close()
	}
}

func TestSaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	in := celebrity("Zendaya", "zendaya", content.StatusPublished)
	in.Gallery = []string{"https://cdn.test/a.jpg"}
	in.Achievements = []content.Achievement{
		content.PlainAchievement("Emmy Award"),
		content.DetailedAchievement("Golden Globe", "Best Actress"),
	}
	saved := mustSave(t, s, content.KindCelebrity, in)
	m := saved.Base()
	if m.ID == "" {
		t.Fatal("Save did not assign an id")
	}
	if m.CreatedAt.IsZero() || !m.CreatedAt.Equal(m.UpdatedAt) {
		t.Fatalf("timestamps = %v / %v, want equal and set", m.CreatedAt, m.UpdatedAt)
	}

	got, err := s.Get(ctx, content.KindCelebrity, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Get(ctx, content.KindMovie, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with the wrong kind: err = %v, want ErrNotFound", err)
	}
}

func TestSaveUpdateKeepsCreatedAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	saved := mustSave(t, s, content.KindCelebrity, celebrity("Tom Holland", "tom-holland", content.StatusDraft)).(*content.Celebrity)
	created := saved.CreatedAt

	saved.Bio = "Spider-Man."
	mustSave(t, s, content.KindCelebrity, saved)

	got, err := s.Get(ctx, content.KindCelebrity, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c := got.(*content.Celebrity)
	if c.Bio != "Spider-Man." {
		t.Errorf("Bio = %q, want the updated value", c.Bio)
	}
	if !c.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, created)
	}
	if !c.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt = %v, want after %v", c.UpdatedAt, created)
	}

	ghost := celebrity("Ghost", "ghost", content.StatusDraft)
	ghost.ID = "missing"
	if _, err := s.Save(ctx, content.KindCelebrity, ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("updating a missing document: err = %v, want ErrNotFound", err)
	}
}

func TestSaveSlugTaken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustSave(t, s, content.KindCelebrity, celebrity("Zendaya", "zendaya", content.StatusPublished))
	dup := celebrity("Zendaya Coleman", "zendaya", content.StatusDraft)
	if _, err := s.Save(ctx, content.KindCelebrity, dup); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("duplicate slug: err = %v, want ErrSlugTaken", err)
	}
	if dup.ID != "" {
		t.Errorf("failed insert left id %q on the document", dup.ID)
	}

	news := &content.News{Title: "Zendaya"}
	news.Slug = "zendaya"
	if _, err := s.Save(ctx, content.KindNews, news); err != nil {
		t.Errorf("same slug under another kind: %v", err)
	}
}

func TestListQueries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, c := range []*content.Celebrity{
		celebrity("Zendaya", "zendaya", content.StatusPublished),
		celebrity("Tom Holland", "tom-holland", content.StatusPublished),
		celebrity("Anya Taylor-Joy", "anya-taylor-joy", content.StatusDraft),
		celebrity("Austin Butler", "austin-butler", content.StatusArchived),
		celebrity("Florence Pugh", "florence-pugh", content.StatusPublished),
	} {
		if c.Name == "Tom Holland" {
			c.Featured = true
		}
		mustSave(t, s, content.KindCelebrity, c)
	}

	tests := []struct {
		name      string
		q         ListQuery
		want      []string
		wantTotal int
	}{
		{"newest first", ListQuery{}, []string{"florence-pugh", "austin-butler", "anya-taylor-joy", "tom-holland", "zendaya"}, 5},
		{"oldest first", ListQuery{Sort: "oldest", Limit: 2}, []string{"zendaya", "tom-holland"}, 5},
		{"second page", ListQuery{Sort: "oldest", Limit: 2, Page: 2}, []string{"anya-taylor-joy", "austin-butler"}, 5},
		{"by title", ListQuery{Sort: "title", Limit: 3}, []string{"anya-taylor-joy", "austin-butler", "florence-pugh"}, 5},
		{"status", ListQuery{Status: content.StatusPublished, Sort: "title"}, []string{"florence-pugh", "tom-holland", "zendaya"}, 3},
		{"featured", ListQuery{Featured: true}, []string{"tom-holland"}, 1},
		{"search is case-insensitive", ListQuery{Search: "HOLLAND"}, []string{"tom-holland"}, 1},
		{"search matches slug", ListQuery{Search: "taylor-joy"}, []string{"anya-taylor-joy"}, 1},
		{"search escapes wildcards", ListQuery{Search: "%"}, []string{}, 0},
		{"field filter", ListQuery{Fields: map[string]string{"name": "Zendaya"}}, []string{"zendaya"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.List(ctx, content.KindCelebrity, tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, slugs(page.Items)); diff != "" {
				t.Errorf("slugs mismatch (-want +got):\n%s", diff)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", page.Total, tt.wantTotal)
			}
		})
	}

	page, err := s.List(ctx, content.KindCelebrity, ListQuery{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalPages != 3 || page.Page != 1 || page.Limit != 2 {
		t.Errorf("paging = page %d limit %d of %d, want page 1 limit 2 of 3", page.Page, page.Limit, page.TotalPages)
	}
}

func TestListNormalizesQuery(t *testing.T) {
	q := ListQuery{Page: -3, Limit: 5000, Sort: "random"}
	q.normalize()
	want := ListQuery{Page: 1, Limit: maxLimit, Sort: "newest"}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestListRejectsBadFieldName(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.List(context.Background(), content.KindOutfit, ListQuery{
		Fields: map[string]string{"x') OR 1=1 --": "1"},
	})
	if err == nil {
		t.Fatal("List accepted an injected field name")
	}
}

func TestListOutfitsByCelebrity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, owner := range []string{"c1", "c2", "c1"} {
		o := &content.Outfit{Title: "Look", CelebrityID: owner}
		o.Slug = []string{"met-gala", "oscars", "cannes"}[i]
		mustSave(t, s, content.KindOutfit, o)
	}
	page, err := s.List(ctx, content.KindOutfit, ListQuery{Sort: "oldest", Fields: map[string]string{"celebrityId": "c1"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"met-gala", "cannes"}, slugs(page.Items)); diff != "" {
		t.Errorf("outfits mismatch (-want +got):\n%s", diff)
	}
}

func TestGetBySlugPublishedOnly(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustSave(t, s, content.KindCelebrity, celebrity("Anya Taylor-Joy", "anya-taylor-joy", content.StatusDraft))

	if _, err := s.GetBySlug(ctx, content.KindCelebrity, "anya-taylor-joy", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("draft visible to public lookup: err = %v", err)
	}
	if _, err := s.GetBySlug(ctx, content.KindCelebrity, "anya-taylor-joy", false); err != nil {
		t.Errorf("admin lookup: %v", err)
	}
}

func TestDeleteAndStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	keep := celebrity("Zendaya", "zendaya", content.StatusPublished)
	keep.Featured = true
	mustSave(t, s, content.KindCelebrity, keep)
	mustSave(t, s, content.KindCelebrity, celebrity("Tom Holland", "tom-holland", content.StatusDraft))
	gone := mustSave(t, s, content.KindCelebrity, celebrity("Austin Butler", "austin-butler", content.StatusArchived))

	if err := s.Delete(ctx, content.KindCelebrity, gone.Base().ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, content.KindCelebrity, gone.Base().ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}

	got, err := s.Stats(ctx, content.KindCelebrity)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Total: 2, Published: 1, Draft: 1, Featured: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.Stats(ctx, content.KindReview)
	if err != nil {
		t.Fatalf("Stats(review): %v", err)
	}
	if diff := cmp.Diff(Stats{}, empty); diff != "" {
		t.Errorf("empty Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestContentCacheInvalidate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	cache := NewContentCache(s, time.Hour)

	mustSave(t, s, content.KindCelebrity, celebrity("Zendaya", "zendaya", content.StatusPublished))
	first, err := cache.Celebrities(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("Celebrities() = %d items, %v; want 1", len(first), err)
	}

	mustSave(t, s, content.KindCelebrity, celebrity("Tom Holland", "tom-holland", content.StatusPublished))
	if cached, _ := cache.Celebrities(ctx); len(cached) != 1 {
		t.Errorf("cache reloaded before invalidation: %d items", len(cached))
	}

	cache.Invalidate()
	fresh, err := cache.Celebrities(ctx)
	if err != nil || len(fresh) != 2 {
		t.Errorf("after Invalidate: %d items, %v; want 2", len(fresh), err)
	}
	if _, err := cache.BySlug(ctx, content.KindCelebrity, "tom-holland"); err != nil {
		t.Errorf("BySlug: %v", err)
	}
	if _, err := cache.BySlug(ctx, content.KindCelebrity, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("BySlug(missing): err = %v, want ErrNotFound", err)
	}
}
