// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

func newTestManager(t *testing.T) (*Manager, *hooks.Registry) {
	t.Helper()
	registry := hooks.New()
	return NewManager(testinfra.NewDB(t), registry), registry
}

func ptr[T any](v T) *T { return &v }

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  About   Us!  ", "about-us"},
		{"Über Café", "ueber-cafe"},
		{"Straße 42", "strasse-42"},
		{"crème brûlée", "creme-brulee"},
		{"already-a-slug", "already-a-slug"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreatePageUniqueSlugs(t *testing.T) {
	m, registry := newTestManager(t)
	ctx := context.Background()

	var slugs []string
	for i := 0; i < 3; i++ {
		p, err := m.CreatePage(ctx, PageInput{Title: "About Us", Content: "x", AuthorID: 1})
		if err != nil {
			t.Fatalf("CreatePage: %v", err)
		}
		slugs = append(slugs, p.Slug)
	}
	if diff := cmp.Diff([]string{"about-us", "about-us-1", "about-us-2"}, slugs); diff != "" {
		t.Errorf("slugs (-want +got):\n%s", diff)
	}
	if n := registry.DidAction(hooks.PageSaved); n != 3 {
		t.Errorf("page_saved fired %d times", n)
	}

	if _, err := m.CreatePage(ctx, PageInput{Title: "  "}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("empty title = %v", err)
	}
	if _, err := m.CreatePage(ctx, PageInput{Title: "X", Status: "live"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status = %v", err)
	}
	if _, err := m.CreatePage(ctx, PageInput{Title: "X", Format: "rst"}); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("bad format = %v", err)
	}
}

func TestUpdatePageRevisions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	p, err := m.CreatePage(ctx, PageInput{Title: "Draft", Content: "v1", AuthorID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.ContentDraft || p.PublishedAt != nil {
		t.Fatalf("new page = %+v", p)
	}

	p, err = m.UpdatePage(ctx, p.ID, PageUpdate{Content: ptr("v2"), Status: ptr(models.ContentPublished), EditorID: 2})
	if err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}
	if p.PublishedAt == nil {
		t.Fatal("published_at not set on publish")
	}
	stored, err := m.Page(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	firstPublish := *stored.PublishedAt

	p, err = m.UpdatePage(ctx, p.ID, PageUpdate{Title: ptr("Final"), Content: ptr("v3"), Slug: ptr("Final Page")})
	if err != nil {
		t.Fatal(err)
	}
	if p.Slug != "final-page" || !p.PublishedAt.Equal(firstPublish) {
		t.Errorf("page after second update = %+v", p)
	}

	revs, err := m.Revisions(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range revs {
		got = append(got, r.Title+":"+r.Content)
	}
	if diff := cmp.Diff([]string{"Draft:v2", "Draft:v1"}, got); diff != "" {
		t.Errorf("revisions (-want +got):\n%s", diff)
	}

	restored, err := m.RestoreRevision(ctx, revs[1].ID, 3)
	if err != nil {
		t.Fatalf("RestoreRevision: %v", err)
	}
	if restored.Title != "Draft" || restored.Content != "v1" || restored.Slug != "final-page" {
		t.Errorf("restored page = %+v", restored)
	}
	if revs, _ = m.Revisions(ctx, p.ID); len(revs) != 3 {
		t.Errorf("restore did not record a revision: %d", len(revs))
	}
	if _, err := m.RestoreRevision(ctx, 9999, 1); !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("unknown revision = %v", err)
	}

	if n, err := m.PruneRevisions(ctx, 1); err != nil || n != 2 {
		t.Errorf("PruneRevisions = %d, %v", n, err)
	}
	if _, err := m.UpdatePage(ctx, 9999, PageUpdate{}); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("update unknown = %v", err)
	}
}

func TestSearchAndDeletePages(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	mk := func(title, body, status string) *models.Page {
		p, err := m.CreatePage(ctx, PageInput{Title: title, Content: body, Status: status})
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	mk("Go Tips", "tooling", models.ContentPublished)
	mk("Recipes", "Learning GO the hard way", models.ContentPublished)
	hidden := mk("Go Secrets", "draft", models.ContentDraft)

	res, err := m.Search(ctx, "go")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("Search found %d pages", len(res))
	}
	if res, _ := m.Search(ctx, "  "); res != nil {
		t.Errorf("blank query returned %v", res)
	}

	if _, err := m.PublishedPageBySlug(ctx, hidden.Slug); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("draft visible by slug: %v", err)
	}
	if n, _ := m.CountPages(ctx, models.ContentPublished); n != 2 {
		t.Errorf("published count = %d", n)
	}

	if _, err := m.UpdatePage(ctx, hidden.ID, PageUpdate{Content: ptr("x")}); err != nil {
		t.Fatal(err)
	}
	if err := m.DeletePage(ctx, hidden.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.DeletePage(ctx, hidden.ID, 1); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("second delete = %v", err)
	}
	if revs, _ := m.Revisions(ctx, hidden.ID); len(revs) != 0 {
		t.Errorf("revisions survived delete: %d", len(revs))
	}
	all, _ := m.ListPages(ctx, "")
	if len(all) != 2 {
		t.Errorf("ListPages = %d pages", len(all))
	}
}

func TestPosts(t *testing.T) {
	m, registry := newTestManager(t)
	ctx := context.Background()

	cat := &models.Category{Name: "News"}
	if _, err := m.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}

	var published []any
	registry.AddAction(hooks.PostPublished, func(_ context.Context, args ...any) {
		published = append(published, args[0])
	}, hooks.DefaultPriority)

	draft := &models.Post{Title: "Launch", AuthorID: 1, CategoryID: &cat.ID, Tags: " Go, news ,go", Content: "*hi*", Format: models.FormatMarkdown}
	if _, err := m.CreatePost(ctx, draft); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if draft.Tags != "go,news" || draft.Slug != "launch" {
		t.Errorf("draft = %+v", draft)
	}
	if len(published) != 0 {
		t.Error("draft fired post_published")
	}
	if _, err := m.PostBySlug(ctx, "launch"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("draft visible by slug: %v", err)
	}

	draft.Status = models.ContentPublished
	if err := m.UpdatePost(ctx, draft); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdatePost(ctx, draft); err != nil {
		t.Fatal(err)
	}
	if len(published) != 1 || published[0] != draft.ID {
		t.Errorf("post_published args = %v", published)
	}

	second := &models.Post{Title: "Launch", AuthorID: 1, Status: models.ContentPublished, Tags: "release"}
	if _, err := m.CreatePost(ctx, second); err != nil {
		t.Fatal(err)
	}
	if second.Slug != "launch-1" || second.PublishedAt == nil {
		t.Errorf("second post = %+v", second)
	}

	got, err := m.PostBySlug(ctx, "launch")
	if err != nil {
		t.Fatal(err)
	}
	if got.CategoryName != "News" {
		t.Errorf("category name = %q", got.CategoryName)
	}
	for i := 0; i < 2; i++ {
		if err := m.IncrementViews(ctx, got.ID); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ = m.Post(ctx, got.ID); got.Views != 2 {
		t.Errorf("views = %d", got.Views)
	}

	posts, total, err := m.PublishedPosts(ctx, 1, 1)
	if err != nil || total != 2 || len(posts) != 1 {
		t.Fatalf("PublishedPosts = %d of %d, %v", len(posts), total, err)
	}
	if posts, total, _ = m.Posts(ctx, PostQuery{Tag: "GO"}); total != 1 || posts[0].ID != draft.ID {
		t.Errorf("tag filter total = %d", total)
	}
	if _, total, _ = m.Posts(ctx, PostQuery{CategoryID: cat.ID}); total != 1 {
		t.Errorf("category filter total = %d", total)
	}

	if err := m.SetPostStatus(ctx, second.ID, models.ContentTrash); err != nil {
		t.Fatal(err)
	}
	if _, total, _ = m.Posts(ctx, PostQuery{}); total != 1 {
		t.Errorf("trash listed by default: %d", total)
	}

	if err := m.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ = m.Post(ctx, draft.ID); got.CategoryID != nil {
		t.Errorf("post still in deleted category %d", *got.CategoryID)
	}
	if err := m.DeletePost(ctx, draft.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Post(ctx, draft.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("deleted post = %v", err)
	}
}

func TestCategories(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	parent := &models.Category{Name: "Tech", SortOrder: 2}
	child := &models.Category{Name: "Go Lang", SortOrder: 1}
	for _, c := range []*models.Category{parent, child} {
		if _, err := m.CreateCategory(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.CreateCategory(ctx, &models.Category{Name: "tech"}); err == nil {
		t.Error("duplicate slug accepted")
	}
	child.ParentID = &parent.ID
	if err := m.UpdateCategory(ctx, child); err != nil {
		t.Fatal(err)
	}
	parent.ParentID = &parent.ID
	if err := m.UpdateCategory(ctx, parent); err == nil {
		t.Error("self parent accepted")
	}

	cats, err := m.Categories(ctx)
	if err != nil || len(cats) != 2 || cats[0].Slug != "go-lang" {
		t.Fatalf("Categories = %+v, %v", cats, err)
	}
	if c, _ := m.CategoryBySlug(ctx, "go-lang"); c.ParentID == nil || *c.ParentID != parent.ID {
		t.Errorf("parent not stored: %+v", c)
	}
	if err := m.DeleteCategory(ctx, parent.ID); err != nil {
		t.Fatal(err)
	}
	if c, _ := m.Category(ctx, child.ID); c.ParentID != nil {
		t.Error("child kept deleted parent")
	}
	if err := m.DeleteCategory(ctx, parent.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestRender(t *testing.T) {
	registry := hooks.New()
	r := NewRenderer(registry, 10)
	ctx := context.Background()

	md := string(r.Render(ctx, "# Title\n\n**bold** <script>alert(1)</script>", models.FormatMarkdown))
	if !strings.Contains(md, "<strong>bold</strong>") || !strings.Contains(md, "<h1") {
		t.Errorf("markdown not rendered: %s", md)
	}
	if strings.Contains(md, "<script>") {
		t.Errorf("script survived: %s", md)
	}

	html := string(r.Render(ctx, `<p onclick="x()">hi</p>`, models.FormatHTML))
	if html != "<p>hi</p>" {
		t.Errorf("html body = %q", html)
	}

	registry.AddFilter(hooks.TheContent, func(_ context.Context, v any, _ ...any) any {
		return v.(string) + "<!-- filtered -->"
	}, hooks.DefaultPriority)
	if got := string(r.Render(ctx, `<p onclick="x()">hi</p>`, models.FormatHTML)); got != "<p>hi</p><!-- filtered -->" {
		t.Errorf("filter not applied to cached body: %q", got)
	}
	if hits, _, size := r.cache.Stats(); hits != 1 || size != 2 {
		t.Errorf("cache hits %d size %d", hits, size)
	}
}
