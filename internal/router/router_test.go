// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/models"
)

type rendered struct {
	status int
	name   string
	data   any
}

type fakeRenderer struct {
	calls []rendered
}

func (f *fakeRenderer) RenderStatus(w http.ResponseWriter, _ *http.Request, status int, name string, data any) {
	f.calls = append(f.calls, rendered{status: status, name: name, data: data})
	w.WriteHeader(status)
	_, _ = w.Write([]byte("template:" + name))
}

func (f *fakeRenderer) last(t *testing.T) rendered {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("nothing rendered")
	}
	return f.calls[len(f.calls)-1]
}

type fakePages struct {
	pages map[string]*models.Page
	err   error
}

func (f *fakePages) PublishedPageBySlug(_ context.Context, slug string) (*models.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pages[slug]
	if !ok {
		return nil, content.ErrPageNotFound
	}
	return p, nil
}

func (f *fakePages) RenderPage(_ context.Context, p *models.Page) template.HTML {
	return template.HTML("<p>" + p.Content + "</p>")
}

func newTestRouter() (*Router, *fakeRenderer, *fakePages) {
	render := &fakeRenderer{}
	pages := &fakePages{pages: map[string]*models.Page{
		"home":  {ID: 1, Slug: "home", Title: "Home", Content: "welcome"},
		"about": {ID: 2, Slug: "about", Title: "About", Content: "about us"},
	}}
	return New(Config{SiteURL: "https://example.com/"}, pages, render), render, pages
}

func serve(rt *Router, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	rt.Dispatch(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path, base, want string
	}{
		{"/", "", "/"},
		{"", "", "/"},
		{"/about/", "", "/about"},
		{"/about?x=1", "", "/about"},
		{"/cms", "/cms", "/"},
		{"/cms/blog/post/", "/cms", "/blog/post"},
		{"/cmsx/page", "/cms", "/cmsx/page"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.path, tt.base); got != tt.want {
			t.Errorf("NormalizePath(%q, %q) = %q, want %q", tt.path, tt.base, got, tt.want)
		}
	}
}

func TestDispatchExactAndPattern(t *testing.T) {
	rt, _, _ := newTestRouter()
	var hit string
	rt.Get("/blog/:slug", func(_ http.ResponseWriter, _ *http.Request, p Params) { hit = "pattern:" + p.Get("slug") })
	rt.Get("/blog/latest", func(http.ResponseWriter, *http.Request, Params) { hit = "exact" })

	serve(rt, http.MethodGet, "/blog/latest")
	if hit != "exact" {
		t.Errorf("exact route not preferred: %q", hit)
	}
	serve(rt, http.MethodGet, "/blog/hello-world_2/")
	if hit != "pattern:hello-world_2" {
		t.Errorf("pattern route: %q", hit)
	}
}

func TestPatternsMatchInRegistrationOrder(t *testing.T) {
	rt, _, _ := newTestRouter()
	var hit string
	rt.Get("/:a/:b", func(http.ResponseWriter, *http.Request, Params) { hit = "first" })
	rt.Get("/x/:b", func(http.ResponseWriter, *http.Request, Params) { hit = "second" })
	serve(rt, http.MethodGet, "/x/y")
	if hit != "first" {
		t.Errorf("hit = %q, want first", hit)
	}
}

func TestAddRouteReplacesHandler(t *testing.T) {
	rt, _, _ := newTestRouter()
	var hit int
	rt.Get("/x", func(http.ResponseWriter, *http.Request, Params) { hit = 1 })
	rt.Get("/x/", func(http.ResponseWriter, *http.Request, Params) { hit = 2 })
	serve(rt, http.MethodGet, "/x")
	if hit != 2 {
		t.Errorf("hit = %d, want replacement handler", hit)
	}
	if n := len(rt.Routes()); n != 1 {
		t.Errorf("routes = %d, want 1", n)
	}
}

func TestAddRouteReplacementUnderConcurrentDispatch(t *testing.T) {
	rt, _, _ := newTestRouter()
	var version atomic.Int32
	handlerFor := func(v int32) HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request, _ Params) {
			version.Store(v)
			w.WriteHeader(http.StatusNoContent)
		}
	}
	rt.Get("/swap", handlerFor(1))
	rt.Get("/swap/:id", handlerFor(1))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				serve(rt, http.MethodGet, "/swap")
				serve(rt, http.MethodGet, "/swap/7")
			}
		}()
	}
	for v := int32(2); v <= 50; v++ {
		rt.Get("/swap", handlerFor(v))
		rt.Get("/swap/:id", handlerFor(v))
	}
	wg.Wait()

	rt.Get("/swap", handlerFor(99))
	serve(rt, http.MethodGet, "/swap")
	if got := version.Load(); got != 99 {
		t.Errorf("exact route served version %d, want 99", got)
	}
	rt.Get("/swap/:id", handlerFor(100))
	serve(rt, http.MethodGet, "/swap/7")
	if got := version.Load(); got != 100 {
		t.Errorf("pattern route served version %d, want 100", got)
	}
	if n := len(rt.Routes()); n != 2 {
		t.Errorf("routes = %d, want 2", n)
	}
}

func TestParamsValuesAndContext(t *testing.T) {
	rt, _, _ := newTestRouter()
	var got Params
	rt.HandleFunc(http.MethodGet, "/shop/:cat/:item", func(_ http.ResponseWriter, r *http.Request) {
		got = ParamsFromContext(r.Context())
	})
	serve(rt, http.MethodGet, "/shop/books/go-101")
	if got.Get("cat") != "books" || got.Get("item") != "go-101" || got.Get("missing") != "" {
		t.Errorf("params = %+v", got)
	}
	if len(got.Values) != 2 || got.Values[0] != "books" {
		t.Errorf("values = %v", got.Values)
	}
}

func TestMethodMismatchFallsThrough(t *testing.T) {
	rt, render, _ := newTestRouter()
	rt.Post("/submit", func(http.ResponseWriter, *http.Request, Params) { t.Error("POST handler called for GET") })
	rec := serve(rt, http.MethodGet, "/submit")
	if rec.Code != http.StatusNotFound || render.last(t).name != "404" {
		t.Errorf("code = %d, render = %+v", rec.Code, render.calls)
	}
}

func TestDynamicPageFallback(t *testing.T) {
	rt, render, _ := newTestRouter()

	rec := serve(rt, http.MethodGet, "/about")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	call := render.last(t)
	data, ok := call.data.(*PageData)
	if call.name != "page" || !ok || data.Page.Slug != "about" || data.Content != "<p>about us</p>" {
		t.Errorf("render = %+v", call)
	}

	serve(rt, http.MethodGet, "/")
	if d := render.last(t).data.(*PageData); d.Page.Slug != "home" {
		t.Errorf("root served %q", d.Page.Slug)
	}

	rec = serve(rt, http.MethodGet, "/missing")
	if rec.Code != http.StatusNotFound || render.last(t).name != "404" {
		t.Errorf("missing page: code %d render %+v", rec.Code, render.last(t))
	}

	rec = serve(rt, http.MethodPost, "/about")
	if rec.Code != http.StatusNotFound {
		t.Errorf("POST to page: code %d", rec.Code)
	}
}

func TestPageLookupErrorRendersNotFound(t *testing.T) {
	rt, render, pages := newTestRouter()
	pages.err = errors.New("connection reset")
	rec := serve(rt, http.MethodGet, "/about")
	if rec.Code != http.StatusNotFound || render.last(t).name != "404" {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestHeadUsesGetRoutes(t *testing.T) {
	rt, _, _ := newTestRouter()
	called := false
	rt.Get("/ping", func(http.ResponseWriter, *http.Request, Params) { called = true })
	serve(rt, http.MethodHead, "/ping")
	if !called {
		t.Error("HEAD did not reach GET route")
	}
}

func TestBasePath(t *testing.T) {
	rt := New(Config{BasePath: "/cms/", SiteURL: "https://example.com"}, nil, nil)
	called := false
	rt.Get("/blog", func(http.ResponseWriter, *http.Request, Params) { called = true })
	serve(rt, http.MethodGet, "/cms/blog")
	if !called {
		t.Error("base path not stripped")
	}
	if got := rt.URL("/blog"); got != "https://example.com/cms/blog" {
		t.Errorf("URL = %q", got)
	}
	rec := serve(rt, http.MethodGet, "/cms/nothing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("plain 404 code = %d", rec.Code)
	}
}

func TestRedirect(t *testing.T) {
	rt, _, _ := newTestRouter()
	for target, want := range map[string]string{
		"/login":               "https://example.com/login",
		"https://other.test/x": "https://other.test/x",
	} {
		rec := httptest.NewRecorder()
		rt.Redirect(rec, httptest.NewRequest(http.MethodGet, "/", nil), target)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != want {
			t.Errorf("Redirect(%q): %d %q", target, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestSetNotFound(t *testing.T) {
	rt, _, _ := newTestRouter()
	rt.SetNotFound(func(w http.ResponseWriter, _ *http.Request, _ Params) {
		w.WriteHeader(http.StatusGone)
	})
	if rec := serve(rt, http.MethodGet, "/nope"); rec.Code != http.StatusGone {
		t.Errorf("code = %d", rec.Code)
	}
}
