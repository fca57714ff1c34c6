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
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
)

// Params holds the values captured by a pattern route.
type Params struct {
	names  []string
	Values []string
}

// Get returns the value captured for name, or "".
func (p Params) Get(name string) string {
	for i, n := range p.names {
		if n == name && i < len(p.Values) {
			return p.Values[i]
		}
	}
	return ""
}

// HandlerFunc handles a routed request.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, p Params)

type paramsKey struct{}

// ParamsFromContext returns the params of a route added with HandleFunc.
func ParamsFromContext(ctx context.Context) Params {
	p, _ := ctx.Value(paramsKey{}).(Params)
	return p
}

// PageSource finds and renders dynamic pages.
type PageSource interface {
	PublishedPageBySlug(ctx context.Context, slug string) (*models.Page, error)
	RenderPage(ctx context.Context, p *models.Page) template.HTML
}

// Renderer renders theme templates.
type Renderer interface {
	RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any)
}

// Config holds the site location.
type Config struct {
	BasePath string
	SiteURL  string
}

type route struct {
	method  string
	pattern string
	re      *regexp.Regexp
	names   []string
	handler HandlerFunc
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

// Router is the site dispatcher.
type Router struct {
	cfg    Config
	pages  PageSource
	render Renderer
	log    zerolog.Logger

	mu       sync.RWMutex
	routes   []*route
	index    map[string]*route
	exact    map[string]*route
	notFound HandlerFunc
}

// PageData is the template data of a dynamic page.
type PageData struct {
	Page    *models.Page
	Content template.HTML
}

// ViewedPage identifies the page for page view tracking.
func (d *PageData) ViewedPage() (*int64, string, string) {
	id := d.Page.ID
	return &id, d.Page.Slug, d.Page.Title
}

var paramPattern = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)

// New creates a router. pages and render may be nil in tests; without
// them page fallback is skipped and 404 is plain text.
func New(cfg Config, pages PageSource, render Renderer) *Router {
	cfg.BasePath = "/" + strings.Trim(cfg.BasePath, "/")
	if cfg.BasePath == "/" {
		cfg.BasePath = ""
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Router{
		cfg:    cfg,
		pages:  pages,
		render: render,
		log:    logging.WithComponent("router"),
		index:  make(map[string]*route),
		exact:  make(map[string]*route),
	}
}

// SetRenderer replaces the template renderer. It must be called before
// the router serves requests.
func (rt *Router) SetRenderer(render Renderer) {
	rt.render = render
}

// AddRoute registers h for method and pattern. ":name" segments match
// [a-zA-Z0-9_-]+. Re-adding a method and pattern replaces the handler.
func (rt *Router) AddRoute(method, pattern string, h HandlerFunc) {
	method = strings.ToUpper(method)
	pattern = "/" + strings.Trim(pattern, "/")
	key := method + " " + pattern

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if existing, ok := rt.index[key]; ok {
		// Dispatch calls handlers outside the lock, so the route is
		// swapped rather than mutated.
		r := *existing
		r.handler = h
		rt.index[key] = &r
		if _, ok := rt.exact[key]; ok {
			rt.exact[key] = &r
		}
		routes := make([]*route, len(rt.routes))
		for i, old := range rt.routes {
			if old == existing {
				old = &r
			}
			routes[i] = old
		}
		rt.routes = routes
		return
	}
	r := &route{method: method, pattern: pattern, handler: h}
	if strings.Contains(pattern, ":") {
		for _, m := range paramPattern.FindAllStringSubmatch(pattern, -1) {
			r.names = append(r.names, m[1])
		}
		expr := paramPattern.ReplaceAllString(regexp.QuoteMeta(pattern), `([a-zA-Z0-9_-]+)`)
		r.re = regexp.MustCompile("^" + expr + "$")
	} else {
		rt.exact[key] = r
	}
	rt.index[key] = r
	rt.routes = append(rt.routes, r)
}

// HandleFunc registers a plain http.HandlerFunc. Captured params are
// available through ParamsFromContext.
func (rt *Router) HandleFunc(method, pattern string, h http.HandlerFunc) {
	rt.AddRoute(method, pattern, func(w http.ResponseWriter, r *http.Request, p Params) {
		h(w, r.WithContext(context.WithValue(r.Context(), paramsKey{}, p)))
	})
}

// Get registers a GET route.
func (rt *Router) Get(pattern string, h HandlerFunc) { rt.AddRoute(http.MethodGet, pattern, h) }

// Post registers a POST route.
func (rt *Router) Post(pattern string, h HandlerFunc) { rt.AddRoute(http.MethodPost, pattern, h) }

// GetPost registers h for both GET and POST.
func (rt *Router) GetPost(pattern string, h HandlerFunc) {
	rt.Get(pattern, h)
	rt.Post(pattern, h)
}

// SetNotFound replaces the 404 handler.
func (rt *Router) SetNotFound(h HandlerFunc) {
	rt.mu.Lock()
	rt.notFound = h
	rt.mu.Unlock()
}

// Routes lists the registered routes in registration order.
func (rt *Router) Routes() []RouteInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]RouteInfo, len(rt.routes))
	for i, r := range rt.routes {
		out[i] = RouteInfo{Method: r.method, Pattern: r.pattern}
	}
	return out
}

// NormalizePath strips the query, the base path and surrounding slashes
// and returns "/" + the rest.
func NormalizePath(path, basePath string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if basePath != "" && basePath != "/" {
		if path == basePath {
			path = "/"
		} else if strings.HasPrefix(path, basePath+"/") {
			path = path[len(basePath):]
		}
	}
	return "/" + strings.Trim(path, "/")
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.Dispatch(w, r)
}

// Dispatch routes one request.
func (rt *Router) Dispatch(w http.ResponseWriter, r *http.Request) {
	path := NormalizePath(r.URL.Path, rt.cfg.BasePath)
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	rt.mu.RLock()
	exact := rt.exact[method+" "+path]
	routes := rt.routes
	rt.mu.RUnlock()

	if exact != nil {
		metrics.RouterDispatches.WithLabelValues("exact").Inc()
		exact.handler(w, r, Params{})
		return
	}
	for _, rte := range routes {
		if rte.re == nil || rte.method != method {
			continue
		}
		m := rte.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		metrics.RouterDispatches.WithLabelValues("pattern").Inc()
		rte.handler(w, r, Params{names: rte.names, Values: m[1:]})
		return
	}

	if method == http.MethodGet && rt.servePage(w, r, path) {
		metrics.RouterDispatches.WithLabelValues("page").Inc()
		return
	}
	metrics.RouterDispatches.WithLabelValues("not_found").Inc()
	rt.NotFound(w, r)
}

func (rt *Router) servePage(w http.ResponseWriter, r *http.Request, path string) bool {
	if rt.pages == nil || rt.render == nil {
		return false
	}
	slug := strings.Trim(path, "/")
	if slug == "" {
		slug = "home"
	}
	page, err := rt.pages.PublishedPageBySlug(r.Context(), slug)
	if err != nil {
		if !isNotFound(err) {
			logging.Ctx(r.Context()).Error().Err(err).Str("slug", slug).Msg("Page lookup failed")
		}
		return false
	}
	rt.render.RenderStatus(w, r, http.StatusOK, "page", &PageData{Page: page, Content: rt.pages.RenderPage(r.Context(), page)})
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, content.ErrPageNotFound) || database.IsNotFound(err)
}

// NotFound renders the theme's 404 template with status 404.
func (rt *Router) NotFound(w http.ResponseWriter, r *http.Request) {
	rt.mu.RLock()
	h := rt.notFound
	rt.mu.RUnlock()
	if h != nil {
		h(w, r, Params{})
		return
	}
	if rt.render == nil {
		http.NotFound(w, r)
		return
	}
	rt.render.RenderStatus(w, r, http.StatusNotFound, "404", nil)
}

// URL returns the absolute URL of a site path.
func (rt *Router) URL(path string) string {
	return rt.cfg.SiteURL + rt.cfg.BasePath + "/" + strings.TrimLeft(path, "/")
}

// Redirect sends a 302. Relative targets are prefixed with the site URL.
func (rt *Router) Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		target = rt.URL(target)
	}
	http.Redirect(w, r, target, http.StatusFound)
}
