// Package adminmenu keeps the admin console's page registry. Each page has a
// screen id derived from its parent menu and slug; asset hooks use the screen
// id to decide which styles and scripts a page loads.
package adminmenu

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

var (
	ErrDuplicatePage = errors.New("adminmenu: page already registered")
	ErrInvalidPage   = errors.New("adminmenu: page needs a parent, slug and title")
)

// Page is one screen in the admin console.
type Page struct {
	Parent     string // parent menu slug, e.g. "pilito-sync"
	Slug       string // page slug, e.g. "pilito-ps-settings"
	Title      string
	MenuTitle  string
	Capability string
	Path       string // URL path the page is served at
}

// ScreenID returns the identifier hooks compare against,
// "<parent>_page_<slug>".
func (p Page) ScreenID() string {
	return p.Parent + "_page_" + p.Slug
}

// AssetKind tells a layout whether an asset is a stylesheet or a script.
type AssetKind int

const (
	Style AssetKind = iota
	Script
)

// Asset is a stylesheet or script a page enqueues.
type Asset struct {
	Handle  string
	Kind    AssetKind
	Src     string   // path under /assets/
	Deps    []string // handles that must load first
	Version string
}

// URL returns Src with a ?ver= cache-buster when Version is set.
func (a Asset) URL() string {
	if a.Version == "" {
		return a.Src
	}
	sep := "?"
	if strings.Contains(a.Src, "?") {
		sep = "&"
	}
	return a.Src + sep + "ver=" + url.QueryEscape(a.Version)
}

// AssetHook returns the assets to load on screenID, or nil.
type AssetHook func(screenID string) []Asset

// Registry holds the pages and asset hooks. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	pages  map[string]Page
	hooks  []AssetHook
	shared map[string]Asset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]Page), shared: make(map[string]Asset)}
}

// AddPage registers p and returns its screen id.
func (reg *Registry) AddPage(p Page) (string, error) {
	if p.Parent == "" || p.Slug == "" || p.Title == "" {
		return "", ErrInvalidPage
	}
	id := p.ScreenID()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.pages[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicatePage, id)
	}
	reg.pages[id] = p
	return id, nil
}

// Page returns the page with screenID.
func (reg *Registry) Page(screenID string) (Page, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	p, ok := reg.pages[screenID]
	return p, ok
}

// Pages returns all pages ordered by parent then title.
func (reg *Registry) Pages() []Page {
	reg.mu.RLock()
	out := make([]Page, 0, len(reg.pages))
	for _, p := range reg.pages {
		out = append(out, p)
	}
	reg.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return out[i].Parent < out[j].Parent
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// RegisterShared makes a dependency asset (such as the admin-ajax helper)
// available to any page whose assets name it in Deps.
func (reg *Registry) RegisterShared(a Asset) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.shared[a.Handle] = a
}

// OnEnqueue adds an asset hook.
func (reg *Registry) OnEnqueue(h AssetHook) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.hooks = append(reg.hooks, h)
}

// Assets runs every hook for screenID and returns the result with shared
// dependencies placed before their dependents. Each handle appears once.
func (reg *Registry) Assets(screenID string) []Asset {
	reg.mu.RLock()
	hooks := append([]AssetHook(nil), reg.hooks...)
	shared := make(map[string]Asset, len(reg.shared))
	for k, v := range reg.shared {
		shared[k] = v
	}
	reg.mu.RUnlock()

	var out []Asset
	seen := make(map[string]bool)
	var add func(a Asset)
	add = func(a Asset) {
		if seen[a.Handle] {
			return
		}
		seen[a.Handle] = true
		for _, dep := range a.Deps {
			if d, ok := shared[dep]; ok {
				add(d)
			}
		}
		out = append(out, a)
	}

	for _, h := range hooks {
		for _, a := range h(screenID) {
			add(a)
		}
	}
	return out
}
