package router

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/pterm/pterm"

	"github.com/thushan/ngsiproxy/internal/logger"
)

// Route groups decide which middleware a route is wrapped in when wired up
type Group string

const (
	GroupProxy    Group = "proxy"    // broker relay, rate limited
	GroupCatalog  Group = "catalog"  // resource writes, size and rate limited
	GroupInternal Group = "internal" // health, version and metrics, never limited
)

type RouteInfo struct {
	Handler     http.Handler
	Pattern     string
	Description string
	Method      string
	Group       Group
	Order       int
}

type RouteRegistry struct {
	routes     map[string]RouteInfo
	middleware map[Group][]func(http.Handler) http.Handler
	logger     logger.StyledLogger
	out        io.Writer
	orderSeq   int
}

func NewRouteRegistry(logger logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{
		routes:     make(map[string]RouteInfo),
		middleware: make(map[Group][]func(http.Handler) http.Handler),
		logger:     logger,
		out:        os.Stdout,
	}
}

// SetOutput redirects the startup routes table
func (r *RouteRegistry) SetOutput(w io.Writer) {
	r.out = w
}

// Use appends middleware for every route in group, first added runs outermost
func (r *RouteRegistry) Use(group Group, mw ...func(http.Handler) http.Handler) {
	r.middleware[group] = append(r.middleware[group], mw...)
}

func (r *RouteRegistry) Register(method, pattern string, handler http.HandlerFunc, description string, group Group) {
	key := method + " " + pattern
	r.routes[key] = RouteInfo{
		Handler:     handler,
		Pattern:     pattern,
		Description: description,
		Method:      method,
		Group:       group,
		Order:       r.orderSeq,
	}
	r.orderSeq++
}

// WireUp installs every route on mux using method qualified patterns
func (r *RouteRegistry) WireUp(mux *http.ServeMux) {
	for key, info := range r.routes {
		handler := info.Handler
		chain := r.middleware[info.Group]
		for i := len(chain) - 1; i >= 0; i-- {
			handler = chain[i](handler)
		}
		mux.Handle(key, handler)
	}
	r.logRoutesTable()
}

func (r *RouteRegistry) sorted() []RouteInfo {
	entries := make([]RouteInfo, 0, len(r.routes))
	for _, info := range r.routes {
		entries = append(entries, info)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})
	return entries
}

func (r *RouteRegistry) logRoutesTable() {
	if len(r.routes) == 0 {
		return
	}

	entries := r.sorted()
	tableData := [][]string{
		{"ROUTE", "METHOD", "GROUP", "DESCRIPTION"},
	}
	for _, entry := range entries {
		tableData = append(tableData, []string{entry.Pattern, entry.Method, string(entry.Group), entry.Description})
	}

	r.logger.InfoWithCount("Registered web routes", len(entries))
	tableString, _ := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	fmt.Fprint(r.out, tableString)
}

func (r *RouteRegistry) GetRoutes() []RouteInfo {
	return r.sorted()
}
