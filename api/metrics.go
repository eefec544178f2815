package api

import (
	"regexp"
	"sort"
	"sync"
	"time"
)

var (
	objectIDSegment = regexp.MustCompile(`/[0-9a-fA-F]{24}(/|$)`)
	uuidSegment     = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
)

// RouteMetrics aggregates timings for one method and route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// Summary is the overall view served to administrators
type Summary struct {
	Since         time.Time       `json:"since"`
	TotalRequests int64           `json:"totalRequests"`
	TotalErrors   int64           `json:"totalErrors"`
	ErrorRate     float64         `json:"errorRate"`
	Slowest       []*RouteMetrics `json:"slowest"`
}

// Metrics collects per-route request timings in memory
type Metrics struct {
	mu            sync.RWMutex
	since         time.Time
	routes        map[string]*RouteMetrics
	totalRequests int64
	totalErrors   int64
}

// NewMetrics returns an empty collector
func NewMetrics() *Metrics {
	return &Metrics{since: time.Now(), routes: make(map[string]*RouteMetrics)}
}

// Record adds one finished request
func (m *Metrics) Record(method, path string, status int, took time.Duration) {
	path = normalizeRoutePath(path)
	key := method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.routes[key]
	if !ok {
		rm = &RouteMetrics{Method: method, Path: path, MinTime: took}
		m.routes[key] = rm
	}
	rm.Count++
	rm.TotalTime += took
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	if took < rm.MinTime {
		rm.MinTime = took
	}
	if took > rm.MaxTime {
		rm.MaxTime = took
	}
	rm.LastRequest = time.Now()
	m.totalRequests++
	if status >= 400 {
		rm.ErrorCount++
		m.totalErrors++
	}
}

// Summary returns the totals and the slowest routes by average time
func (m *Metrics) Summary(limit int) Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]*RouteMetrics, 0, len(m.routes))
	for _, rm := range m.routes {
		cp := *rm
		routes = append(routes, &cp)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].AvgTime > routes[j].AvgTime })
	if limit > 0 && len(routes) > limit {
		routes = routes[:limit]
	}

	s := Summary{
		Since:         m.since,
		TotalRequests: m.totalRequests,
		TotalErrors:   m.totalErrors,
		Slowest:       routes,
	}
	if m.totalRequests > 0 {
		s.ErrorRate = float64(m.totalErrors) / float64(m.totalRequests)
	}
	return s
}

// normalizeRoutePath replaces id segments with a placeholder, e.g.
// /api/v1/bookings/507f1f77bcf86cd799439011/status -> /api/v1/bookings/{id}/status
func normalizeRoutePath(path string) string {
	for _, p := range []*regexp.Regexp{objectIDSegment, uuidSegment} {
		// run twice so adjacent ids sharing a slash are both replaced
		path = p.ReplaceAllString(path, "/{id}$1")
		path = p.ReplaceAllString(path, "/{id}$1")
	}
	return path
}
