package models

import "time"

// Status classifies a service's overall condition. It is derived from open
// problems and the metric insight, independently of the numeric health score.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// MetricName identifies a numeric metric in a service's metric map.
type MetricName string

const (
	MetricErrorCount   MetricName = "error_count"
	MetricResponseTime MetricName = "response_time"
	MetricFailureRate  MetricName = "failure_rate"
	MetricRequestCount MetricName = "request_count"
)

// MetricMap holds per-service metric samples keyed by metric name. Absent
// metrics are missing keys, never zero placeholders.
type MetricMap map[MetricName]float64

// Value returns the named metric, defaulting to 0 when the sample is absent.
func (m MetricMap) Value(name MetricName) float64 {
	v, _ := m.Lookup(name)
	return v
}

// Lookup returns the named metric and whether a sample exists.
func (m MetricMap) Lookup(name MetricName) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[name]
	return v, ok
}

// Problem is an open monitoring alert attributed to one or more services.
type Problem struct {
	ProblemID     string `json:"problem_id"`
	Title         string `json:"title"`
	SeverityLevel string `json:"severity_level"`
	Relevance     string `json:"relevance,omitempty"`
}

// IsCritical reports whether the problem's severity belongs to the set the
// scorer and classifier treat as critical.
func (p Problem) IsCritical() bool {
	switch p.SeverityLevel {
	case "ERROR", "CUSTOM_ALERT":
		return true
	}
	return false
}

// Insight is the metric analysis produced by the monitoring collaborator.
// The core only reads its status; concerns are passed through for display.
type Insight struct {
	Status   Status   `json:"status"`
	Concerns []string `json:"concerns,omitempty"`
}

// ServiceRecord is the complete per-service state for one knowledge-base
// generation, keyed by display name in the store.
type ServiceRecord struct {
	EntityID        string    `json:"entity_id"`
	DisplayName     string    `json:"display_name"`
	Type            string    `json:"type"`
	Metrics         MetricMap `json:"metrics"`
	Problems        []Problem `json:"problems"`
	ProblemCount    int       `json:"problem_count"`
	HealthScore     int       `json:"health_score"`
	Status          Status    `json:"status"`
	Insights        Insight   `json:"insights"`
	Tags            []string  `json:"tags,omitempty"`
	ManagementZones []string  `json:"management_zones,omitempty"`
}

// NumericField resolves a rankable or filterable value by name. The four
// numeric metric names resolve through the metric map; everything else
// resolves against top-level record fields. The second return reports
// whether a numeric value actually exists for the name.
func (r ServiceRecord) NumericField(name string) (float64, bool) {
	switch MetricName(name) {
	case MetricErrorCount, MetricResponseTime, MetricFailureRate, MetricRequestCount:
		return r.Metrics.Lookup(MetricName(name))
	}
	switch name {
	case "health_score":
		return float64(r.HealthScore), true
	case "problem_count":
		return float64(r.ProblemCount), true
	}
	return 0, false
}

// AggregateStats summarises one knowledge-base generation. It is derived
// entirely from the record set present when the build completed.
type AggregateStats struct {
	TotalServices        int       `json:"total_services"`
	HealthyCount         int       `json:"healthy_count"`
	WarningCount         int       `json:"warning_count"`
	CriticalCount        int       `json:"critical_count"`
	HealthyPercentage    float64   `json:"healthy_percentage"`
	AvgHealthScore       float64   `json:"avg_health_score"`
	TotalProblems        int       `json:"total_problems"`
	ServicesWithProblems int       `json:"services_with_problems"`
	AvgErrorCount        float64   `json:"avg_error_count"`
	AvgResponseTime      float64   `json:"avg_response_time"`
	LastUpdated          time.Time `json:"last_updated"`
}

// KBStatus reports the store's build state for the status endpoint.
type KBStatus struct {
	Ready        bool      `json:"is_ready"`
	Building     bool      `json:"is_building"`
	ServiceCount int       `json:"service_count"`
	LastUpdated  time.Time `json:"last_updated"`
	Error        string    `json:"error,omitempty"`
}
