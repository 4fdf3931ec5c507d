package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Service is one entry of the monitoring backend's service listing.
type Service struct {
	EntityID        string   `json:"entityId"`
	DisplayName     string   `json:"displayName"`
	ServiceType     string   `json:"serviceType"`
	Tags            []string `json:"tags"`
	ManagementZones []string `json:"managementZones"`
}

// EntityRef is the backend's nested entity reference shape.
type EntityRef struct {
	EntityID struct {
		ID string `json:"id"`
	} `json:"entityId"`
}

// Problem is an open problem as returned by the backend, including the
// entity-association fields consumed by the knowledge-base join step.
type Problem struct {
	ProblemID        string      `json:"problemId"`
	Title            string      `json:"title"`
	SeverityLevel    string      `json:"severityLevel"`
	Relevance        string      `json:"relevance"`
	ImpactedEntities []EntityRef `json:"impactedEntities"`
	AffectedEntities []EntityRef `json:"affectedEntities"`
	RootCauseEntity  *EntityRef  `json:"rootCauseEntity"`
}

// ToModel strips the association fields, which are not retained on records.
func (p Problem) ToModel() models.Problem {
	return models.Problem{
		ProblemID:     p.ProblemID,
		Title:         p.Title,
		SeverityLevel: p.SeverityLevel,
		Relevance:     p.Relevance,
	}
}

// MonitorClient wraps the monitoring backend's service, metric and problem APIs.
type MonitorClient struct {
	baseURL      string
	apiToken     string
	servicesPath string
	metricsPath  string
	problemsPath string
	httpClient   *http.Client
}

// NewMonitorClient constructs a client targeting the configured backend.
func NewMonitorClient(cfg config.MonitorConfig) *MonitorClient {
	return &MonitorClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:     cfg.APIToken,
		servicesPath: cfg.ServicesPath,
		metricsPath:  cfg.MetricsPath,
		problemsPath: cfg.ProblemsPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ListServices fetches the service listing. The backend may return fewer
// entries than limit.
func (c *MonitorClient) ListServices(ctx context.Context, limit int) ([]Service, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("monitor client not configured")
	}

	var response struct {
		Services []Service `json:"services"`
	}
	query := url.Values{"pageSize": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, c.resolvePath(c.servicesPath), query, &response); err != nil {
		return nil, fmt.Errorf("monitor services request failed: %w", err)
	}
	return response.Services, nil
}

// GetServiceMetrics fetches the metric snapshot for one service over the
// given timeframe. Non-numeric metric values are dropped from the result.
func (c *MonitorClient) GetServiceMetrics(ctx context.Context, entityID, timeframe string) (models.MetricMap, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("monitor client not configured")
	}

	var response struct {
		Metrics map[string]any `json:"metrics"`
	}
	query := url.Values{
		"entityId": {entityID},
		"from":     {"now-" + timeframe},
	}
	if err := c.getJSON(ctx, c.resolvePath(c.metricsPath), query, &response); err != nil {
		return nil, fmt.Errorf("monitor metrics request failed: %w", err)
	}

	metrics := make(models.MetricMap, len(response.Metrics))
	for name, raw := range response.Metrics {
		if v, ok := numeric(raw); ok {
			metrics[models.MetricName(name)] = v
		}
	}
	return metrics, nil
}

// GetAllOpenProblems fetches up to limit open problems across the fleet.
func (c *MonitorClient) GetAllOpenProblems(ctx context.Context, limit int) ([]Problem, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("monitor client not configured")
	}

	var response struct {
		Problems []Problem `json:"problems"`
	}
	query := url.Values{
		"status":   {"OPEN"},
		"pageSize": {strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, c.resolvePath(c.problemsPath), query, &response); err != nil {
		return nil, fmt.Errorf("monitor problems request failed: %w", err)
	}
	return response.Problems, nil
}

// AnalyzeMetrics derives a coarse insight from a metric snapshot. Thresholds
// mirror the backend's built-in baseline alerts.
func (c *MonitorClient) AnalyzeMetrics(metrics models.MetricMap) models.Insight {
	insight := models.Insight{Status: models.StatusHealthy}
	if len(metrics) == 0 {
		insight.Status = models.StatusUnknown
		return insight
	}

	worsen := func(s models.Status, concern string) {
		insight.Concerns = append(insight.Concerns, concern)
		if s == models.StatusCritical {
			insight.Status = models.StatusCritical
		} else if insight.Status != models.StatusCritical {
			insight.Status = models.StatusWarning
		}
	}

	if v, ok := metrics.Lookup(models.MetricFailureRate); ok {
		if v > 10 {
			worsen(models.StatusCritical, fmt.Sprintf("failure rate %.1f%% above critical threshold", v))
		} else if v > 5 {
			worsen(models.StatusWarning, fmt.Sprintf("failure rate %.1f%% elevated", v))
		}
	}
	if v, ok := metrics.Lookup(models.MetricErrorCount); ok {
		if v > 1000 {
			worsen(models.StatusCritical, fmt.Sprintf("error count %.0f above critical threshold", v))
		} else if v > 100 {
			worsen(models.StatusWarning, fmt.Sprintf("error count %.0f elevated", v))
		}
	}
	if v, ok := metrics.Lookup(models.MetricResponseTime); ok {
		if v > 2000 {
			worsen(models.StatusCritical, fmt.Sprintf("response time %.0fms above critical threshold", v))
		} else if v > 1000 {
			worsen(models.StatusWarning, fmt.Sprintf("response time %.0fms elevated", v))
		}
	}
	return insight
}

func (c *MonitorClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *MonitorClient) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Api-Token "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monitor backend returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
