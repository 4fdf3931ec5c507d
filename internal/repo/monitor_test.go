package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		BaseURL:      "https://monitor.example.com",
		APIToken:     "token-123",
		ServicesPath: "/api/v2/entities/services",
		MetricsPath:  "/api/v2/metrics/query",
		ProblemsPath: "/api/v2/problems",
		Timeout:      time.Second,
	}
}

func jsonResponse(t *testing.T, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestListServices(t *testing.T) {
	client := NewMonitorClient(testMonitorConfig())
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v2/entities/services" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Api-Token token-123" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		if got := req.URL.Query().Get("pageSize"); got != "200" {
			t.Fatalf("unexpected pageSize: %q", got)
		}
		return jsonResponse(t, map[string]any{
			"services": []map[string]any{
				{"entityId": "SERVICE-1", "displayName": "checkout", "serviceType": "Web"},
				{"entityId": "SERVICE-2", "displayName": "payments", "serviceType": "Database"},
			},
		}), nil
	}))

	services, err := client.ListServices(context.Background(), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(services) != 2 || services[0].DisplayName != "checkout" {
		t.Fatalf("unexpected services: %+v", services)
	}
}

func TestGetServiceMetricsDropsNonNumeric(t *testing.T) {
	client := NewMonitorClient(testMonitorConfig())
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("entityId"); got != "SERVICE-1" {
			t.Fatalf("unexpected entityId: %q", got)
		}
		if got := req.URL.Query().Get("from"); got != "now-2h" {
			t.Fatalf("unexpected from: %q", got)
		}
		return jsonResponse(t, map[string]any{
			"metrics": map[string]any{
				"error_count":   150,
				"response_time": 620.5,
				"failure_rate":  "N/A",
			},
		}), nil
	}))

	metrics, err := client.GetServiceMetrics(context.Background(), "SERVICE-1", "2h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := metrics.Value(models.MetricErrorCount); got != 150 {
		t.Fatalf("error_count = %v, want 150", got)
	}
	if _, ok := metrics.Lookup(models.MetricFailureRate); ok {
		t.Fatalf("non-numeric failure_rate should be dropped")
	}
}

func TestGetAllOpenProblems(t *testing.T) {
	client := NewMonitorClient(testMonitorConfig())
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("status"); got != "OPEN" {
			t.Fatalf("unexpected status filter: %q", got)
		}
		return jsonResponse(t, map[string]any{
			"problems": []map[string]any{
				{
					"problemId":     "P-1",
					"title":         "Response time degradation",
					"severityLevel": "ERROR",
					"impactedEntities": []map[string]any{
						{"entityId": map[string]any{"id": "SERVICE-1"}},
					},
					"rootCauseEntity": map[string]any{"entityId": map[string]any{"id": "HOST-9"}},
				},
			},
		}), nil
	}))

	problems, err := client.GetAllOpenProblems(context.Background(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(problems) != 1 {
		t.Fatalf("expected one problem, got %d", len(problems))
	}
	p := problems[0]
	if p.ImpactedEntities[0].EntityID.ID != "SERVICE-1" {
		t.Fatalf("unexpected impacted entity: %+v", p.ImpactedEntities)
	}
	if p.RootCauseEntity == nil || p.RootCauseEntity.EntityID.ID != "HOST-9" {
		t.Fatalf("unexpected root cause: %+v", p.RootCauseEntity)
	}
	if !p.ToModel().IsCritical() {
		t.Fatalf("ERROR severity should map to a critical problem")
	}
}

func TestGetJSONNonOKStatus(t *testing.T) {
	client := NewMonitorClient(testMonitorConfig())
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Status:     "403 Forbidden",
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
		}, nil
	}))

	if _, err := client.ListServices(context.Background(), 10); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestAnalyzeMetrics(t *testing.T) {
	client := NewMonitorClient(testMonitorConfig())

	healthy := client.AnalyzeMetrics(models.MetricMap{models.MetricErrorCount: 5})
	if healthy.Status != models.StatusHealthy {
		t.Fatalf("expected healthy, got %s", healthy.Status)
	}

	warning := client.AnalyzeMetrics(models.MetricMap{models.MetricResponseTime: 1500})
	if warning.Status != models.StatusWarning {
		t.Fatalf("expected warning, got %s", warning.Status)
	}

	critical := client.AnalyzeMetrics(models.MetricMap{
		models.MetricFailureRate:  12,
		models.MetricResponseTime: 1500,
	})
	if critical.Status != models.StatusCritical {
		t.Fatalf("expected critical, got %s", critical.Status)
	}
	if len(critical.Concerns) != 2 {
		t.Fatalf("expected two concerns, got %v", critical.Concerns)
	}

	unknown := client.AnalyzeMetrics(nil)
	if unknown.Status != models.StatusUnknown {
		t.Fatalf("expected unknown for empty metrics, got %s", unknown.Status)
	}
}
