package query

import (
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

type fakeStore struct {
	records  []models.ServiceRecord
	stats    models.AggregateStats
	hasStats bool
}

func (f *fakeStore) AllRecords() []models.ServiceRecord {
	return append([]models.ServiceRecord(nil), f.records...)
}

func (f *fakeStore) GetRecord(name string) (models.ServiceRecord, bool) {
	for _, rec := range f.records {
		if rec.DisplayName == name {
			return rec, true
		}
	}
	return models.ServiceRecord{}, false
}

func (f *fakeStore) Stats() (models.AggregateStats, bool) {
	return f.stats, f.hasStats
}

func fleetStore() *fakeStore {
	return &fakeStore{
		records: []models.ServiceRecord{
			{
				DisplayName: "checkout",
				Status:      models.StatusCritical,
				HealthScore: 55,
				Metrics:     models.MetricMap{models.MetricErrorCount: 150},
			},
			{
				DisplayName: "payments",
				Status:      models.StatusHealthy,
				HealthScore: 100,
				Metrics:     models.MetricMap{models.MetricErrorCount: 5},
			},
			{
				DisplayName: "inventory",
				Status:      models.StatusCritical,
				HealthScore: 40,
				Metrics:     models.MetricMap{models.MetricErrorCount: 1200},
			},
		},
		stats: models.AggregateStats{
			TotalServices: 3,
			HealthyCount:  1,
			CriticalCount: 2,
			LastUpdated:   time.Now(),
		},
		hasStats: true,
	}
}

func names(records []models.ServiceRecord) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.DisplayName
	}
	return out
}

func TestExecuteRankDescWithLimit(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())
	result := exec.Execute(models.StructuredQuery{
		Action: models.ActionRank,
		Metric: "error_count",
		Order:  "desc",
		Limit:  2,
	})

	got := names(result.Records)
	if len(got) != 2 || got[0] != "inventory" || got[1] != "checkout" {
		t.Fatalf("rank order = %v, want [inventory checkout]", got)
	}
}

func TestExecuteRankAscending(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())
	result := exec.Execute(models.StructuredQuery{
		Action: models.ActionRank,
		Metric: "health_score",
		Order:  "asc",
	})

	got := names(result.Records)
	if got[0] != "inventory" || got[len(got)-1] != "payments" {
		t.Fatalf("asc rank order = %v", got)
	}
}

func TestExecuteRankMissingMetricTreatedAsZero(t *testing.T) {
	store := fleetStore()
	store.records[1].Metrics = models.MetricMap{}

	exec := NewExecutor(store, discardLogger())
	result := exec.Execute(models.StructuredQuery{
		Action: models.ActionRank,
		Metric: "error_count",
		Order:  "asc",
		Limit:  1,
	})

	if got := names(result.Records); len(got) != 1 || got[0] != "payments" {
		t.Fatalf("missing metric should rank as zero, got %v", got)
	}
}

func TestExecuteRankDefaults(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 8; i++ {
		store.records = append(store.records, models.ServiceRecord{
			DisplayName: string(rune('a' + i)),
			HealthScore: 50 + i,
		})
	}

	exec := NewExecutor(store, discardLogger())
	result := exec.Execute(models.StructuredQuery{Action: models.ActionRank})
	if len(result.Records) != defaultRankLimit {
		t.Fatalf("default limit not applied: %d records", len(result.Records))
	}
	if result.Records[0].HealthScore != 57 {
		t.Fatalf("default metric/order should rank health_score desc, top = %d",
			result.Records[0].HealthScore)
	}
}

func TestExecuteFilterByCondition(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())
	result := exec.Execute(models.StructuredQuery{
		Action:    models.ActionFilter,
		Condition: "error_count > 100",
	})

	got := names(result.Records)
	if len(got) != 2 || got[0] != "checkout" || got[1] != "inventory" {
		t.Fatalf("filter result = %v, want [checkout inventory]", got)
	}
}

func TestExecuteFilterByStatus(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())
	result := exec.Execute(models.StructuredQuery{
		Action:    models.ActionFilter,
		Condition: "status == 'healthy'",
	})

	if got := names(result.Records); len(got) != 1 || got[0] != "payments" {
		t.Fatalf("status filter result = %v", got)
	}
}

func TestExecuteAggregate(t *testing.T) {
	store := fleetStore()
	exec := NewExecutor(store, discardLogger())
	result := exec.Execute(models.StructuredQuery{Action: models.ActionAggregate, Scope: "all"})

	if result.Stats == nil || result.Stats.TotalServices != 3 {
		t.Fatalf("aggregate stats missing or wrong: %+v", result.Stats)
	}
}

func TestExecuteCompareSkipsUnknown(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())
	result := exec.Execute(models.StructuredQuery{
		Action:   models.ActionCompare,
		Services: []string{"payments", "nonexistent", "checkout"},
	})

	got := names(result.Records)
	if len(got) != 2 || got[0] != "payments" || got[1] != "checkout" {
		t.Fatalf("compare must keep input order and skip unknowns: %v", got)
	}
}

func TestExecuteCount(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())

	result := exec.Execute(models.StructuredQuery{Action: models.ActionCount})
	if result.Count == nil || *result.Count != 3 {
		t.Fatalf("unconditioned count = %v, want 3", result.Count)
	}

	result = exec.Execute(models.StructuredQuery{
		Action:    models.ActionCount,
		Condition: "status == 'critical'",
	})
	if result.Count == nil || *result.Count != 2 {
		t.Fatalf("conditioned count = %v, want 2", result.Count)
	}
	if len(result.Records) != 2 {
		t.Fatalf("count must also return the matching records, got %d", len(result.Records))
	}
}

func TestExecuteUnknownActionDefaultsToAggregate(t *testing.T) {
	exec := NewExecutor(fleetStore(), discardLogger())
	result := exec.Execute(models.StructuredQuery{Action: "explode"})
	if result.Action != models.ActionAggregate || result.Stats == nil {
		t.Fatalf("unknown action should aggregate, got %+v", result)
	}
}
