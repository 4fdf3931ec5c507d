package query

import (
	"log/slog"
	"sort"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

const defaultRankLimit = 5

// Store is the knowledge-base surface the executor reads from.
type Store interface {
	AllRecords() []models.ServiceRecord
	GetRecord(name string) (models.ServiceRecord, bool)
	Stats() (models.AggregateStats, bool)
}

// Executor interprets structured queries against a knowledge-base snapshot.
type Executor struct {
	store  Store
	logger *slog.Logger
}

// NewExecutor creates an Executor over the given store.
func NewExecutor(store Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, logger: logger}
}

// Execute runs one structured query. Unknown actions fall back to aggregate.
func (e *Executor) Execute(q models.StructuredQuery) models.QueryResult {
	switch q.Action {
	case models.ActionRank:
		return e.rank(q)
	case models.ActionFilter:
		return e.filter(q)
	case models.ActionAggregate:
		return e.aggregate()
	case models.ActionCompare:
		return e.compare(q)
	case models.ActionCount:
		return e.count(q)
	default:
		e.logger.Warn("unknown query action", slog.String("action", string(q.Action)))
		return e.aggregate()
	}
}

func (e *Executor) rank(q models.StructuredQuery) models.QueryResult {
	metric := q.Metric
	if metric == "" {
		metric = "health_score"
	}

	records := e.store.AllRecords()
	// Records without the metric rank as zero rather than being dropped.
	sort.SliceStable(records, func(i, j int) bool {
		vi, _ := records[i].NumericField(metric)
		vj, _ := records[j].NumericField(metric)
		if q.Order == "asc" {
			return vi < vj
		}
		return vi > vj
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultRankLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return models.QueryResult{Action: models.ActionRank, Records: records}
}

func (e *Executor) filter(q models.StructuredQuery) models.QueryResult {
	filtered := make([]models.ServiceRecord, 0)
	for _, rec := range e.store.AllRecords() {
		if evalCondition(e.logger, rec, q.Condition) {
			filtered = append(filtered, rec)
		}
	}
	return models.QueryResult{Action: models.ActionFilter, Records: filtered}
}

func (e *Executor) aggregate() models.QueryResult {
	stats, _ := e.store.Stats()
	return models.QueryResult{Action: models.ActionAggregate, Stats: &stats}
}

func (e *Executor) compare(q models.StructuredQuery) models.QueryResult {
	records := make([]models.ServiceRecord, 0, len(q.Services))
	for _, name := range q.Services {
		rec, ok := e.store.GetRecord(name)
		if !ok {
			e.logger.Debug("compare skipping unknown service", slog.String("service", name))
			continue
		}
		records = append(records, rec)
	}
	return models.QueryResult{Action: models.ActionCompare, Records: records}
}

func (e *Executor) count(q models.StructuredQuery) models.QueryResult {
	records := e.store.AllRecords()
	if q.Condition != "" {
		kept := records[:0]
		for _, rec := range records {
			if evalCondition(e.logger, rec, q.Condition) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	n := len(records)
	return models.QueryResult{Action: models.ActionCount, Records: records, Count: &n}
}
