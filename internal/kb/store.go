package kb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/utils"
)

// BuildState tracks the store's build lifecycle.
type BuildState string

const (
	StateIdle     BuildState = "idle"
	StateBuilding BuildState = "building"
	StateReady    BuildState = "ready"
	StateError    BuildState = "error"
)

// Options controls knowledge-base construction.
type Options struct {
	Timeframe    string
	MaxWorkers   int
	BatchPause   time.Duration
	ServiceLimit int
	ProblemLimit int
}

// snapshot is one immutable knowledge-base generation: the record set, its
// indexes and aggregate stats, always produced and published together.
type snapshot struct {
	records   map[string]models.ServiceRecord
	byEntity  map[string]string
	problems  map[string]models.Problem
	stats     models.AggregateStats
	builtAt   time.Time
	buildTime time.Duration
}

// KnowledgeBase holds the current fleet snapshot and the build state machine.
// Builds assemble the next generation in a private workspace and publish it
// with a single pointer swap; readers never observe a mix of two generations.
type KnowledgeBase struct {
	logger *slog.Logger
	fetch  *fetcher
	opts   Options

	mu       sync.RWMutex
	snap     *snapshot
	state    BuildState
	buildErr string
}

// New constructs a knowledge base over the given monitoring source.
func New(logger *slog.Logger, source Source, opts Options) *KnowledgeBase {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := utils.ParseTimeframe(opts.Timeframe); err != nil {
		if opts.Timeframe != "" {
			logger.Warn("invalid timeframe, using default",
				slog.String("timeframe", opts.Timeframe))
		}
		opts.Timeframe = "2h"
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.ServiceLimit <= 0 {
		opts.ServiceLimit = 200
	}
	if opts.ProblemLimit <= 0 {
		opts.ProblemLimit = 500
	}
	return &KnowledgeBase{
		logger: logger,
		fetch: &fetcher{
			logger:       logger,
			source:       source,
			serviceLimit: opts.ServiceLimit,
			problemLimit: opts.ProblemLimit,
			maxWorkers:   opts.MaxWorkers,
			batchPause:   opts.BatchPause,
		},
		opts:  opts,
		state: StateIdle,
	}
}

// Build fetches the fleet state and publishes a new generation. A call while
// a build is already in progress is a no-op. A failed build records the error
// and retains the previous snapshot, if any.
func (kb *KnowledgeBase) Build(ctx context.Context) error {
	kb.mu.Lock()
	if kb.state == StateBuilding {
		kb.mu.Unlock()
		kb.logger.Warn("build already in progress, skipping")
		return nil
	}
	kb.state = StateBuilding
	kb.buildErr = ""
	kb.mu.Unlock()

	start := time.Now()
	snap, err := kb.assemble(ctx)
	elapsed := time.Since(start)

	kb.mu.Lock()
	defer kb.mu.Unlock()
	if err != nil {
		kb.state = StateError
		kb.buildErr = err.Error()
		metrics.ObserveBuild(elapsed, metrics.OutcomeError)
		kb.logger.Error("knowledge base build failed", slog.Any("error", err))
		return err
	}

	snap.buildTime = elapsed
	kb.snap = snap
	kb.state = StateReady
	metrics.ObserveBuild(elapsed, metrics.OutcomeSuccess)
	kb.logger.Info("knowledge base ready",
		slog.Int("services", len(snap.records)),
		slog.Duration("elapsed", elapsed))
	return nil
}

// assemble runs the fetch pipeline and builds the next generation without
// touching the published snapshot.
func (kb *KnowledgeBase) assemble(ctx context.Context) (*snapshot, error) {
	services, err := kb.fetch.fetchServices(ctx)
	if err != nil {
		// Total listing failure aborts the build so a prior good snapshot
		// is never replaced by an empty one.
		return nil, fmt.Errorf("fetch services: %w", err)
	}
	kb.logger.Info("fetched service list", slog.Int("count", len(services)))

	data := kb.fetch.fetchAllMetrics(ctx, services, kb.opts.Timeframe)
	kb.logger.Info("fetched service metrics", slog.Int("count", len(data)))

	allProblems, problemsByService := kb.fetch.fetchProblems(ctx)
	kb.logger.Info("fetched open problems", slog.Int("count", len(allProblems)))

	snap := &snapshot{
		records:  make(map[string]models.ServiceRecord, len(services)),
		byEntity: make(map[string]string, len(services)),
		problems: make(map[string]models.Problem),
		builtAt:  time.Now().UTC(),
	}

	for _, svc := range services {
		name := svc.DisplayName
		if name == "" {
			name = svc.EntityID
		}

		sd := data[svc.EntityID]
		svcMetrics := sd.Metrics
		if svcMetrics == nil {
			svcMetrics = models.MetricMap{}
		}
		insight := sd.Insight
		if insight.Status == "" {
			insight.Status = models.StatusUnknown
		}
		problems := problemsByService[svc.EntityID]

		// Display name is the primary key; a later service with the same
		// name overwrites the earlier one.
		snap.records[name] = models.ServiceRecord{
			EntityID:        svc.EntityID,
			DisplayName:     name,
			Type:            svc.ServiceType,
			Metrics:         svcMetrics,
			Problems:        problems,
			ProblemCount:    len(problems),
			HealthScore:     HealthScore(svcMetrics, problems),
			Status:          DetermineStatus(insight.Status, problems),
			Insights:        insight,
			Tags:            svc.Tags,
			ManagementZones: svc.ManagementZones,
		}
		snap.byEntity[svc.EntityID] = name

		for _, p := range problems {
			if p.ProblemID != "" {
				snap.problems[p.ProblemID] = p
			}
		}
	}

	snap.stats = computeAggregates(snap.records, snap.builtAt)
	return snap, nil
}

// IsReady reports whether at least one build has completed successfully and
// no build is currently in progress.
func (kb *KnowledgeBase) IsReady() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.snap != nil && kb.state != StateBuilding
}

// GetRecord returns the record for one service by exact display name.
func (kb *KnowledgeBase) GetRecord(name string) (models.ServiceRecord, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.snap == nil {
		return models.ServiceRecord{}, false
	}
	r, ok := kb.snap.records[name]
	return r, ok
}

// AllRecords returns every record of the current generation, sorted by
// display name for deterministic downstream ordering.
func (kb *KnowledgeBase) AllRecords() []models.ServiceRecord {
	kb.mu.RLock()
	snap := kb.snap
	kb.mu.RUnlock()
	if snap == nil {
		return nil
	}

	records := make([]models.ServiceRecord, 0, len(snap.records))
	for _, r := range snap.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DisplayName < records[j].DisplayName
	})
	return records
}

// Stats returns the aggregate statistics of the current generation.
func (kb *KnowledgeBase) Stats() (models.AggregateStats, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.snap == nil {
		return models.AggregateStats{}, false
	}
	return kb.snap.stats, true
}

// ServiceNameByEntity resolves a backend entity id to a display name.
func (kb *KnowledgeBase) ServiceNameByEntity(entityID string) (string, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.snap == nil {
		return "", false
	}
	name, ok := kb.snap.byEntity[entityID]
	return name, ok
}

// ProblemByID returns an indexed problem from the current generation.
func (kb *KnowledgeBase) ProblemByID(id string) (models.Problem, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.snap == nil {
		return models.Problem{}, false
	}
	p, ok := kb.snap.problems[id]
	return p, ok
}

// Status reports the store's build state for the status surface.
func (kb *KnowledgeBase) Status() models.KBStatus {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	status := models.KBStatus{
		Ready:    kb.snap != nil && kb.state != StateBuilding,
		Building: kb.state == StateBuilding,
		Error:    kb.buildErr,
	}
	if kb.snap != nil {
		status.ServiceCount = len(kb.snap.records)
		status.LastUpdated = kb.snap.builtAt
	}
	return status
}
