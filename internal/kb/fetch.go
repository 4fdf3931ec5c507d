package kb

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/repo"
)

// serviceEntityPrefix marks entity ids the problem join attributes to services.
const serviceEntityPrefix = "SERVICE-"

// Source defines the monitoring backend operations consumed by the builder.
type Source interface {
	ListServices(ctx context.Context, limit int) ([]repo.Service, error)
	GetServiceMetrics(ctx context.Context, entityID, timeframe string) (models.MetricMap, error)
	AnalyzeMetrics(metrics models.MetricMap) models.Insight
	GetAllOpenProblems(ctx context.Context, limit int) ([]repo.Problem, error)
}

// serviceData pairs one service's metric snapshot with its derived insight.
type serviceData struct {
	Metrics models.MetricMap
	Insight models.Insight
}

// fetcher drives retrieval of fleet state, tolerating per-service failures.
type fetcher struct {
	logger       *slog.Logger
	source       Source
	serviceLimit int
	problemLimit int
	maxWorkers   int
	batchPause   time.Duration
}

// fetchServices performs the single service-list call.
func (f *fetcher) fetchServices(ctx context.Context) ([]repo.Service, error) {
	services, err := f.source.ListServices(ctx, f.serviceLimit)
	if err != nil {
		return nil, err
	}
	return services, nil
}

// fetchAllMetrics retrieves metric snapshots for every service in batches of
// at most maxWorkers, with one concurrent request per service inside a batch
// and a pause between batches to respect backend rate limits. A per-service
// failure is logged and the service is simply absent from the result.
func (f *fetcher) fetchAllMetrics(ctx context.Context, services []repo.Service, timeframe string) map[string]serviceData {
	results := make(map[string]serviceData, len(services))
	var mu sync.Mutex

	batchSize := f.maxWorkers
	if batchSize <= 0 || batchSize > 10 {
		batchSize = 10
	}

	for i := 0; i < len(services); i += batchSize {
		end := min(i+batchSize, len(services))

		var wg sync.WaitGroup
		for _, svc := range services[i:end] {
			wg.Add(1)
			go func(svc repo.Service) {
				defer wg.Done()
				metrics, err := f.source.GetServiceMetrics(ctx, svc.EntityID, timeframe)
				if err != nil {
					f.logger.Warn("metrics fetch failed",
						slog.String("service", svc.DisplayName), slog.Any("error", err))
					return
				}
				insight := f.source.AnalyzeMetrics(metrics)
				mu.Lock()
				results[svc.EntityID] = serviceData{Metrics: metrics, Insight: insight}
				mu.Unlock()
			}(svc)
		}
		wg.Wait()

		if end < len(services) && f.batchPause > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(f.batchPause):
			}
		}
	}
	return results
}

// fetchProblems retrieves all open problems and joins them to services: every
// service entity id found among a problem's impacted entities, affected
// entities or root cause (de-duplicated per problem) receives the problem. A
// problem can therefore be attributed to more than one service.
func (f *fetcher) fetchProblems(ctx context.Context) ([]repo.Problem, map[string][]models.Problem) {
	problems, err := f.source.GetAllOpenProblems(ctx, f.problemLimit)
	if err != nil {
		f.logger.Warn("problem fetch failed", slog.Any("error", err))
		return nil, map[string][]models.Problem{}
	}

	byService := make(map[string][]models.Problem)
	for _, p := range problems {
		for entityID := range problemServiceEntities(p) {
			byService[entityID] = append(byService[entityID], p.ToModel())
		}
	}
	return problems, byService
}

func problemServiceEntities(p repo.Problem) map[string]struct{} {
	ids := make(map[string]struct{})
	add := func(id string) {
		if strings.HasPrefix(id, serviceEntityPrefix) {
			ids[id] = struct{}{}
		}
	}
	for _, e := range p.ImpactedEntities {
		add(e.EntityID.ID)
	}
	for _, e := range p.AffectedEntities {
		add(e.EntityID.ID)
	}
	if p.RootCauseEntity != nil {
		add(p.RootCauseEntity.EntityID.ID)
	}
	return ids
}
