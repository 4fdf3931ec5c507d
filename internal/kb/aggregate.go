package kb

import (
	"math"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// computeAggregates reduces a record set to fleet-wide statistics. The empty
// set yields a zero-valued stats object rather than dividing by zero.
func computeAggregates(records map[string]models.ServiceRecord, builtAt time.Time) models.AggregateStats {
	stats := models.AggregateStats{
		TotalServices: len(records),
		LastUpdated:   builtAt,
	}
	if len(records) == 0 {
		return stats
	}

	var scoreSum float64
	var errorSum, errorN float64
	var responseSum, responseN float64

	for _, r := range records {
		switch r.Status {
		case models.StatusHealthy:
			stats.HealthyCount++
		case models.StatusWarning:
			stats.WarningCount++
		case models.StatusCritical:
			stats.CriticalCount++
		}

		scoreSum += float64(r.HealthScore)
		stats.TotalProblems += r.ProblemCount
		if r.ProblemCount > 0 {
			stats.ServicesWithProblems++
		}

		if v, ok := r.Metrics.Lookup(models.MetricErrorCount); ok {
			errorSum += v
			errorN++
		}
		if v, ok := r.Metrics.Lookup(models.MetricResponseTime); ok {
			responseSum += v
			responseN++
		}
	}

	total := float64(stats.TotalServices)
	stats.HealthyPercentage = float64(stats.HealthyCount) / total * 100
	stats.AvgHealthScore = round1(scoreSum / total)
	if errorN > 0 {
		stats.AvgErrorCount = round1(errorSum / errorN)
	}
	if responseN > 0 {
		stats.AvgResponseTime = round1(responseSum / responseN)
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
