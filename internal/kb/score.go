package kb

import "github.com/fleetwatch/fleetwatch/internal/models"

// HealthScore maps a service's metric snapshot and open problems to a score
// in [0,100]. Deductions are independent and only the first matching band
// per metric applies, evaluated from the highest threshold down. Missing
// metrics contribute no deduction.
func HealthScore(metrics models.MetricMap, problems []models.Problem) int {
	score := 100

	if v, ok := metrics.Lookup(models.MetricErrorCount); ok {
		switch {
		case v > 1000:
			score -= 40
		case v > 500:
			score -= 30
		case v > 100:
			score -= 20
		case v > 10:
			score -= 10
		}
	}

	if v, ok := metrics.Lookup(models.MetricResponseTime); ok {
		switch {
		case v > 2000:
			score -= 30
		case v > 1000:
			score -= 20
		case v > 500:
			score -= 10
		}
	}

	if v, ok := metrics.Lookup(models.MetricFailureRate); ok {
		switch {
		case v > 10:
			score -= 40
		case v > 5:
			score -= 25
		case v > 2:
			score -= 15
		case v > 1:
			score -= 5
		}
	}

	for _, p := range problems {
		if p.IsCritical() {
			score -= 15
		} else {
			score -= 8
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}

// DetermineStatus classifies a service from its open problems and the metric
// insight. The classification is independent of the numeric health score; the
// two signals are never reconciled against each other.
func DetermineStatus(insightStatus models.Status, problems []models.Problem) models.Status {
	for _, p := range problems {
		if p.IsCritical() {
			return models.StatusCritical
		}
	}
	if insightStatus == models.StatusCritical {
		return models.StatusCritical
	}
	if len(problems) > 0 || insightStatus == models.StatusWarning {
		return models.StatusWarning
	}
	return models.StatusHealthy
}
