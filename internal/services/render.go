package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Listings are truncated so prompts and template answers stay readable.
const listingLimit = 10

// renderContext produces the compact data block handed to the answer
// generator together with the original question.
func renderContext(result models.QueryResult) string {
	switch result.Action {
	case models.ActionAggregate:
		if result.Stats == nil {
			return "No statistics available."
		}
		return aggregateContext(*result.Stats)
	case models.ActionFilter:
		if len(result.Records) == 0 {
			return "No services match the criteria."
		}
		lines := []string{fmt.Sprintf("Found %d matching services:", len(result.Records))}
		for _, rec := range head(result.Records) {
			lines = append(lines, fmt.Sprintf("- %s (%s)", rec.DisplayName, rec.Status))
		}
		if extra := len(result.Records) - listingLimit; extra > 0 {
			lines = append(lines, fmt.Sprintf("... and %d more", extra))
		}
		return strings.Join(lines, "\n")
	case models.ActionCount:
		count := 0
		if result.Count != nil {
			count = *result.Count
		}
		return fmt.Sprintf("Count: %d services", count)
	default:
		return rankingContext(result.Records)
	}
}

func rankingContext(records []models.ServiceRecord) string {
	lines := make([]string, 0, len(records))
	for i, rec := range head(records) {
		lines = append(lines, fmt.Sprintf(
			"%d. %s: health=%d, status=%s, errors=%s, response=%sms, failure=%s%%, problems=%d",
			i+1, rec.DisplayName, rec.HealthScore, rec.Status,
			metricOrNA(rec, models.MetricErrorCount),
			metricOrNA(rec, models.MetricResponseTime),
			metricOrNA(rec, models.MetricFailureRate),
			rec.ProblemCount))
	}
	return strings.Join(lines, "\n")
}

func aggregateContext(s models.AggregateStats) string {
	return fmt.Sprintf(`Total services: %d
Healthy: %d (%.1f%%)
Warning: %d
Critical: %d
Average health score: %.1f/100
Total problems: %d
Services with problems: %d
Average errors: %.1f
Average response time: %.1fms`,
		s.TotalServices,
		s.HealthyCount, s.HealthyPercentage,
		s.WarningCount,
		s.CriticalCount,
		s.AvgHealthScore,
		s.TotalProblems,
		s.ServicesWithProblems,
		s.AvgErrorCount,
		s.AvgResponseTime)
}

// templateAnswer renders the deterministic answer used when no generator is
// configured or generation fails.
func templateAnswer(q models.StructuredQuery, result models.QueryResult) string {
	switch result.Action {
	case models.ActionRank:
		if len(result.Records) == 0 {
			return "No services found matching that criteria."
		}
		metric := q.Metric
		if metric == "" {
			metric = "health_score"
		}
		label := strings.ReplaceAll(metric, "_", " ")
		lines := []string{fmt.Sprintf("Here are the top %d services by %s:", len(result.Records), label), ""}
		for i, rec := range result.Records {
			value := "N/A"
			if v, ok := rec.NumericField(metric); ok {
				value = trimFloat(v)
			}
			lines = append(lines, fmt.Sprintf("%d. %s (%s): %s %s", i+1, rec.DisplayName, rec.Status, label, value))
		}
		return strings.Join(lines, "\n")

	case models.ActionFilter:
		if len(result.Records) == 0 {
			return "No services match that criteria."
		}
		lines := []string{fmt.Sprintf("Found %d services:", len(result.Records)), ""}
		for _, rec := range head(result.Records) {
			lines = append(lines, fmt.Sprintf("- %s (%s)", rec.DisplayName, rec.Status))
		}
		if extra := len(result.Records) - listingLimit; extra > 0 {
			lines = append(lines, fmt.Sprintf("... and %d more services", extra))
		}
		return strings.Join(lines, "\n")

	case models.ActionCompare:
		if len(result.Records) == 0 {
			return "None of those services were found."
		}
		lines := []string{fmt.Sprintf("Comparing %d services:", len(result.Records)), ""}
		for _, rec := range result.Records {
			lines = append(lines, fmt.Sprintf("- %s: health %d/100, status %s, %d open problems",
				rec.DisplayName, rec.HealthScore, rec.Status, rec.ProblemCount))
		}
		return strings.Join(lines, "\n")

	case models.ActionCount:
		count := 0
		if result.Count != nil {
			count = *result.Count
		}
		if count == 1 {
			return "There is 1 matching service."
		}
		return fmt.Sprintf("There are %d matching services.", count)

	default:
		if result.Stats == nil {
			return "No statistics are available yet."
		}
		s := *result.Stats
		return fmt.Sprintf(`Overall service health:
- Total services: %d
- Healthy: %d (%.1f%%), warning: %d, critical: %d
- Average health score: %.1f/100
- Open problems: %d across %d services
- Average errors: %.1f, average response time: %.1fms`,
			s.TotalServices,
			s.HealthyCount, s.HealthyPercentage, s.WarningCount, s.CriticalCount,
			s.AvgHealthScore,
			s.TotalProblems, s.ServicesWithProblems,
			s.AvgErrorCount, s.AvgResponseTime)
	}
}

func head(records []models.ServiceRecord) []models.ServiceRecord {
	if len(records) > listingLimit {
		return records[:listingLimit]
	}
	return records
}

func metricOrNA(rec models.ServiceRecord, name models.MetricName) string {
	v, ok := rec.Metrics.Lookup(name)
	if !ok {
		return "N/A"
	}
	return trimFloat(v)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
