package query

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

var statusPattern = regexp.MustCompile(`status\s*==\s*['"](\w+)['"]`)

// evalCondition interprets a single binary comparison against a record.
// Exactly one of three forms is supported, checked in priority order:
// status equality, greater-than, less-than. A condition containing both
// comparison operators resolves on the first branch that matches.
// Malformed conditions and missing or non-numeric fields evaluate false.
func evalCondition(logger *slog.Logger, rec models.ServiceRecord, condition string) bool {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return false
	}

	if strings.Contains(cond, "status") && strings.Contains(cond, "==") {
		if m := statusPattern.FindStringSubmatch(cond); m != nil {
			return string(rec.Status) == m[1]
		}
	}

	if strings.Contains(cond, ">") {
		return compareNumeric(logger, rec, cond, ">")
	}
	if strings.Contains(cond, "<") {
		return compareNumeric(logger, rec, cond, "<")
	}

	logger.Warn("unsupported condition", slog.String("condition", condition))
	return false
}

func compareNumeric(logger *slog.Logger, rec models.ServiceRecord, cond, op string) bool {
	parts := strings.SplitN(cond, op, 2)
	field := strings.TrimSpace(parts[0])

	threshold, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		logger.Warn("malformed condition threshold",
			slog.String("condition", cond),
			slog.String("error", err.Error()))
		return false
	}

	value, ok := rec.NumericField(field)
	if !ok {
		return false
	}
	if op == ">" {
		return value > threshold
	}
	return value < threshold
}
