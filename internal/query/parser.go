package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/cache"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Parser tiers, reported alongside every parse for observability.
const (
	TierRules    = "rules"
	TierCache    = "cache"
	TierSemantic = "semantic"
	TierFallback = "fallback"
)

// SemanticParser translates questions the rule table cannot handle.
type SemanticParser interface {
	ParseQuestion(ctx context.Context, question string) (models.StructuredQuery, error)
}

// Parser turns a free-text question into a StructuredQuery. Tier 1 is an
// ordered rule table evaluated first match wins; tier 2 delegates to the
// semantic parser, with successful results cached by question hash. Parse
// never fails: when both tiers come up empty the fleet-wide aggregate is
// the answer of last resort.
type Parser struct {
	semantic SemanticParser
	cache    cache.Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewParser builds a Parser. Both semantic and cacheProvider are optional;
// a nil cacheProvider disables parsed-query caching.
func NewParser(semantic SemanticParser, cacheProvider cache.Provider, ttl time.Duration, logger *slog.Logger) *Parser {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{semantic: semantic, cache: cacheProvider, ttl: ttl, logger: logger}
}

// Parse returns the structured query for a question and the tier that
// produced it.
func (p *Parser) Parse(ctx context.Context, question string) (models.StructuredQuery, string) {
	if q, ok := matchRules(question); ok {
		return q, TierRules
	}

	key := parsedQueryKey(question)
	if data, err := p.cache.Get(ctx, key); err == nil {
		var q models.StructuredQuery
		if json.Unmarshal(data, &q) == nil && q.Action != "" {
			return q, TierCache
		}
		// A corrupt entry is dropped so the next parse repopulates it.
		_ = p.cache.Del(ctx, key)
	}

	if p.semantic != nil {
		q, err := p.semantic.ParseQuestion(ctx, question)
		if err == nil {
			if data, merr := json.Marshal(q); merr == nil {
				if cerr := p.cache.Set(ctx, key, data, p.ttl); cerr != nil {
					p.logger.Debug("parsed query cache write failed", slog.String("error", cerr.Error()))
				}
			}
			return q, TierSemantic
		}
		p.logger.Warn("semantic parse failed", slog.String("error", err.Error()))
	}

	return models.StructuredQuery{Action: models.ActionAggregate, Scope: "all"}, TierFallback
}

func parsedQueryKey(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(question))))
	return "fleetwatch:query:" + hex.EncodeToString(sum[:])
}

type rule struct {
	match func(q string) bool
	build func(q string) models.StructuredQuery
}

var numberPattern = regexp.MustCompile(`\d+`)

// parseRules is the tier-1 table. Order matters: the first matching rule
// wins, so ranking rules shadow the broader list and count rules below.
var parseRules = []rule{
	{
		match: func(q string) bool { return hasSuperlative(q) && anyOf(q, "failure", "fail") },
		build: func(string) models.StructuredQuery { return rankQuery("failure_rate", "desc") },
	},
	{
		match: func(q string) bool { return hasSuperlative(q) && strings.Contains(q, "error") },
		build: func(string) models.StructuredQuery { return rankQuery("error_count", "desc") },
	},
	{
		match: func(q string) bool { return hasSuperlative(q) && anyOf(q, "slow", "response") },
		build: func(string) models.StructuredQuery { return rankQuery("response_time", "desc") },
	},
	{
		match: func(q string) bool { return hasSuperlative(q) && strings.Contains(q, "problem") },
		build: func(string) models.StructuredQuery { return rankQuery("problem_count", "desc") },
	},
	{
		match: func(q string) bool { return hasSuperlative(q) && anyOf(q, "unhealthy", "bad") },
		build: func(string) models.StructuredQuery { return rankQuery("health_score", "asc") },
	},
	{
		match: func(q string) bool { return hasBestWord(q) && strings.Contains(q, "health") },
		build: func(string) models.StructuredQuery { return rankQuery("health_score", "desc") },
	},
	{
		match: func(q string) bool { return hasBestWord(q) && strings.Contains(q, "error") },
		build: func(string) models.StructuredQuery { return rankQuery("error_count", "asc") },
	},
	{
		match: func(q string) bool {
			return anyOf(q, "overview", "summary", "today", "all", "everything", "status") &&
				anyOf(q, "health", "status", "overview")
		},
		build: func(string) models.StructuredQuery {
			return models.StructuredQuery{Action: models.ActionAggregate, Scope: "all"}
		},
	},
	{
		match: func(q string) bool { return anyOf(q, "with", "having") && anyOf(q, "problem", "issue") },
		build: func(string) models.StructuredQuery { return filterQuery("problem_count > 0") },
	},
	{
		match: func(q string) bool { return anyOf(q, "with", "having") && strings.Contains(q, "error") },
		build: func(q string) models.StructuredQuery {
			threshold := "100"
			if n := numberPattern.FindString(q); n != "" {
				threshold = n
			}
			return filterQuery("error_count > " + threshold)
		},
	},
	{
		match: func(q string) bool {
			return anyOf(q, "show", "list", "which") && anyOf(q, "critical", "warning", "problem")
		},
		build: func(q string) models.StructuredQuery {
			switch {
			case strings.Contains(q, "critical"):
				return filterQuery("status == 'critical'")
			case strings.Contains(q, "warning"):
				return filterQuery("status == 'warning'")
			default:
				return filterQuery("problem_count > 0")
			}
		},
	},
	{
		match: func(q string) bool { return anyOf(q, "how many", "count") },
		build: func(string) models.StructuredQuery {
			return models.StructuredQuery{Action: models.ActionCount, Scope: "all"}
		},
	},
}

func matchRules(question string) (models.StructuredQuery, bool) {
	q := strings.ToLower(question)
	for _, r := range parseRules {
		if r.match(q) {
			return r.build(q), true
		}
	}
	return models.StructuredQuery{}, false
}

func hasSuperlative(q string) bool {
	return anyOf(q, "highest", "worst", "most", "top")
}

func hasBestWord(q string) bool {
	return anyOf(q, "best", "healthiest", "lowest")
}

func anyOf(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

func rankQuery(metric, order string) models.StructuredQuery {
	return models.StructuredQuery{
		Action: models.ActionRank,
		Metric: metric,
		Order:  order,
		Limit:  defaultRankLimit,
	}
}

func filterQuery(condition string) models.StructuredQuery {
	return models.StructuredQuery{Action: models.ActionFilter, Condition: condition}
}
