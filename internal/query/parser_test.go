package query

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/cache"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

type fakeSemantic struct {
	query models.StructuredQuery
	err   error
	calls int
}

func (f *fakeSemantic) ParseQuestion(ctx context.Context, question string) (models.StructuredQuery, error) {
	f.calls++
	if f.err != nil {
		return models.StructuredQuery{}, f.err
	}
	return f.query, nil
}

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func TestParseRuleTable(t *testing.T) {
	cases := []struct {
		question string
		want     models.StructuredQuery
	}{
		{
			"Which service has the highest failure rate?",
			models.StructuredQuery{Action: models.ActionRank, Metric: "failure_rate", Order: "desc", Limit: 5},
		},
		{
			"Top services by errors",
			models.StructuredQuery{Action: models.ActionRank, Metric: "error_count", Order: "desc", Limit: 5},
		},
		{
			"What are the worst response times?",
			models.StructuredQuery{Action: models.ActionRank, Metric: "response_time", Order: "desc", Limit: 5},
		},
		{
			"Which services have the most problems?",
			models.StructuredQuery{Action: models.ActionRank, Metric: "problem_count", Order: "desc", Limit: 5},
		},
		{
			"What are my most unhealthy services?",
			models.StructuredQuery{Action: models.ActionRank, Metric: "health_score", Order: "asc", Limit: 5},
		},
		{
			"What are the healthiest services by health score?",
			models.StructuredQuery{Action: models.ActionRank, Metric: "health_score", Order: "desc", Limit: 5},
		},
		{
			"Best services by error rate",
			models.StructuredQuery{Action: models.ActionRank, Metric: "error_count", Order: "asc", Limit: 5},
		},
		{
			"Give me an overview of overall health",
			models.StructuredQuery{Action: models.ActionAggregate, Scope: "all"},
		},
		{
			"services with issues",
			models.StructuredQuery{Action: models.ActionFilter, Condition: "problem_count > 0"},
		},
		{
			"services with more than 250 errors",
			models.StructuredQuery{Action: models.ActionFilter, Condition: "error_count > 250"},
		},
		{
			"services with errors",
			models.StructuredQuery{Action: models.ActionFilter, Condition: "error_count > 100"},
		},
		{
			"show critical services",
			models.StructuredQuery{Action: models.ActionFilter, Condition: "status == 'critical'"},
		},
		{
			"list warning services",
			models.StructuredQuery{Action: models.ActionFilter, Condition: "status == 'warning'"},
		},
		{
			"how many services do we have?",
			models.StructuredQuery{Action: models.ActionCount, Scope: "all"},
		},
	}

	parser := NewParser(nil, nil, 0, discardLogger())
	for _, tc := range cases {
		got, tier := parser.Parse(context.Background(), tc.question)
		if tier != TierRules {
			t.Fatalf("%q: tier = %s, want rules", tc.question, tier)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: query = %+v, want %+v", tc.question, got, tc.want)
		}
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	// "which" alone would hit the list rule, but the superlative rule
	// is ordered first.
	parser := NewParser(nil, nil, 0, discardLogger())
	got, _ := parser.Parse(context.Background(), "which service has the highest problem count")
	if got.Action != models.ActionRank || got.Metric != "problem_count" {
		t.Fatalf("superlative rule must shadow list rule, got %+v", got)
	}
}

func TestParseFallbackWithoutSemanticParser(t *testing.T) {
	parser := NewParser(nil, nil, 0, discardLogger())
	got, tier := parser.Parse(context.Background(), "tell me a joke")
	if tier != TierFallback {
		t.Fatalf("tier = %s, want fallback", tier)
	}
	want := models.StructuredQuery{Action: models.ActionAggregate, Scope: "all"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fallback query = %+v, want %+v", got, want)
	}
}

func TestParseSemanticFallbackAndCache(t *testing.T) {
	semantic := &fakeSemantic{
		query: models.StructuredQuery{Action: models.ActionRank, Metric: "failure_rate", Order: "desc", Limit: 3},
	}
	store := newMemCache()
	parser := NewParser(semantic, store, time.Minute, discardLogger())

	question := "tell me about degradation trends"
	got, tier := parser.Parse(context.Background(), question)
	if tier != TierSemantic {
		t.Fatalf("tier = %s, want semantic", tier)
	}
	if !reflect.DeepEqual(got, semantic.query) {
		t.Fatalf("semantic query = %+v", got)
	}

	// The second parse of the same question is served from cache.
	got, tier = parser.Parse(context.Background(), question)
	if tier != TierCache {
		t.Fatalf("tier = %s, want cache", tier)
	}
	if !reflect.DeepEqual(got, semantic.query) {
		t.Fatalf("cached query = %+v", got)
	}
	if semantic.calls != 1 {
		t.Fatalf("semantic parser called %d times, want 1", semantic.calls)
	}
}

func TestParseCacheKeyNormalizesCase(t *testing.T) {
	semantic := &fakeSemantic{
		query: models.StructuredQuery{Action: models.ActionCount, Scope: "all"},
	}
	parser := NewParser(semantic, newMemCache(), time.Minute, discardLogger())

	parser.Parse(context.Background(), "Anything Unusual Lately?")
	_, tier := parser.Parse(context.Background(), "anything unusual lately?")
	if tier != TierCache {
		t.Fatalf("case-insensitive repeat should hit cache, tier = %s", tier)
	}
}

func TestParseSemanticErrorFallsBack(t *testing.T) {
	semantic := &fakeSemantic{err: errors.New("provider down")}
	parser := NewParser(semantic, newMemCache(), time.Minute, discardLogger())

	got, tier := parser.Parse(context.Background(), "tell me a joke")
	if tier != TierFallback {
		t.Fatalf("tier = %s, want fallback", tier)
	}
	if got.Action != models.ActionAggregate {
		t.Fatalf("fallback query = %+v", got)
	}
}

func TestParseCorruptCacheEntryDropped(t *testing.T) {
	semantic := &fakeSemantic{
		query: models.StructuredQuery{Action: models.ActionCount, Scope: "all"},
	}
	store := newMemCache()
	question := "anything odd going on"
	store.entries[parsedQueryKey(question)] = []byte("{not json")

	parser := NewParser(semantic, store, time.Minute, discardLogger())
	got, tier := parser.Parse(context.Background(), question)
	if tier != TierSemantic {
		t.Fatalf("corrupt entry must fall through to semantic, tier = %s", tier)
	}
	if got.Action != models.ActionCount {
		t.Fatalf("query = %+v", got)
	}
}
