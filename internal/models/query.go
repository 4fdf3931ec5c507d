package models

// Action tags the kind of structured query produced by the parser.
type Action string

const (
	ActionRank      Action = "rank"
	ActionFilter    Action = "filter"
	ActionAggregate Action = "aggregate"
	ActionCompare   Action = "compare"
	ActionCount     Action = "count"
)

// StructuredQuery is the intermediate representation of an analytical
// question. It is produced by the parser, consumed by the executor, and is
// also the JSON contract with the external semantic parser.
type StructuredQuery struct {
	Action    Action   `json:"action"`
	Metric    string   `json:"metric,omitempty"`
	Order     string   `json:"order,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Services  []string `json:"services,omitempty"`
	Scope     string   `json:"scope,omitempty"`
}

// QueryResult carries the outcome of executing a StructuredQuery. Records is
// set for rank/filter/compare/count, Stats for aggregate, Count for count.
type QueryResult struct {
	Action  Action          `json:"action"`
	Records []ServiceRecord `json:"records,omitempty"`
	Stats   *AggregateStats `json:"stats,omitempty"`
	Count   *int            `json:"count,omitempty"`
}

// Answer statuses distinguish a served answer from degraded outcomes.
const (
	AnswerSuccess  = "success"
	AnswerBuilding = "building"
	AnswerError    = "error"
)

// Answer is the assistant's response to one question: a deterministic prose
// rendering plus the structured result it was rendered from.
type Answer struct {
	Answer string       `json:"answer"`
	Status string       `json:"status"`
	Action Action       `json:"query_type,omitempty"`
	Data   *QueryResult `json:"data,omitempty"`
}
