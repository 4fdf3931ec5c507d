package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/query"
	"github.com/fleetwatch/fleetwatch/internal/utils"
)

const buildingMessage = "I'm still gathering data from the fleet. Please try again in a moment."

// KnowledgeBase is the store surface the assistant depends on.
type KnowledgeBase interface {
	query.Store
	IsReady() bool
	Build(ctx context.Context) error
	Status() models.KBStatus
}

// AnswerGenerator phrases a query result as prose. Optional; the assistant
// falls back to deterministic templates without one.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, context string) (string, error)
}

// Assistant answers analytical questions about the service fleet by parsing
// them into structured queries and executing those against the knowledge base.
type Assistant struct {
	logger    *slog.Logger
	kb        KnowledgeBase
	parser    *query.Parser
	executor  *query.Executor
	generator AnswerGenerator
	latency   *utils.LatencyTracker
}

// NewAssistant wires the question-answering pipeline. generator may be nil.
func NewAssistant(logger *slog.Logger, kb KnowledgeBase, parser *query.Parser, executor *query.Executor, generator AnswerGenerator) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		logger:    logger,
		kb:        kb,
		parser:    parser,
		executor:  executor,
		generator: generator,
		latency:   utils.NewLatencyTracker(1024),
	}
}

// Ask answers one question. It never returns an error: degraded outcomes are
// reported through the answer's status field.
func (a *Assistant) Ask(ctx context.Context, question string) models.Answer {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		a.latency.Observe(elapsed)
		metrics.ObserveAsk(elapsed)
	}()

	if !a.kb.IsReady() {
		return models.Answer{Answer: buildingMessage, Status: models.AnswerBuilding}
	}

	q, tier := a.parser.Parse(ctx, question)
	metrics.ObserveQuestion(string(q.Action), tier)
	a.logger.Info("question parsed",
		slog.String("action", string(q.Action)),
		slog.String("tier", tier))

	result := a.executor.Execute(q)

	return models.Answer{
		Answer: a.renderAnswer(ctx, question, q, result),
		Status: models.AnswerSuccess,
		Action: result.Action,
		Data:   &result,
	}
}

func (a *Assistant) renderAnswer(ctx context.Context, question string, q models.StructuredQuery, result models.QueryResult) string {
	if a.generator != nil {
		prose, err := a.generator.GenerateAnswer(ctx, question, renderContext(result))
		if err == nil {
			return prose
		}
		a.logger.Warn("answer generation failed, using template",
			slog.String("error", err.Error()))
	}
	return templateAnswer(q, result)
}

// Refresh triggers an asynchronous knowledge-base rebuild. The build outlives
// the calling request, so it runs on a background context.
func (a *Assistant) Refresh() {
	go func() {
		if err := a.kb.Build(context.Background()); err != nil {
			a.logger.Error("refresh build failed", slog.Any("error", err))
		}
	}()
}

// Status reports the knowledge-base state for the status surface.
func (a *Assistant) Status() models.KBStatus {
	return a.kb.Status()
}

// Services returns all current records sorted by display name.
func (a *Assistant) Services() []models.ServiceRecord {
	return a.kb.AllRecords()
}

// Service returns one record by exact display name.
func (a *Assistant) Service(name string) (models.ServiceRecord, bool) {
	return a.kb.GetRecord(name)
}

// AnswerLatency reports the p50 and p95 of recent answering latencies.
func (a *Assistant) AnswerLatency() (p50, p95 time.Duration) {
	return a.latency.Percentile(50), a.latency.Percentile(95)
}
