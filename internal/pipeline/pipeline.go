package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arshiii08/windbot/internal/composer"
	"github.com/arshiii08/windbot/internal/llm"
	"github.com/arshiii08/windbot/internal/model"
	"github.com/arshiii08/windbot/internal/slots"
	"github.com/arshiii08/windbot/internal/storage"
)

// Extractor turns a free-text question into a validated Slot.
type Extractor interface {
	Extract(ctx context.Context, question string) (slots.Slot, error)
}

// FeatureStore fetches one turbine-day feature row.
type FeatureStore interface {
	FeatureRow(ctx context.Context, turbineID, logDate string) (storage.FeatureRow, error)
}

// Summarizer renders the operational error-log digest for a turbine-day.
type Summarizer interface {
	Summarize(ctx context.Context, turbineID, logDate string) (string, error)
}

// Completer is the chat-completion capability used for the final narration.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// TurnStore persists conversation turns.
type TurnStore interface {
	SaveTurn(t storage.Turn) error
}

// Response is the conversational result. Explanations is always non-nil so
// the wire shape stays a JSON array even on a degraded answer.
type Response struct {
	Answer       string               `json:"answer"`
	Explanations []model.Contribution `json:"explanations"`
}

// Prediction is the direct inference result for one turbine-day.
type Prediction struct {
	TurbineID        string               `json:"turbine_id"`
	LogDate          string               `json:"log_date"`
	FaultProbability float64              `json:"fault_probability"`
	Explanations     []model.Contribution `json:"explanations"`
}

// Orchestrator sequences the question pipeline: slot extraction, feature
// fetch, inference, log summarization, narration, and best-effort
// persistence. Stages run strictly in order; each blocks on the previous
// one's result.
type Orchestrator struct {
	extractor  Extractor
	features   FeatureStore
	classifier *model.Classifier
	summarizer Summarizer
	llm        Completer
	turns      TurnStore
}

// New wires an Orchestrator from its stage components.
func New(
	extractor Extractor,
	features FeatureStore,
	classifier *model.Classifier,
	summarizer Summarizer,
	completer Completer,
	turns TurnStore,
) *Orchestrator {
	return &Orchestrator{
		extractor:  extractor,
		features:   features,
		classifier: classifier,
		summarizer: summarizer,
		llm:        completer,
		turns:      turns,
	}
}

// Ask answers a free-text question. It never returns an error: any stage
// failure short-circuits the remaining stages and degrades to an apologetic
// answer carrying the failure reason and an empty explanation list. The
// conversation turn is persisted only after a successful narration, and a
// persistence failure is logged and swallowed.
func (o *Orchestrator) Ask(ctx context.Context, userID, question string) Response {
	slot, err := o.extractor.Extract(ctx, question)
	if err != nil {
		return o.degraded("slot extraction", err)
	}
	slog.Debug("slots extracted", "turbine_id", slot.TurbineID, "log_date", slot.LogDate, "intent", slot.Intent)

	pred, err := o.Predict(ctx, slot.TurbineID, slot.LogDate)
	if err != nil {
		return o.degraded("prediction", err)
	}

	summary, err := o.summarizer.Summarize(ctx, pred.TurbineID, pred.LogDate)
	if err != nil {
		return o.degraded("log summary", err)
	}

	system, user := composer.ExplanationPrompt(question, composer.RenderAttribution(pred.Explanations), summary)
	answer, err := o.llm.Complete(ctx, system, user)
	if err != nil {
		return o.degraded("explanation", err)
	}
	if strings.TrimSpace(answer) == "" {
		return o.degraded("explanation", llm.ErrEmptyReply)
	}

	if err := o.turns.SaveTurn(storage.Turn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		Intent:    slot.Intent,
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Warn("persisting conversation turn failed", "user_id", userID, "error", err)
	}

	return Response{Answer: answer, Explanations: pred.Explanations}
}

// Predict fetches the feature row for (turbineID, logDate) and runs the
// classifier. Unlike Ask it propagates failures: the direct-prediction
// surface has no narrative fallback, so storage.ErrNotFound and schema
// mismatches reach the caller.
func (o *Orchestrator) Predict(ctx context.Context, turbineID, logDate string) (Prediction, error) {
	row, err := o.features.FeatureRow(ctx, turbineID, logDate)
	if err != nil {
		return Prediction{}, fmt.Errorf("fetching features for %s: %w", turbineID, err)
	}

	prob, contribs, err := o.classifier.Infer(storage.FeatureColumns, row.Values)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		TurbineID:        row.TurbineID,
		LogDate:          row.LogDate,
		FaultProbability: prob,
		Explanations:     contribs,
	}, nil
}

func (o *Orchestrator) degraded(stage string, err error) Response {
	slog.Warn("pipeline degraded", "stage", stage, "error", err)
	return Response{
		Answer:       fmt.Sprintf("Sorry, I was unable to process your request: %v", err),
		Explanations: []model.Contribution{},
	}
}
