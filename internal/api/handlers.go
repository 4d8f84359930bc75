package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arshiii08/windbot/internal/model"
	"github.com/arshiii08/windbot/internal/pipeline"
	"github.com/arshiii08/windbot/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// anonymousUser is recorded when a caller sends no X-User-ID header.
const anonymousUser = "anonymous"

// Asker is the pipeline capability used by the HTTP layer.
type Asker interface {
	Ask(ctx context.Context, userID, question string) pipeline.Response
	Predict(ctx context.Context, turbineID, logDate string) (pipeline.Prediction, error)
}

// TurnLister reads back persisted conversation turns.
type TurnLister interface {
	RecentTurns(ctx context.Context, userID string, limit int) ([]storage.Turn, error)
}

// Deps holds the dependencies for the HTTP handler.
type Deps struct {
	Pipeline Asker
	Turns    TurnLister
	Token    string // bearer token guarding the chat-history route
}

// NewHandler returns the service's HTTP API. The conversational and
// prediction routes are open (the dashboard calls them directly); chat
// history is guarded by bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/ask", handleAsk(deps))
	r.Post("/predict_fault", handlePredictFault(deps))

	r.Group(func(g chi.Router) {
		g.Use(BearerAuth(deps.Token))
		g.Get("/chats", handleListChats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		// The pipeline never fails: internal errors arrive as a degraded
		// answer, so this route is always 200 for a well-formed request.
		resp := deps.Pipeline.Ask(r.Context(), userID(r), req.Question)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

type predictRequest struct {
	TurbineID string `json:"turbine_id"`
	LogDate   string `json:"log_date,omitempty"`
}

func handlePredictFault(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.TurbineID) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "turbine_id is required")
			return
		}

		pred, err := deps.Pipeline.Predict(r.Context(), req.TurbineID, req.LogDate)
		if err != nil {
			var sm *model.SchemaMismatchError
			switch {
			case errors.Is(err, storage.ErrNotFound):
				httpError(w, http.StatusNotFound, "not_found", "no data for given turbine/date")
			case errors.As(err, &sm):
				httpError(w, http.StatusInternalServerError, "api_error", "inference failed: %v", err)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "prediction failed: %v", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pred)
	}
}

type chatEntry struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Intent    string `json:"intent"`
	CreatedAt string `json:"created_at"`
}

func handleListChats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", raw)
				return
			}
			limit = n
		}

		turns, err := deps.Turns.RecentTurns(r.Context(), userID(r), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing chats: %v", err)
			return
		}

		entries := make([]chatEntry, len(turns))
		for i, t := range turns {
			entries[i] = chatEntry{
				Question:  t.Question,
				Answer:    t.Answer,
				Intent:    t.Intent,
				CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return anonymousUser
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
