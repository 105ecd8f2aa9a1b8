package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"geminiclient/internal/gemini"
	"geminiclient/internal/middleware"
	"geminiclient/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes = 1 << 20

	defaultExchangeLimit = 20
	maxExchangeLimit     = 100
)

// Asker is satisfied by *gemini.Client.
type Asker interface {
	Ask(ctx context.Context, prompt string) ([]string, error)
	Model() string
	Host() string
}

// ExchangeLog is satisfied by *store.ExchangeStore.
type ExchangeLog interface {
	Record(ctx context.Context, e store.Exchange) (store.Exchange, error)
	Recent(ctx context.Context, limit int) ([]store.Exchange, error)
}

// GeminiAPI exposes a Gemini client over HTTP.
type GeminiAPI struct {
	Client Asker
	// Exchanges is optional. When nil nothing is recorded.
	Exchanges ExchangeLog
	Log       *logrus.Logger
}

// NewGeminiAPI creates a new GeminiAPI instance.
func NewGeminiAPI(client Asker, exchanges ExchangeLog, logger *logrus.Logger) *GeminiAPI {
	return &GeminiAPI{
		Client:    client,
		Exchanges: exchanges,
		Log:       logger,
	}
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Answers []string `json:"answers"`
}

// AskHandler handles POST /v1/ask.
func (api *GeminiAPI) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to parse request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "prompt must not be empty")
		return
	}

	log := api.Log.WithFields(logrus.Fields{
		"request_id": middleware.RequestIDFrom(r),
		"model":      api.Client.Model(),
	})

	answers, err := api.Client.Ask(r.Context(), req.Prompt)

	ex := store.Exchange{
		ID:        uuid.NewString(),
		RequestID: middleware.RequestIDFrom(r),
		Model:     api.Client.Model(),
		Prompt:    req.Prompt,
		Answers:   answers,
	}
	if err != nil {
		ex.Error = err.Error()
	}
	api.record(r.Context(), log, ex)

	if err != nil {
		status, code := classify(err)
		log.WithField("code", code).Errorf("Ask failed: %v", err)
		writeError(w, status, code, err.Error())
		return
	}

	log.WithField("answers", len(answers)).Info("Ask served")
	writeJSON(w, http.StatusOK, askResponse{
		ID:      ex.ID,
		Model:   ex.Model,
		Answers: answers,
	})
}

func (api *GeminiAPI) record(ctx context.Context, log *logrus.Entry, ex store.Exchange) {
	if api.Exchanges == nil {
		return
	}
	// A canceled request should still leave a trace.
	if _, err := api.Exchanges.Record(context.WithoutCancel(ctx), ex); err != nil {
		log.Warnf("Failed to record exchange: %v", err)
	}
}

// classify maps client errors to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var (
		blocked *gemini.BlockedError
		serr    *gemini.SerializationError
		nerr    *gemini.NetworkError
	)
	switch {
	case errors.As(err, &blocked):
		return http.StatusUnprocessableEntity, "prompt_blocked"
	case errors.As(err, &serr):
		return http.StatusBadGateway, "upstream_malformed"
	case errors.As(err, &nerr):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type exchangesResponse struct {
	Exchanges []store.Exchange `json:"exchanges"`
}

// ExchangesHandler handles GET /v1/exchanges.
func (api *GeminiAPI) ExchangesHandler(w http.ResponseWriter, r *http.Request) {
	if api.Exchanges == nil {
		writeError(w, http.StatusNotFound, "not_found", "exchange log is disabled")
		return
	}

	limit := defaultExchangeLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxExchangeLimit)
	}

	exchanges, err := api.Exchanges.Recent(r.Context(), limit)
	if err != nil {
		api.Log.Errorf("Failed to list exchanges: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list exchanges")
		return
	}
	writeJSON(w, http.StatusOK, exchangesResponse{Exchanges: exchanges})
}

type modelResponse struct {
	Model string `json:"model"`
	Host  string `json:"host"`
}

// ModelHandler handles GET /v1/model. It reports where asks are sent.
func (api *GeminiAPI) ModelHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelResponse{
		Model: api.Client.Model(),
		Host:  api.Client.Host(),
	})
}
