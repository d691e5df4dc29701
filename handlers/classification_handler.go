package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/upb/answer-detector/internal/observability"
	"github.com/upb/answer-detector/services"
	"github.com/upb/answer-detector/services/classifier"
	"github.com/upb/answer-detector/services/resolver"
	"github.com/upb/answer-detector/utils"
	"go.uber.org/zap"
)

// MaxQuestionLength is the longest accepted question, in characters
const MaxQuestionLength = 2000

// ClassifyRequest is the body of POST /api/v1/classify
type ClassifyRequest struct {
	Questions []string `json:"questions" validate:"required,min=1,dive,notblank,max=2000"`
	Partial   *bool    `json:"partial,omitempty"`
}

// ResultResponse is one classified question
type ResultResponse struct {
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
	Result     string  `json:"result"`
	Question   string  `json:"question"`
	TimeTaken  int64   `json:"timeTaken"`
}

// ItemResponse is one question of a partial batch. Exactly one of Outcome
// and Error is set.
type ItemResponse struct {
	Index    int             `json:"index"`
	Question string          `json:"question"`
	Outcome  *ResultResponse `json:"outcome,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ClassifyResponse is the data of POST /api/v1/classify
type ClassifyResponse struct {
	Mode      resolver.BatchMode `json:"mode"`
	Results   []ResultResponse   `json:"results,omitempty"`
	Items     []ItemResponse     `json:"items,omitempty"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// BackendsResponse is the data of GET /api/v1/backends
type BackendsResponse struct {
	Backends []classifier.BackendInfo `json:"backends"`
}

// ClassificationService defines the resolution operations the handler needs
type ClassificationService interface {
	ResolveBatch(ctx context.Context, questions []string) ([]*resolver.Outcome, error)
	ResolveBatchPartial(ctx context.Context, questions []string) []resolver.BatchItem
}

// ChainDescriber lists the configured backends in priority order
type ChainDescriber interface {
	Describe() []classifier.BackendInfo
}

// ClassificationOptions configures a ClassificationHandler
type ClassificationOptions struct {
	DefaultQuestions []string
	MaxBatchSize     int
	BatchMode        resolver.BatchMode
}

// ClassificationHandler handles classification HTTP requests
type ClassificationHandler struct {
	service ClassificationService
	chain   ChainDescriber
	options ClassificationOptions
	logger  *zap.Logger
}

// NewClassificationHandler creates a new ClassificationHandler
func NewClassificationHandler(service ClassificationService, chain ChainDescriber, options ClassificationOptions, logger *zap.Logger) *ClassificationHandler {
	if options.BatchMode == "" {
		options.BatchMode = resolver.BatchAllOrNothing
	}
	return &ClassificationHandler{
		service: service,
		chain:   chain,
		options: options,
		logger:  logger,
	}
}

// HandleResults handles GET /results
// An absent or empty question parameter resolves the default questions. The
// response is a bare array, and failures are reported as {"error": msg}.
func (h *ClassificationHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)
	query := r.URL.Query()

	questions := h.options.DefaultQuestions
	if question := query.Get("question"); question != "" {
		if strings.TrimSpace(question) == "" {
			h.writeLegacyError(w, http.StatusBadRequest, "question cannot be empty", logger)
			return
		}
		if err := utils.ValidateStringLength(question, "question", 1, MaxQuestionLength); err != nil {
			h.writeLegacyError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}
		questions = []string{question}
	}

	mode, err := h.modeFromQuery(query.Get("partial"))
	if err != nil {
		h.writeLegacyError(w, http.StatusBadRequest, err.Error(), logger)
		return
	}

	if mode == resolver.BatchPartial {
		items := h.service.ResolveBatchPartial(ctx, questions)
		if err := utils.WriteJSON(w, http.StatusOK, toItemResponses(items)); err != nil {
			logger.Error("failed to write results response", zap.Error(err))
		}
		return
	}

	outcomes, err := h.service.ResolveBatch(ctx, questions)
	if err != nil {
		logger.Error("failed to resolve questions", zap.Error(err))
		h.writeLegacyError(w, http.StatusInternalServerError, err.Error(), logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, toResultResponses(outcomes)); err != nil {
		logger.Error("failed to write results response", zap.Error(err))
	}
}

// HandleClassify handles POST /api/v1/classify
func (h *ClassificationHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("failed to decode request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		logger.Warn("request validation failed", zap.Error(err))
		HandleValidationError(w, err, logger)
		return
	}

	if h.options.MaxBatchSize > 0 && len(req.Questions) > h.options.MaxBatchSize {
		err := services.ErrBatchTooLarge.
			Wrap(fmt.Errorf("at most %d questions per request", h.options.MaxBatchSize)).
			WithDetail("max", h.options.MaxBatchSize).
			WithDetail("received", len(req.Questions))
		HandleServiceError(w, err, logger)
		return
	}

	mode := h.options.BatchMode
	if req.Partial != nil {
		mode = resolver.BatchAllOrNothing
		if *req.Partial {
			mode = resolver.BatchPartial
		}
	}

	response := ClassifyResponse{Mode: mode}
	if mode == resolver.BatchPartial {
		response.Items = toItemResponses(h.service.ResolveBatchPartial(ctx, req.Questions))
		for _, item := range response.Items {
			if item.Outcome != nil {
				response.Succeeded++
			} else {
				response.Failed++
			}
		}
	} else {
		outcomes, err := h.service.ResolveBatch(ctx, req.Questions)
		if err != nil {
			HandleServiceError(w, services.FromResolverError(err), logger)
			return
		}
		response.Results = toResultResponses(outcomes)
		response.Succeeded = len(outcomes)
	}

	if err := utils.WriteOK(w, response); err != nil {
		logger.Error("failed to write classify response", zap.Error(err))
	}
}

// HandleListBackends handles GET /api/v1/backends
func (h *ClassificationHandler) HandleListBackends(w http.ResponseWriter, r *http.Request) {
	response := BackendsResponse{Backends: h.chain.Describe()}
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write backends response", zap.Error(err))
	}
}

func (h *ClassificationHandler) modeFromQuery(value string) (resolver.BatchMode, error) {
	if value == "" {
		return h.options.BatchMode, nil
	}
	partial, err := strconv.ParseBool(value)
	if err != nil {
		return "", fmt.Errorf("partial must be a boolean, got %q", value)
	}
	if partial {
		return resolver.BatchPartial, nil
	}
	return resolver.BatchAllOrNothing, nil
}

func (h *ClassificationHandler) writeLegacyError(w http.ResponseWriter, status int, message string, logger *zap.Logger) {
	if err := utils.WriteJSON(w, status, utils.ErrorResponse{Error: message}); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

func toResultResponse(outcome *resolver.Outcome) ResultResponse {
	return ResultResponse{
		Model:      outcome.Model,
		Confidence: outcome.Confidence,
		Result:     string(outcome.Result),
		Question:   outcome.Question,
		TimeTaken:  outcome.TimeTakenMs(),
	}
}

func toResultResponses(outcomes []*resolver.Outcome) []ResultResponse {
	responses := make([]ResultResponse, len(outcomes))
	for i, outcome := range outcomes {
		responses[i] = toResultResponse(outcome)
	}
	return responses
}

func toItemResponses(items []resolver.BatchItem) []ItemResponse {
	responses := make([]ItemResponse, len(items))
	for i, item := range items {
		responses[i] = ItemResponse{Index: item.Index, Question: item.Question}
		if item.Err != nil {
			responses[i].Error = item.Err.Error()
			continue
		}
		result := toResultResponse(item.Outcome)
		responses[i].Outcome = &result
	}
	return responses
}
