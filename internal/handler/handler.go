package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/thaybinh/hoso7991/internal/export"
	appI18n "github.com/thaybinh/hoso7991/internal/i18n"
	"github.com/thaybinh/hoso7991/internal/llm"
	"github.com/thaybinh/hoso7991/internal/model"
	"github.com/thaybinh/hoso7991/internal/pipeline"
)

// Generator is the slice of the LLM client the proxy endpoint needs.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	orch     *pipeline.Orchestrator
	llm      Generator
	apiKey   string
	validate *validator.Validate
}

// New creates a new Handler. apiKey is checked per proxy request so a
// missing deployment credential surfaces as a clear 500.
func New(orch *pipeline.Orchestrator, gen Generator, apiKey string) *Handler {
	return &Handler{
		orch:     orch,
		llm:      gen,
		apiKey:   apiKey,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.MethodNotAllowed(h.handleMethodNotAllowed)
	r.Post("/api/gemini", h.handleProxy)
	r.Get("/api/state", h.handleState)
	r.Put("/api/input", h.handleSetInput)
	r.Post("/api/generate/{stage}", h.handleGenerate)
	r.Patch("/api/matrix/rows/{index}", h.handleUpdateMatrixRow)
	r.Patch("/api/spec/items/{index}", h.handleUpdateSpecItem)
	r.Patch("/api/exam/questions/{index}", h.handleUpdateExamQuestion)
	r.Get("/api/export", h.handleExport)
}

type proxyRequest struct {
	Prompt            string `json:"prompt"`
	SystemInstruction string `json:"systemInstruction"`
}

type textResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, appI18n.T(r.Context(), "error.method_not_allowed"))
}

// handleProxy forwards a prompt/instruction pair to the generative
// backend and returns the raw generated text. Retry on rate limiting
// happens inside the client; here we only translate the outcome.
func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.apiKey == "" {
		writeError(w, http.StatusInternalServerError, appI18n.T(ctx, "error.missing_api_key"))
		return
	}

	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.Td(ctx, "error.invalid_request", map[string]any{"Reason": err.Error()}))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, appI18n.Td(ctx, "error.invalid_request", map[string]any{"Reason": "prompt is required"}))
		return
	}

	text, err := h.llm.Generate(ctx, req.Prompt, req.SystemInstruction)
	if err != nil {
		status, msg := h.upstreamError(ctx, err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, textResponse{Text: text})
}

// upstreamError maps a generation failure to an HTTP status and a
// localized message, distinguishing "overloaded, retry later" from
// generic failure.
func (h *Handler) upstreamError(ctx context.Context, err error) (int, string) {
	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		if apiErr.RateLimited {
			return apiErr.Status, appI18n.T(ctx, "error.rate_limited")
		}
		msg := apiErr.Message
		if msg == "" {
			msg = appI18n.T(ctx, "error.generic")
		}
		return apiErr.Status, msg
	}
	return http.StatusInternalServerError, appI18n.T(ctx, "error.generic")
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.State())
}

func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in model.ExamInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.Td(ctx, "error.invalid_request", map[string]any{"Reason": err.Error()}))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.Td(ctx, "error.invalid_request", map[string]any{"Reason": err.Error()}))
		return
	}

	if err := h.orch.SetInput(in); err != nil {
		slog.Error("set input failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.orch.State())
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stage := model.Stage(strings.ToUpper(chi.URLParam(r, "stage")))
	if !stage.Valid() || stage == model.StageInput {
		writeError(w, http.StatusBadRequest, appI18n.Td(ctx, "error.invalid_stage", map[string]any{"Stage": string(stage)}))
		return
	}

	if err := h.orch.Generate(ctx, stage); err != nil {
		var parseErr *pipeline.ParseError
		if errors.As(err, &parseErr) {
			writeError(w, http.StatusBadGateway, appI18n.T(ctx, "error.parse_response"))
			return
		}
		status, msg := h.upstreamError(ctx, err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, h.orch.State())
}

func (h *Handler) handleUpdateMatrixRow(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "error.no_row"))
		return
	}

	var patch pipeline.MatrixRowPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.Td(r.Context(), "error.invalid_request", map[string]any{"Reason": err.Error()}))
		return
	}

	if err := h.orch.UpdateMatrixRow(index, patch); err != nil {
		writeError(w, http.StatusNotFound, appI18n.T(r.Context(), "error.no_row"))
		return
	}
	writeJSON(w, http.StatusOK, h.orch.State())
}

func (h *Handler) handleUpdateSpecItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "error.no_row"))
		return
	}

	var patch pipeline.SpecItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.Td(r.Context(), "error.invalid_request", map[string]any{"Reason": err.Error()}))
		return
	}

	if err := h.orch.UpdateSpecItem(index, patch); err != nil {
		writeError(w, http.StatusNotFound, appI18n.T(r.Context(), "error.no_row"))
		return
	}
	writeJSON(w, http.StatusOK, h.orch.State())
}

func (h *Handler) handleUpdateExamQuestion(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "error.no_row"))
		return
	}

	var patch pipeline.ExamQuestionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.Td(r.Context(), "error.invalid_request", map[string]any{"Reason": err.Error()}))
		return
	}

	if err := h.orch.UpdateExamQuestion(index, patch); err != nil {
		writeError(w, http.StatusNotFound, appI18n.T(r.Context(), "error.no_row"))
		return
	}
	writeJSON(w, http.StatusOK, h.orch.State())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	state := h.orch.State()
	if state.Draft.Matrix == nil && state.Draft.Spec == nil && state.Draft.Exam == nil && state.Draft.Answers == nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "error.empty_draft"))
		return
	}

	doc, err := export.BuildDocument(state.Input, state.Draft)
	if err != nil {
		slog.Error("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(state.Input)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
