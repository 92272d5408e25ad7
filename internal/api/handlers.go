package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/careplan-cli/internal/careplan"
	"github.com/sells-group/careplan-cli/internal/model"
)

type handler struct {
	svc    CarePlanService
	status StatusSource
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// attributionResponse is returned by the attribution endpoints.
type attributionResponse struct {
	Success         bool                     `json:"success"`
	Message         string                   `json:"message,omitempty"`
	CarePlanID      string                   `json:"care_plan_id,omitempty"`
	AttributionData *model.SourceAttribution `json:"attribution_data"`
}

type attributeTextRequest struct {
	CarePlanText      string `json:"care_plan_text"`
	PatientRecordText string `json:"patient_record_text"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) statusSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, http.StatusServiceUnavailable, "Status unavailable", nil)
		return
	}
	snap, err := h.status.Collect(r.Context())
	if err != nil {
		zap.L().Error("collect status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to collect status", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) createCarePlan(w http.ResponseWriter, r *http.Request) {
	var form model.CarePlanForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	cp, err := h.svc.Create(r.Context(), &form)
	var verr *model.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cp)
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "Validation failed", verr.Messages)
	case errors.Is(err, careplan.ErrDuplicate):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		zap.L().Error("create care plan", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create care plan", nil)
	}
}

func (h *handler) listCarePlans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	rows, err := h.svc.List(r.Context(), limit)
	if err != nil {
		zap.L().Error("list care plans", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch care plans", nil)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) getCarePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.svc.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, detail)
	case errors.Is(err, careplan.ErrNotFound):
		writeError(w, http.StatusNotFound, "Care plan not found", nil)
	default:
		zap.L().Error("get care plan", zap.String("care_plan_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch care plan", nil)
	}
}

func (h *handler) attributeCarePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.svc.Attribute(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, attributionResponse{
			Success:         true,
			Message:         "Source attribution generated successfully",
			CarePlanID:      id,
			AttributionData: doc,
		})
	case errors.Is(err, careplan.ErrNotFound):
		writeError(w, http.StatusNotFound, "Care plan not found", nil)
	default:
		zap.L().Error("generate source attribution", zap.String("care_plan_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate source attribution", err.Error())
	}
}

func (h *handler) attributeText(w http.ResponseWriter, r *http.Request) {
	var req attributeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	doc, err := h.svc.AttributeText(r.Context(), req.CarePlanText, req.PatientRecordText)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, attributionResponse{Success: true, AttributionData: doc})
	case errors.Is(err, careplan.ErrEmptyCarePlan):
		writeError(w, http.StatusBadRequest, "care_plan_text is required", nil)
	default:
		zap.L().Error("generate source attribution", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate source attribution", err.Error())
	}
}
