package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/internal/services"
	"github.com/indicadores/apiserver/types"
)

// CalculationHandler provides HTTP handlers for indicator calculations.
type CalculationHandler struct {
	calculationService *services.CalculationService
}

func NewCalculationHandler(calculationService *services.CalculationService) *CalculationHandler {
	return &CalculationHandler{calculationService: calculationService}
}

// CalculationRouter registers calculation routes on the given router.
func CalculationRouter(r chi.Router, calculationService *services.CalculationService) {
	handler := NewCalculationHandler(calculationService)

	r.Get("/", handler.ListCalculations)
	r.Post("/", handler.CreateCalculation)
	r.Get("/indicador/{indicatorID}", handler.ListByIndicator)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.GetCalculation)
		r.Put("/", handler.UpdateCalculation)
		r.Delete("/", handler.DeleteCalculation)
	})
}

// CreateCalculationRequest omits owner, state and compliance; the server
// sets them.
type CreateCalculationRequest struct {
	IndicatorID  int     `json:"indicator_id" validate:"required,gt=0"`
	RealValue    float64 `json:"real_value" validate:"gte=0"`
	TargetValue  float64 `json:"target_value" validate:"gte=0"`
	Period       string  `json:"period" validate:"max=50"`
	Observations string  `json:"observations" validate:"max=1000"`
}

type UpdateCalculationRequest struct {
	ID           *int                   `json:"id"`
	RealValue    float64                `json:"real_value" validate:"gte=0"`
	TargetValue  float64                `json:"target_value" validate:"gte=0"`
	Period       string                 `json:"period" validate:"max=50"`
	Observations string                 `json:"observations" validate:"max=1000"`
	State        types.CalculationState `json:"state" validate:"omitempty,oneof=Pending Approved Rejected"`
}

func (h *CalculationHandler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	calculations, err := h.calculationService.List(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(calculations))
}

func (h *CalculationHandler) ListByIndicator(w http.ResponseWriter, r *http.Request) {
	indicatorID, err := parseID(r, "indicatorID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	calculations, err := h.calculationService.ListByIndicator(r.Context(), callerFrom(r), indicatorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(calculations))
}

func (h *CalculationHandler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	calc, err := h.calculationService.Get(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calc)
}

func (h *CalculationHandler) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	var req CreateCalculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	calc, err := h.calculationService.Create(r.Context(), callerFrom(r), services.CalculationInput{
		IndicatorID:  req.IndicatorID,
		RealValue:    req.RealValue,
		TargetValue:  req.TargetValue,
		Period:       req.Period,
		Observations: req.Observations,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	created(w, fmt.Sprintf("/api/calculoindicadores/%d", calc.ID), calc)
}

func (h *CalculationHandler) UpdateCalculation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req UpdateCalculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := checkBodyID(req.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	_, err = h.calculationService.Update(r.Context(), callerFrom(r), id, policy.CalculationChange{
		RealValue:    req.RealValue,
		TargetValue:  req.TargetValue,
		Period:       req.Period,
		Observations: req.Observations,
		State:        req.State,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalculationHandler) DeleteCalculation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.calculationService.Delete(r.Context(), callerFrom(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
