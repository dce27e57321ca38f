package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/indicadores/apiserver/internal/services"
)

// IndicatorHandler provides HTTP handlers for indicators.
type IndicatorHandler struct {
	indicatorService *services.IndicatorService
	reportService    *services.ReportService
}

func NewIndicatorHandler(indicatorService *services.IndicatorService, reportService *services.ReportService) *IndicatorHandler {
	return &IndicatorHandler{
		indicatorService: indicatorService,
		reportService:    reportService,
	}
}

// IndicatorRouter registers indicator routes on the given router. The report
// export route is only registered when reportService is not nil.
func IndicatorRouter(r chi.Router, indicatorService *services.IndicatorService, reportService *services.ReportService) {
	handler := NewIndicatorHandler(indicatorService, reportService)

	r.Get("/", handler.ListIndicators)
	r.Post("/", handler.CreateIndicator)
	r.Get("/categoria/{categoryID}", handler.ListByCategory)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.GetIndicator)
		r.Put("/", handler.UpdateIndicator)
		r.Delete("/", handler.DeleteIndicator)
		if reportService != nil {
			r.Post("/reportes", handler.ExportReport)
		}
	})
}

type IndicatorRequest struct {
	ID          *int   `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Formula     string `json:"formula" validate:"max=1000"`
	Unit        string `json:"unit" validate:"max=50"`
	Frequency   string `json:"frequency" validate:"max=50"`
	Responsible string `json:"responsible" validate:"max=100"`
	CategoryID  int    `json:"category_id" validate:"required,gt=0"`
}

func (req IndicatorRequest) input() services.IndicatorInput {
	return services.IndicatorInput{
		Name:        req.Name,
		Description: req.Description,
		Formula:     req.Formula,
		Unit:        req.Unit,
		Frequency:   req.Frequency,
		Responsible: req.Responsible,
		CategoryID:  req.CategoryID,
	}
}

func (h *IndicatorHandler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	indicators, err := h.indicatorService.List(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(indicators))
}

func (h *IndicatorHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseID(r, "categoryID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	indicators, err := h.indicatorService.ListByCategory(r.Context(), callerFrom(r), categoryID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(indicators))
}

func (h *IndicatorHandler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	indicator, err := h.indicatorService.Get(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indicator)
}

func (h *IndicatorHandler) CreateIndicator(w http.ResponseWriter, r *http.Request) {
	var req IndicatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	indicator, err := h.indicatorService.Create(r.Context(), callerFrom(r), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	created(w, fmt.Sprintf("/api/indicadores/%d", indicator.ID), indicator)
}

func (h *IndicatorHandler) UpdateIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req IndicatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := checkBodyID(req.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, err := h.indicatorService.Update(r.Context(), callerFrom(r), id, req.input()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IndicatorHandler) DeleteIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.indicatorService.Delete(r.Context(), callerFrom(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportReport writes the indicator's calculations to object storage.
func (h *IndicatorHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := h.reportService.ExportIndicator(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	created(w, reportLocation(report.Key), report)
}
