package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/indicadores/apiserver/internal/services"
)

// CategoryHandler provides HTTP handlers for categories.
type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CategoryRouter registers category routes on the given router.
func CategoryRouter(r chi.Router, categoryService *services.CategoryService) {
	handler := NewCategoryHandler(categoryService)

	r.Get("/", handler.ListCategories)
	r.Post("/", handler.CreateCategory)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.GetCategory)
		r.Put("/", handler.UpdateCategory)
		r.Delete("/", handler.DeleteCategory)
	})
}

type CategoryRequest struct {
	ID          *int   `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (req CategoryRequest) input() services.CategoryInput {
	return services.CategoryInput{Name: req.Name, Description: req.Description}
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(categories))
}

func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	category, err := h.categoryService.Get(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	category.Indicators = listOrEmpty(category.Indicators)
	writeJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	category, err := h.categoryService.Create(r.Context(), callerFrom(r), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	created(w, fmt.Sprintf("/api/categorias/%d", category.ID), category)
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := checkBodyID(req.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, err := h.categoryService.Update(r.Context(), callerFrom(r), id, req.input()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.categoryService.Delete(r.Context(), callerFrom(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
