package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"rubric-eval-service/internal/app"
	"rubric-eval-service/internal/domain"
)

// AdminHandler serves the rubric editing, roster, and statistics endpoints.
type AdminHandler struct {
	editor     *app.EditorService
	service    *app.EvalService
	presenters app.PresenterRepository
}

func NewAdminHandler(editor *app.EditorService, service *app.EvalService, presenters app.PresenterRepository) *AdminHandler {
	return &AdminHandler{editor: editor, service: service, presenters: presenters}
}

// Register mounts the admin routes on a mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/rubric", h.handleRubric)
	mux.HandleFunc("/api/rubric/items", h.handleItems)
	mux.HandleFunc("/api/rubric/items/", h.handleItem)
	mux.HandleFunc("/api/presenters", h.handlePresenters)
	mux.HandleFunc("/api/weights", h.handleWeights)
	mux.HandleFunc("/api/stats", h.handleStats)
}

func (h *AdminHandler) handleRubric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rubric, err := h.editor.Rubric(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rubric)
}

type addItemRequest struct {
	Category string `json:"category"`
}

func (h *AdminHandler) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	item, err := h.editor.AddItem(r.Context(), domain.Category(req.Category))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type itemPatchRequest struct {
	Op          string `json:"op"` // rename | toggleCommon | addCriterion | updateCriterion | deleteCriterion
	Title       string `json:"title,omitempty"`
	CriterionID string `json:"criterionId,omitempty"`
	Field       string `json:"field,omitempty"`
	Value       string `json:"value,omitempty"`
}

// handleItem dispatches /api/rubric/items/{id}: PATCH applies one editor
// operation, DELETE removes the card.
func (h *AdminHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Path[len("/api/rubric/items/"):]
	if itemID == "" {
		http.Error(w, "missing item id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := h.editor.DeleteItem(r.Context(), itemID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPatch:
		var req itemPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		h.applyItemPatch(w, r, itemID, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) applyItemPatch(w http.ResponseWriter, r *http.Request, itemID string, req itemPatchRequest) {
	switch req.Op {
	case "rename":
		if err := h.editor.RenameItem(r.Context(), itemID, req.Title); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "toggleCommon":
		common, err := h.editor.ToggleCommon(r.Context(), itemID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"isCommon": common})
	case "addCriterion":
		crit, err := h.editor.AddCriterion(r.Context(), itemID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, crit)
	case "updateCriterion":
		if err := h.editor.UpdateCriterion(r.Context(), itemID, req.CriterionID, req.Field, req.Value); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "deleteCriterion":
		if err := h.editor.DeleteCriterion(r.Context(), itemID, req.CriterionID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported op", http.StatusBadRequest)
	}
}

type rosterRequest struct {
	Names []string `json:"names"`
}

func (h *AdminHandler) handlePresenters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roster, err := h.presenters.ListPresenters(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roster)
	case http.MethodPut:
		var req rosterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.editor.SaveRoster(r.Context(), req.Names); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type weightRequest struct {
	ItemID      string `json:"itemId"`
	CriterionID string `json:"criterionId"`
	Points      string `json:"points"`
}

type weightsResponse struct {
	Total float64 `json:"total"`
}

// handleWeights: GET returns the staged total, POST stages one weight change,
// PUT persists every staged change.
func (h *AdminHandler) handleWeights(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		total, err := h.editor.TotalWeight(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, weightsResponse{Total: total})
	case http.MethodPost:
		var req weightRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.editor.SetPoints(r.Context(), req.ItemID, req.CriterionID, req.Points); err != nil {
			writeError(w, err)
			return
		}
		total, err := h.editor.TotalWeight(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, weightsResponse{Total: total})
	case http.MethodPut:
		if err := h.editor.SaveWeights(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type statsResponse struct {
	Averages interface{} `json:"averages"`
	History  interface{} `json:"history"`
	Summary  interface{} `json:"summary"`
}

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	averages, history, summary, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Averages: averages, History: history, Summary: summary})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps domain sentinels to status codes and everything else to a
// single human-readable 500 message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrCriterionNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrInvalidLevel),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrUnknownEntity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
