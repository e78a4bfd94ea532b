package handlers

import (
	"net/http"

	apierrors "github.com/taskmasterai/community-module/internal/api/errors"
)

// ToggleLike переключает лайк текущего пользователя.
// POST /api/v1/files/{file_id}/like
func (h *APIHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	rep, err := h.svc.Reputation.ToggleLike(r.Context(), fileID, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ToggleDislike переключает дизлайк текущего пользователя.
// POST /api/v1/files/{file_id}/dislike
func (h *APIHandler) ToggleDislike(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	rep, err := h.svc.Reputation.ToggleDislike(r.Context(), fileID, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// RateFile ставит или меняет оценку 1..5.
// PUT /api/v1/files/{file_id}/rating
func (h *APIHandler) RateFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	var req rateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value == nil {
		apierrors.ValidationError(w, "Поле value обязательно")
		return
	}

	rep, err := h.svc.Reputation.Rate(r.Context(), fileID, userID, *req.Value)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetReputation возвращает агрегат репутации файла.
// GET /api/v1/files/{file_id}/reputation
func (h *APIHandler) GetReputation(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	rep, err := h.svc.Reputation.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
