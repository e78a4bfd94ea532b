package handlers

import "net/http"

// GetMe возвращает профиль и баланс текущего пользователя.
// Запись пользователя создаётся при первом обращении.
// GET /api/v1/me
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	user, _, err := h.svc.Accounts.EnsureUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(user))
}

// CheckMyAbuse сверяет счётчик бонусов текущего пользователя с числом его файлов.
// POST /api/v1/me/abuse-check
func (h *APIHandler) CheckMyAbuse(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Abuse.CheckAbuse(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
