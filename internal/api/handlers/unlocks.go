package handlers

import (
	"net/http"

	"github.com/taskmasterai/community-module/internal/service"
)

// ListPrices возвращает прайс-лист разблокировки.
// GET /api/v1/prices
func (h *APIHandler) ListPrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse[service.PriceEntry]{Items: h.svc.Unlocks.Prices().Entries()})
}

// QuoteUnlock рассчитывает стоимость разблокировки для текущего пользователя.
// GET /api/v1/files/{file_id}/quote
func (h *APIHandler) QuoteUnlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	if !h.ensureCaller(w, r, userID) {
		return
	}

	q, err := h.svc.Unlocks.Quote(r.Context(), userID, fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		FileID:    q.FileID,
		Extension: q.Extension,
		Cost:      q.Cost,
		Balance:   q.Balance,
		Owned:     q.Owned,
		Unlocked:  q.Unlocked,
		Missing:   q.Missing,
	})
}

// UnlockFile покупает бессрочный доступ к файлу.
// POST /api/v1/files/{file_id}/unlock
func (h *APIHandler) UnlockFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	if !h.ensureCaller(w, r, userID) {
		return
	}

	result, err := h.svc.Unlocks.Purchase(r.Context(), userID, fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchaseResponse{
		FileID:     result.FileID,
		Cost:       result.Cost,
		Balance:    result.Balance,
		UnlockedAt: result.UnlockedAt,
	})
}

// ListMyUnlocks возвращает разблокировки текущего пользователя.
// GET /api/v1/me/unlocks
func (h *APIHandler) ListMyUnlocks(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	records, err := h.svc.Unlocks.ListUnlocked(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]unlockResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, unlockResponse{
			FileID:     rec.FileID,
			Cost:       rec.Cost,
			UnlockedAt: rec.UnlockedAt,
		})
	}
	writeJSON(w, http.StatusOK, listResponse[unlockResponse]{Items: items})
}
