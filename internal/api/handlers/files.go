package handlers

import (
	"net/http"

	apierrors "github.com/taskmasterai/community-module/internal/api/errors"
	"github.com/taskmasterai/community-module/internal/api/middleware"
)

// RegisterFile регистрирует файл, уже загруженный в blob storage.
// POST /api/v1/files
func (h *APIHandler) RegisterFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req registerFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SizeBytes == nil {
		apierrors.ValidationError(w, "Поле size_bytes обязательно")
		return
	}

	if !h.ensureCaller(w, r, userID) {
		return
	}

	result, err := h.svc.Files.Register(r.Context(), userID, req.Name, *req.SizeBytes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := registerFileResponse{File: toFile(result.File)}
	if b := result.Bonus; b != nil {
		resp.Bonus = &bonusResponse{
			FileCount: b.FileCount,
			Groups:    b.Groups,
			Credited:  b.Credited,
			Balance:   b.Balance,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetFile возвращает метаданные файла вместе с репутацией.
// GET /api/v1/files/{file_id}
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	file, err := h.svc.Files.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	rep, err := h.svc.Reputation.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fileDetailsResponse{File: toFile(file), Reputation: rep})
}

// DeleteFile удаляет файл (владелец или администратор).
// DELETE /api/v1/files/{file_id}
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	isAdmin := false
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		isAdmin = claims.IsAdmin
	}

	if err := h.svc.Files.Delete(r.Context(), userID, isAdmin, fileID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordDownload учитывает скачивание и начисляет вознаграждение владельцу.
// Скачивать может владелец или пользователь, разблокировавший файл.
// POST /api/v1/files/{file_id}/downloads
func (h *APIHandler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	access, err := h.svc.Unlocks.HasAccess(r.Context(), userID, fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !access {
		apierrors.Forbidden(w, "Файл не разблокирован")
		return
	}

	// Владелец берётся из записи файла
	result, err := h.svc.Downloads.OnFileDownloaded(r.Context(), fileID, "", userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		FileID:        result.FileID,
		DownloadCount: result.DownloadCount,
		OwnerCredited: result.Credited,
		SelfDownload:  result.SelfDownload,
	})
}
