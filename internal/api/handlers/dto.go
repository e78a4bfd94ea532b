// dto.go — JSON-представления ответов API.
// Соответствуют схемам components/schemas в openapi.yaml.
package handlers

import (
	"time"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/service"
)

type accountResponse struct {
	UserID            string    `json:"user_id"`
	TokenBalance      int64     `json:"token_balance"`
	UploadBonusCount  int       `json:"upload_bonus_count"`
	AbuseWarningCount int       `json:"abuse_warning_count"`
	CreatedAt         time.Time `json:"created_at"`
}

func toAccount(u *model.User) accountResponse {
	return accountResponse{
		UserID:            u.ID,
		TokenBalance:      u.TokenBalance,
		UploadBonusCount:  u.UploadBonusCount,
		AbuseWarningCount: u.AbuseWarningCount,
		CreatedAt:         u.CreatedAt,
	}
}

type fileResponse struct {
	FileID        string    `json:"file_id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Extension     string    `json:"extension"`
	SizeBytes     int64     `json:"size_bytes"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func toFile(f *model.File) fileResponse {
	return fileResponse{
		FileID:        f.ID,
		OwnerID:       f.OwnerID,
		Name:          f.Name,
		Extension:     f.Extension,
		SizeBytes:     f.SizeBytes,
		DownloadCount: f.DownloadCount,
		CreatedAt:     f.CreatedAt,
	}
}

type bonusResponse struct {
	FileCount int   `json:"file_count"`
	Groups    int   `json:"groups"`
	Credited  int64 `json:"credited"`
	Balance   int64 `json:"balance"`
}

type registerFileRequest struct {
	Name      string `json:"name"`
	SizeBytes *int64 `json:"size_bytes"`
}

type registerFileResponse struct {
	File  fileResponse   `json:"file"`
	Bonus *bonusResponse `json:"bonus,omitempty"`
}

type fileDetailsResponse struct {
	File       fileResponse        `json:"file"`
	Reputation *service.Reputation `json:"reputation"`
}

type quoteResponse struct {
	FileID    string `json:"file_id"`
	Extension string `json:"extension"`
	Cost      int64  `json:"cost"`
	Balance   int64  `json:"balance"`
	Owned     bool   `json:"owned"`
	Unlocked  bool   `json:"unlocked"`
	Missing   int64  `json:"missing"`
}

type purchaseResponse struct {
	FileID     string    `json:"file_id"`
	Cost       int64     `json:"cost"`
	Balance    int64     `json:"balance"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

type unlockResponse struct {
	FileID     string    `json:"file_id"`
	Cost       int64     `json:"cost"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

type downloadResponse struct {
	FileID        string `json:"file_id"`
	DownloadCount int64  `json:"download_count"`
	OwnerCredited int64  `json:"owner_credited"`
	SelfDownload  bool   `json:"self_download"`
}

type rateRequest struct {
	Value *int `json:"value"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}
