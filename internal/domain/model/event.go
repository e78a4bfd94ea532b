package model

import "time"

// Типы доменных событий.
const (
	EventBonusAwarded       = "bonus.awarded"
	EventDownloadRewarded   = "download.rewarded"
	EventFileUnlocked       = "file.unlocked"
	EventFileDeleted        = "file.deleted"
	EventAbuseCorrected     = "abuse.bonus_corrected"
	EventEscalationRequired = "abuse.escalation_required"
)

// Event — доменное событие, публикуемое после коммита транзакции.
type Event struct {
	// ID — UUID события
	ID string `json:"id"`
	// Type — тип события (см. константы Event*)
	Type string `json:"type"`
	// UserID — пользователь, к которому относится событие
	UserID string `json:"user_id,omitempty"`
	// FileID — файл, к которому относится событие (опционально)
	FileID string `json:"file_id,omitempty"`
	// Payload — произвольные данные события
	Payload map[string]any `json:"payload,omitempty"`
	// OccurredAt — время события
	OccurredAt time.Time `json:"occurred_at"`
}
