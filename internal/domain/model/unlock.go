package model

import "time"

// UnlockRecord — бессрочный доступ пользователя к чужому файлу.
// Хранится в таблице file_unlocks, ключ (user_id, file_id).
// Никогда не создаётся для владельца файла.
type UnlockRecord struct {
	// UserID — покупатель
	UserID string
	// FileID — UUID файла
	FileID string
	// Cost — списанная стоимость в токенах
	Cost int64
	// UnlockedAt — время покупки
	UnlockedAt time.Time
}
