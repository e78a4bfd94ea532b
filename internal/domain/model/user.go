// Пакет model — доменные модели Community Module.
package model

import "time"

// User — участник файловой экономики сообщества.
// Хранится в таблице users. Создаётся при первом входе со стартовым балансом,
// изменяется только через операции токен-леджера.
type User struct {
	// ID — идентификатор пользователя от Identity Provider (sub)
	ID string
	// TokenBalance — текущий баланс токенов (всегда >= 0)
	TokenBalance int64
	// UploadBonusCount — количество уже выплаченных бонусов за загрузки
	UploadBonusCount int
	// AbuseWarningCount — количество предупреждений о расхождении счётчиков
	AbuseWarningCount int
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// NewUser создаёт пользователя со стартовым балансом.
func NewUser(id string, startingBalance int64, now time.Time) *User {
	return &User{
		ID:           id,
		TokenBalance: startingBalance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
