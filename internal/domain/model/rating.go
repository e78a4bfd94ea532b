package model

import "time"

// Границы допустимой оценки.
const (
	MinRating = 1
	MaxRating = 5
)

// Rating — оценка файла пользователем (одна на пару файл/пользователь).
// Хранится в таблице file_ratings, повторная оценка перезаписывает запись.
type Rating struct {
	// FileID — UUID файла
	FileID string
	// UserID — автор оценки
	UserID string
	// Value — оценка от MinRating до MaxRating
	Value int
	// UpdatedAt — время последней оценки
	UpdatedAt time.Time
}

// ValidRating проверяет, что значение оценки в допустимом диапазоне.
func ValidRating(value int) bool {
	return value >= MinRating && value <= MaxRating
}
