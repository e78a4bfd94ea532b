package model

import (
	"path/filepath"
	"strings"
	"time"
)

// File — общий файл сообщества.
// Хранится в таблице files. Байты файла живут во внешнем blob storage,
// здесь только метаданные и агрегаты (скачивания, рейтинг).
type File struct {
	// ID — UUID файла
	ID string
	// OwnerID — идентификатор загрузившего пользователя
	OwnerID string
	// Name — оригинальное имя файла
	Name string
	// Extension — расширение в нижнем регистре без точки (ключ прайс-листа)
	Extension string
	// SizeBytes — размер файла в байтах
	SizeBytes int64
	// DownloadCount — количество скачиваний
	DownloadCount int64
	// TotalRatingSum — сумма всех оценок
	TotalRatingSum int64
	// RatingCount — количество оценок
	RatingCount int64
	// CreatedAt — время загрузки
	CreatedAt time.Time
}

// MeanRating возвращает среднюю оценку файла или 0, если оценок нет.
func (f *File) MeanRating() float64 {
	if f.RatingCount == 0 {
		return 0
	}
	return float64(f.TotalRatingSum) / float64(f.RatingCount)
}

// NormalizeExtension приводит расширение к виду ключа прайс-листа:
// нижний регистр, без ведущей точки и пробелов.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtensionFromName извлекает нормализованное расширение из имени файла.
// Для имени без расширения возвращает пустую строку.
func ExtensionFromName(name string) string {
	return NormalizeExtension(filepath.Ext(name))
}
