// pricing.go — прайс-лист разблокировки по расширению файла.
package service

import (
	"fmt"
	"sort"

	"github.com/taskmasterai/community-module/internal/domain/model"
)

// WildcardExtension — ключ цены по умолчанию.
const WildcardExtension = "*"

// PriceEntry — строка прайс-листа.
type PriceEntry struct {
	Extension string `json:"extension"`
	Cost      int64  `json:"cost"`
}

// PriceTable — стоимость разблокировки по расширению. Неизменяема после создания.
type PriceTable struct {
	prices map[string]int64
}

// NewPriceTable создаёт прайс-лист. Ключи нормализуются как расширения,
// цена по умолчанию "*" обязательна.
func NewPriceTable(prices map[string]int64) (*PriceTable, error) {
	normalized := make(map[string]int64, len(prices))
	for ext, cost := range prices {
		if cost < 0 {
			return nil, fmt.Errorf("%w: отрицательная цена %d для %q", ErrValidation, cost, ext)
		}
		key := ext
		if key != WildcardExtension {
			key = model.NormalizeExtension(ext)
		}
		normalized[key] = cost
	}
	if _, ok := normalized[WildcardExtension]; !ok {
		return nil, fmt.Errorf("%w: в прайс-листе нет цены по умолчанию %q", ErrValidation, WildcardExtension)
	}
	return &PriceTable{prices: normalized}, nil
}

// DefaultPriceTable возвращает встроенный прайс-лист.
func DefaultPriceTable() *PriceTable {
	return &PriceTable{prices: map[string]int64{
		"pdf":             30,
		"docx":            20,
		"pptx":            25,
		"txt":             10,
		"md":              10,
		WildcardExtension: 50,
	}}
}

// CostFor возвращает стоимость разблокировки файла с расширением ext.
func (p *PriceTable) CostFor(ext string) int64 {
	if cost, ok := p.prices[model.NormalizeExtension(ext)]; ok {
		return cost
	}
	return p.prices[WildcardExtension]
}

// Entries возвращает строки прайс-листа, отсортированные по расширению.
func (p *PriceTable) Entries() []PriceEntry {
	entries := make([]PriceEntry, 0, len(p.prices))
	for ext, cost := range p.prices {
		entries = append(entries, PriceEntry{Extension: ext, Cost: cost})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Extension < entries[j].Extension
	})
	return entries
}
