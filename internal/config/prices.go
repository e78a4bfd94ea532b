package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// priceFile — формат YAML прайс-листа:
//
//	prices:
//	  pdf: 30
//	  docx: 20
//	  "*": 50
type priceFile struct {
	Prices map[string]int64 `yaml:"prices"`
}

// LoadPrices читает прайс-лист разблокировки из YAML-файла.
// Ключи — расширения файлов, "*" — цена по умолчанию.
// Проверка полноты (наличие "*") выполняется при построении service.PriceTable.
func LoadPrices(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения прайс-листа %s: %w", path, err)
	}
	return ParsePrices(data)
}

// ParsePrices разбирает YAML прайс-листа.
func ParsePrices(data []byte) (map[string]int64, error) {
	var pf priceFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("ошибка разбора прайс-листа: %w", err)
	}
	if len(pf.Prices) == 0 {
		return nil, fmt.Errorf("прайс-лист пуст: ожидается секция prices")
	}
	for ext, cost := range pf.Prices {
		if cost < 0 {
			return nil, fmt.Errorf("прайс-лист: отрицательная цена %d для %q", cost, ext)
		}
	}
	return pf.Prices, nil
}
