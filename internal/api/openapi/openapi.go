// Пакет openapi — встроенный OpenAPI контракт Community Module.
// Документ загружается и валидируется kin-openapi при старте сервиса
// и отдаётся клиентам на /api/v1/openapi.json.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// Load загружает и валидирует встроенный документ.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки OpenAPI документа: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("OpenAPI документ невалиден: %w", err)
	}
	return doc, nil
}

// Handler возвращает обработчик, отдающий документ в JSON.
// Документ сериализуется один раз.
func Handler(doc *openapi3.T) (http.Handler, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации OpenAPI документа: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}), nil
}

// OperationIDs возвращает operationId всех операций документа по ключу "METHOD path".
func OperationIDs(doc *openapi3.T) map[string]string {
	result := make(map[string]string)
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			result[method+" "+path] = op.OperationID
		}
	}
	return result
}
