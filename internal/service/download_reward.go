// download_reward.go — вознаграждение владельца за скачивание его файла.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

// DownloadResult — результат обработки скачивания.
type DownloadResult struct {
	FileID       string
	OwnerID      string
	DownloaderID string
	// DownloadCount — счётчик скачиваний после операции
	DownloadCount int64
	// Credited — начислено владельцу
	Credited int64
	// SelfDownload — владелец скачал собственный файл (без вознаграждения)
	SelfDownload bool
	// OwnerMissing — запись владельца отсутствует, вознаграждение не начислено
	OwnerMissing bool
}

// DownloadRewardProcessor — счётчик скачиваний и вознаграждение владельцу.
type DownloadRewardProcessor struct {
	store     repository.Store
	ledger    *TokenLedger
	economy   Economy
	publisher EventPublisher
	logger    *slog.Logger
}

// NewDownloadRewardProcessor создаёт обработчик скачиваний.
func NewDownloadRewardProcessor(
	store repository.Store,
	ledger *TokenLedger,
	economy Economy,
	publisher EventPublisher,
	logger *slog.Logger,
) *DownloadRewardProcessor {
	return &DownloadRewardProcessor{
		store:     store,
		ledger:    ledger,
		economy:   economy,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "download_reward")),
	}
}

// OnFileDownloaded увеличивает счётчик скачиваний и начисляет владельцу
// TokensPerDownload в одной транзакции. Владелец берётся из записи файла;
// ownerID от вызывающей стороны только сверяется. Скачивание владельцем
// собственного файла учитывается в счётчике, но не оплачивается.
func (p *DownloadRewardProcessor) OnFileDownloaded(ctx context.Context, fileID, ownerID, downloaderID string) (*DownloadResult, error) {
	var result DownloadResult
	err := p.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = DownloadResult{FileID: fileID, DownloaderID: downloaderID}

		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		result.OwnerID = file.OwnerID

		file.DownloadCount++
		if err := tx.UpdateFile(ctx, file); err != nil {
			return fmt.Errorf("ошибка обновления счётчика скачиваний: %w", err)
		}
		result.DownloadCount = file.DownloadCount

		if downloaderID == file.OwnerID {
			result.SelfDownload = true
			return nil
		}
		if p.economy.TokensPerDownload <= 0 {
			return nil
		}

		if _, err := p.ledger.Credit(ctx, tx, file.OwnerID, p.economy.TokensPerDownload); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				result.OwnerMissing = true
				return nil
			}
			return err
		}
		result.Credited = p.economy.TokensPerDownload
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if ownerID != "" && ownerID != result.OwnerID {
		p.logger.Warn("Владелец из уведомления не совпадает с владельцем файла",
			slog.String("file_id", fileID),
			slog.String("reported_owner_id", ownerID),
			slog.String("owner_id", result.OwnerID),
		)
	}

	switch {
	case result.OwnerMissing:
		p.logger.Warn("Владелец файла не найден, вознаграждение не начислено",
			slog.String("file_id", fileID),
			slog.String("owner_id", result.OwnerID),
		)
	case result.Credited > 0:
		tokensCreditedTotal.WithLabelValues(reasonDownload).Add(float64(result.Credited))
		p.logger.Debug("Начислено вознаграждение за скачивание",
			slog.String("file_id", fileID),
			slog.String("owner_id", result.OwnerID),
			slog.String("downloader_id", downloaderID),
			slog.Int64("download_count", result.DownloadCount),
		)
		publishAll(ctx, p.publisher, p.logger, newEvent(model.EventDownloadRewarded, result.OwnerID, fileID, map[string]any{
			"downloader_id":  downloaderID,
			"credited":       result.Credited,
			"download_count": result.DownloadCount,
		}, time.Now()))
	}
	return &result, nil
}
