// reputation.go — лайки, дизлайки и звёздные оценки файлов.
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

// Reputation — агрегат репутации файла.
type Reputation struct {
	FileID       string   `json:"file_id"`
	Likes        []string `json:"likes"`
	Dislikes     []string `json:"dislikes"`
	LikeCount    int      `json:"like_count"`
	DislikeCount int      `json:"dislike_count"`
	RatingSum    int64    `json:"rating_sum"`
	RatingCount  int64    `json:"rating_count"`
	Mean         float64  `json:"mean"`
}

func (r Reputation) clone() Reputation {
	r.Likes = append([]string{}, r.Likes...)
	r.Dislikes = append([]string{}, r.Dislikes...)
	return r
}

func buildReputation(file *model.File, votes model.VoteSet) *Reputation {
	likes := votes.Likes()
	dislikes := votes.Dislikes()
	return &Reputation{
		FileID:       file.ID,
		Likes:        likes,
		Dislikes:     dislikes,
		LikeCount:    len(likes),
		DislikeCount: len(dislikes),
		RatingSum:    file.TotalRatingSum,
		RatingCount:  file.RatingCount,
		Mean:         file.MeanRating(),
	}
}

// ReputationAggregator — идемпотентные социальные агрегаты файла.
// Голос пользователя хранится в одной записи, поэтому like и dislike
// одного пользователя взаимоисключающие; повторное нажатие снимает голос.
type ReputationAggregator struct {
	store  repository.Store
	cache  *ReputationCache
	logger *slog.Logger
	now    func() time.Time
}

// NewReputationAggregator создаёт агрегатор. cache может быть nil.
func NewReputationAggregator(store repository.Store, cache *ReputationCache, logger *slog.Logger) *ReputationAggregator {
	return &ReputationAggregator{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "reputation")),
		now:    time.Now,
	}
}

// ToggleLike переключает like пользователя. Снимает dislike, если он был.
func (a *ReputationAggregator) ToggleLike(ctx context.Context, fileID, userID string) (*Reputation, error) {
	return a.toggle(ctx, fileID, userID, model.VoteLike)
}

// ToggleDislike переключает dislike пользователя. Снимает like, если он был.
func (a *ReputationAggregator) ToggleDislike(ctx context.Context, fileID, userID string) (*Reputation, error) {
	return a.toggle(ctx, fileID, userID, model.VoteDislike)
}

func (a *ReputationAggregator) toggle(ctx context.Context, fileID, userID string, kind model.VoteKind) (*Reputation, error) {
	var rep *Reputation
	err := a.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		votes, err := tx.GetVotes(ctx, fileID)
		if err != nil {
			return fmt.Errorf("ошибка получения голосов: %w", err)
		}

		if result, ok := votes.Toggle(userID, kind); ok {
			err = tx.PutVote(ctx, fileID, userID, result)
		} else {
			err = tx.DeleteVote(ctx, fileID, userID)
		}
		if err != nil {
			return fmt.Errorf("ошибка сохранения голоса: %w", err)
		}

		rep = buildReputation(file, votes)
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	a.invalidate(fileID)
	votesTotal.WithLabelValues(string(kind)).Inc()
	a.logger.Debug("Голос обработан",
		slog.String("file_id", fileID),
		slog.String("user_id", userID),
		slog.String("kind", string(kind)),
		slog.Int("likes", rep.LikeCount),
		slog.Int("dislikes", rep.DislikeCount),
	)
	return rep, nil
}

// Rate сохраняет оценку value пользователя. Повторная оценка меняет
// сумму на разницу со старой оценкой, не увеличивая количество.
func (a *ReputationAggregator) Rate(ctx context.Context, fileID, userID string, value int) (*Reputation, error) {
	if !model.ValidRating(value) {
		return nil, ErrInvalidRatingValue
	}

	var (
		rep         *Reputation
		firstRating bool
	)
	err := a.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}

		prev, err := tx.GetRating(ctx, fileID, userID)
		switch {
		case err == nil:
			firstRating = false
			file.TotalRatingSum += int64(value - prev.Value)
		case errors.Is(err, repository.ErrNotFound):
			firstRating = true
			file.TotalRatingSum += int64(value)
			file.RatingCount++
		default:
			return fmt.Errorf("ошибка получения оценки: %w", err)
		}

		if err := tx.PutRating(ctx, &model.Rating{
			FileID:    fileID,
			UserID:    userID,
			Value:     value,
			UpdatedAt: a.now().UTC(),
		}); err != nil {
			return fmt.Errorf("ошибка сохранения оценки: %w", err)
		}
		if err := tx.UpdateFile(ctx, file); err != nil {
			return fmt.Errorf("ошибка обновления рейтинга файла: %w", err)
		}

		votes, err := tx.GetVotes(ctx, fileID)
		if err != nil {
			return fmt.Errorf("ошибка получения голосов: %w", err)
		}
		rep = buildReputation(file, votes)
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	a.invalidate(fileID)
	kind := "update"
	if firstRating {
		kind = "new"
	}
	ratingsTotal.WithLabelValues(kind).Inc()
	a.logger.Debug("Оценка сохранена",
		slog.String("file_id", fileID),
		slog.String("user_id", userID),
		slog.Int("value", value),
		slog.Float64("mean", rep.Mean),
	)
	return rep, nil
}

// Get возвращает репутацию файла, используя кэш.
func (a *ReputationAggregator) Get(ctx context.Context, fileID string) (*Reputation, error) {
	if a.cache != nil {
		if rep, ok := a.cache.Get(fileID); ok {
			return rep, nil
		}
	}

	var rep *Reputation
	err := a.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		votes, err := tx.GetVotes(ctx, fileID)
		if err != nil {
			return fmt.Errorf("ошибка получения голосов: %w", err)
		}
		rep = buildReputation(file, votes)
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if a.cache != nil {
		a.cache.Set(rep)
	}
	return rep, nil
}

func (a *ReputationAggregator) invalidate(fileID string) {
	if a.cache != nil {
		a.cache.Invalidate(fileID)
	}
}
