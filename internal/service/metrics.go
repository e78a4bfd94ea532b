package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики файловой экономики. Обновляются только после коммита,
// повторы транзакций не искажают счётчики.
var (
	tokensCreditedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_tokens_credited_total",
		Help: "Общее количество начисленных токенов (по причине начисления).",
	}, []string{"reason"})

	tokensDebitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_tokens_debited_total",
		Help: "Общее количество списанных токенов.",
	})

	unlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_unlocks_total",
		Help: "Количество попыток разблокировки файлов (по результату).",
	}, []string{"result"})

	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_votes_total",
		Help: "Количество нажатий like/dislike.",
	}, []string{"kind"})

	ratingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_ratings_total",
		Help: "Количество оценок файлов (new — первая оценка, update — изменение).",
	}, []string{"kind"})

	abuseCorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_abuse_corrections_total",
		Help: "Количество исправлений завышенного счётчика бонусов.",
	})
)

// Причины начисления токенов.
const (
	reasonUploadBonus = "upload_bonus"
	reasonDownload    = "download"
	// ReasonAdmin — ручное начисление администратором (community-ctl)
	ReasonAdmin = "admin"
)
