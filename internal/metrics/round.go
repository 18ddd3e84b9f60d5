package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_open_total",
			Help: "Total rounds opened by game_type and trigger",
		},
		[]string{"game_type", "trigger"},
	)

	actionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_action_total",
			Help: "Total player actions by result, game_type and action",
		},
		[]string{"result", "game_type", "action"},
	)

	actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "game_action_duration_ms",
			Help:    "Player action duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"result", "game_type"},
	)

	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settle_total",
			Help: "Total settlement calls by result, game_type and case",
		},
		[]string{"result", "game_type", "case"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settle_duration_ms",
			Help:    "Settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "game_type"},
	)

	outboxRelayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_relay_total",
			Help: "Outbox relay attempts by result",
		},
		[]string{"result"},
	)
)

// 结果标签：success | rejected(校验失败) | fail(系统错误) | noop
func normalizeResult(result string) string {
	switch result {
	case "success", "rejected", "noop":
		return result
	}
	return "fail"
}

// RecordRoundOpened trigger: startup | chain | request
func RecordRoundOpened(gameType, trigger string) {
	roundOpenTotal.WithLabelValues(gameType, trigger).Inc()
}

// RecordAction records business metrics for a player action.
func RecordAction(result, gameType, action string, started time.Time) {
	res := normalizeResult(result)
	actionTotal.WithLabelValues(res, gameType, action).Inc()
	actionDuration.WithLabelValues(res, gameType).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordSettle records business metrics for a settlement call; settleCase is A, B, C or empty.
func RecordSettle(result, gameType, settleCase string, started time.Time) {
	res := normalizeResult(result)
	settleTotal.WithLabelValues(res, gameType, settleCase).Inc()
	settleDuration.WithLabelValues(res, gameType).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordOutboxRelay result: sent | failed
func RecordOutboxRelay(result string) {
	outboxRelayTotal.WithLabelValues(result).Inc()
}
