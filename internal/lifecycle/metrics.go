package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label result
const (
	resultOK       = "ok"
	resultError    = "error"
	resultSkipped  = "skipped"
	resultRejected = "rejected" // ошибка оператора: нет игрока, неверный индекс
)

// Metrics - счётчики жизненного цикла снапшотов
type Metrics struct {
	captures     *prometheus.CounterVec
	restores     *prometheus.CounterVec
	lists        prometheus.Counter
	payloadBytes prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется отдельный реестр (удобно в тестах).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backinv",
			Name:      "captures_total",
			Help:      "Снапшоты, снятые при смерти игрока, по результату.",
		}, []string{"result"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backinv",
			Name:      "restores_total",
			Help:      "Попытки восстановления инвентаря по результату.",
		}, []string{"result"}),
		lists: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backinv",
			Name:      "list_requests_total",
			Help:      "Запросы списка снапшотов.",
		}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "backinv",
			Name:      "snapshot_payload_bytes",
			Help:      "Размер сохранённых снапшотов.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.captures, m.restores, m.lists, m.payloadBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
