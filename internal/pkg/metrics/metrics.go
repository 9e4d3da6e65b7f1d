// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionResults 按结果（admitted / sold_out / already_ordered / rate_limited）统计准入次数。
	AdmissionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seckill_admission_results_total",
		Help: "Seckill admission outcomes by result.",
	}, []string{"result"})

	// PersistRetries 统计持久化失败触发的重投次数。
	PersistRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seckill_persist_retries_total",
		Help: "Order persistence failures routed for retry.",
	})

	// DeadLetters 统计进入死信路径的订单数。
	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seckill_dead_letters_total",
		Help: "Orders routed to the dead letter topic.",
	})

	// OrdersPersisted 统计成功落库的订单数。
	OrdersPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seckill_orders_persisted_total",
		Help: "Orders durably persisted.",
	})
)
