package observability

import "github.com/prometheus/client_golang/prometheus"

// Bot collectors. Labels are bounded: update kinds, state names, and order
// enums only.
var (
	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound bot events by kind (message, command, callback, location, contact).",
		},
		[]string{"kind"},
	)

	botTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_state_transitions_total",
			Help: "Dialogue state changes.",
		},
		[]string{"from", "to"},
	)

	botHandleLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_handle_duration_seconds",
			Help:    "Time spent handling one inbound event.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"},
	)

	ordersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Orders persisted, by delivery type.",
		},
		[]string{"delivery_type"},
	)

	ordersFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Orders moved to a final status.",
		},
		[]string{"status"},
	)

	sendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_send_errors_total",
			Help: "Outbound Telegram calls that failed.",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(botUpdates, botTransitions, botHandleLat, ordersSubmitted, ordersFinalized, sendErrors)
}

// BotUpdate counts one inbound event.
func BotUpdate(kind string) { botUpdates.WithLabelValues(kind).Inc() }

// ObserveHandle records handling latency in seconds.
func ObserveHandle(kind string, seconds float64) { botHandleLat.WithLabelValues(kind).Observe(seconds) }

// StateTransition counts a state change; self-transitions are ignored.
func StateTransition(from, to string) {
	if from == to {
		return
	}
	botTransitions.WithLabelValues(from, to).Inc()
}

// OrderSubmitted counts a persisted order.
func OrderSubmitted(deliveryType string) { ordersSubmitted.WithLabelValues(deliveryType).Inc() }

// OrderFinalized counts an order reaching status.
func OrderFinalized(status string) { ordersFinalized.WithLabelValues(status).Inc() }

// SendError counts a failed outbound call.
func SendError(method string) { sendErrors.WithLabelValues(method).Inc() }
