package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat engine. All Observe
// methods are nil-safe so callers can run without a registry in tests.
type ChatMetrics struct {
	messagesTotal  *prometheus.CounterVec
	responsesTotal *prometheus.CounterVec
	languagesTotal *prometheus.CounterVec
	abuseTotal     *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	aiLatency      prometheus.Histogram
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiochat",
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "Total chat messages processed",
		}, []string{"role"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiochat",
			Subsystem: "engine",
			Name:      "responses_total",
			Help:      "Total bot responses by type and intent",
		}, []string{"type", "intent"}),
		languagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiochat",
			Subsystem: "engine",
			Name:      "languages_total",
			Help:      "Detected message languages",
		}, []string{"language"}),
		abuseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiochat",
			Subsystem: "engine",
			Name:      "abuse_actions_total",
			Help:      "Abuse screening outcomes",
		}, []string{"action"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiochat",
			Subsystem: "engine",
			Name:      "bookings_total",
			Help:      "Booking capture attempts",
		}, []string{"status"}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "studiochat",
			Subsystem: "engine",
			Name:      "ai_latency_seconds",
			Help:      "Latency of generative completion calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.responsesTotal, m.languagesTotal, m.abuseTotal, m.bookingsTotal, m.aiLatency)
	return m
}

func (m *ChatMetrics) ObserveMessage(role string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(role).Inc()
}

func (m *ChatMetrics) ObserveResponse(responseType, intent string) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(responseType, intent).Inc()
}

func (m *ChatMetrics) ObserveLanguage(lang string) {
	if m == nil {
		return
	}
	m.languagesTotal.WithLabelValues(lang).Inc()
}

func (m *ChatMetrics) ObserveAbuseAction(action string) {
	if m == nil {
		return
	}
	m.abuseTotal.WithLabelValues(action).Inc()
}

func (m *ChatMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveAILatency(seconds float64) {
	if m == nil {
		return
	}
	m.aiLatency.Observe(seconds)
}
