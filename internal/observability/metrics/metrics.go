package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for the booking engine.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	statusChangesTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		statusChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "status_changes_total",
			Help:      "Appointment status changes by target status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.statusChangesTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChangesTotal.WithLabelValues(status).Inc()
}

// MessagingMetrics exposes counters for the messaging gateway.
type MessagingMetrics struct {
	sendsTotal *prometheus.CounterVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "messaging",
			Name:      "sends_total",
			Help:      "Outbound sends by channel and resulting status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sendsTotal)
	return m
}

func (m *MessagingMetrics) ObserveSend(channel, status string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(channel, status).Inc()
}

// CampaignMetrics exposes counters and timings for the daily batch jobs.
type CampaignMetrics struct {
	jobRunsTotal *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
}

func NewCampaignMetrics(reg prometheus.Registerer) *CampaignMetrics {
	m := &CampaignMetrics{
		jobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "campaigns",
			Name:      "job_runs_total",
			Help:      "Campaign job executions by job and outcome",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "campaigns",
			Name:      "job_duration_seconds",
			Help:      "Duration of campaign job executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.jobRunsTotal, m.jobDuration)
	return m
}

func (m *CampaignMetrics) ObserveJob(job, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(seconds)
}
