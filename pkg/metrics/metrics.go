package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "http_requests_total", Help: "HTTP requests by method, route and status."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "deskhub", Name: "http_request_duration_seconds", Help: "HTTP request latency.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	RitualTasksGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "ritual_tasks_generated_total", Help: "Ritual calendar tasks generated by ritual kind."},
		[]string{"ritual"},
	)
	StorageBytesUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "storage_bytes_uploaded_total", Help: "Bytes written to object storage."},
	)
	AssistantRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "assistant_requests_total", Help: "Generative AI calls by operation and outcome."},
		[]string{"op", "outcome"},
	)
	MailSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "deskhub", Name: "mail_sent_total", Help: "Outgoing mail attempts by outcome."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPDuration)
	reg.MustRegister(RitualTasksGenerated)
	reg.MustRegister(StorageBytesUploaded)
	reg.MustRegister(AssistantRequests)
	reg.MustRegister(MailSent)
}
