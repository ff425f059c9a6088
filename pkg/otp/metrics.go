package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnhub_otp_issued_total",
		Help: "One-time codes issued and queued for delivery",
	})
	otpRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnhub_otp_rate_limited_total",
		Help: "Code requests rejected by the resend cooldown",
	})
	otpVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_otp_verifications_total",
		Help: "Code verifications by result",
	}, []string{"result"})
)
