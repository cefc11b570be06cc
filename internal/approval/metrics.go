package approval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	regenerationRequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "film_generator_regeneration_requests_created_total",
		Help: "Количество созданных запросов на перегенерацию.",
	})

	regenerationRequestsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "film_generator_regeneration_requests_completed_total",
		Help: "Количество подтвержденных запросов на перегенерацию.",
	})

	regenerationAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "film_generator_regeneration_attempts_total",
		Help: "Количество выполненных попыток генерации кандидатов.",
	})
)
