package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/platform-authn/internal/infra/config"
)

// Provider holds the service metrics.
type Provider struct {
	attempts        *prometheus.CounterVec
	apiKeyTouches   prometheus.Counter
	throttledLogins prometheus.Counter
}

// Attach registers the service metrics on the default registry.
func Attach(cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authn",
			Name:      "attempts_total",
			Help:      "Authentication attempts by outcome",
		}, []string{"outcome"}),
		apiKeyTouches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "authn",
			Name:      "api_key_last_used_writes_total",
			Help:      "Throttled last-used timestamp writes for API keys",
		}),
		throttledLogins: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "authn",
			Name:      "throttled_logins_total",
			Help:      "Login attempts paused by the attempt limiter",
		}),
	}, nil
}

// ObserveAttempt records an authentication attempt outcome. The outcome label
// is either "success" or a failure reason.
func (p *Provider) ObserveAttempt(outcome string) {
	if p == nil {
		return
	}
	p.attempts.WithLabelValues(outcome).Inc()
}

// ObserveApiKeyTouch records one throttled last-used write.
func (p *Provider) ObserveApiKeyTouch() {
	if p == nil {
		return
	}
	p.apiKeyTouches.Inc()
}

// ObserveThrottledLogin records one paused login attempt.
func (p *Provider) ObserveThrottledLogin() {
	if p == nil {
		return
	}
	p.throttledLogins.Inc()
}
