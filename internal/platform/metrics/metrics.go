package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the Prometheus counters exported by the API.
type Collectors struct {
	ordersPlaced   prometheus.Counter
	ordersFailed   *prometheus.CounterVec
	providerEvents *prometheus.CounterVec
}

// NewCollectors creates and registers the collectors on the given registry.
// Passing nil registers on the default registry.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collectors{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Number of orders successfully placed.",
		}),
		ordersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_failed_total",
			Help: "Number of order placements that failed, by reason.",
		}, []string{"reason"}),
		providerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_provider_events_total",
			Help: "Payment provider events processed, by source and whether they changed state.",
		}, []string{"source", "applied"}),
	}

	reg.MustRegister(c.ordersPlaced, c.ordersFailed, c.providerEvents)
	return c
}

// OrderPlaced counts one successful order placement.
func (c *Collectors) OrderPlaced() {
	c.ordersPlaced.Inc()
}

// OrderFailed counts one failed order placement.
func (c *Collectors) OrderFailed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	c.ordersFailed.WithLabelValues(reason).Inc()
}

// ProviderEvent counts one reconciled provider event. Deduplicated events are
// recorded with applied=false.
func (c *Collectors) ProviderEvent(source string, applied bool) {
	if source == "" {
		source = "unknown"
	}
	c.providerEvents.WithLabelValues(source, strconv.FormatBool(applied)).Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
