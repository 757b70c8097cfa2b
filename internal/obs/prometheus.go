package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusHandler serves the /metrics scrape endpoint for a registry
// passed as Config.PrometheusRegisterer to Init. Call this with the same
// registry instance so the handler actually reflects the instruments
// registered against the real meter provider.
func PrometheusHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
