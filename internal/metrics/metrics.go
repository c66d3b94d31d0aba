// Package metrics exposes Prometheus collectors for the listing watcher.
// The process runs once and exits, so collectors are pushed to a Pushgateway
// instead of being scraped.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	pagesTotal             *prometheus.CounterVec
	pageBytesTotal         *prometheus.CounterVec
	listingsExtractedTotal prometheus.Counter
	listingsDegradedTotal  prometheus.Counter
	listingsNewTotal       prometheus.Counter
	listingsWrittenTotal   prometheus.Counter
	notificationsTotal     *prometheus.CounterVec
	lastRunDuration        prometheus.Gauge
	lastSuccessTimestamp   prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_pages_total",
				Help: "Total number of listing pages processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		pageBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_page_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		listingsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobwatch_listings_extracted_total",
			Help: "Listings extracted from fetched pages.",
		})

		listingsDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobwatch_listings_degraded_total",
			Help: "Extracted listings with at least one missing field.",
		})

		listingsNewTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobwatch_listings_new_total",
			Help: "Listings not present in the store before the run.",
		})

		listingsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobwatch_listings_written_total",
			Help: "Rows appended to the listing store.",
		})

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobwatch_notifications_total",
				Help: "Digest emails attempted, labeled by status.",
			},
			[]string{"status"},
		)

		lastRunDuration = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobwatch_last_run_duration_seconds",
			Help: "Wall time of the most recent run.",
		})

		lastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobwatch_last_success_timestamp_seconds",
			Help: "Unix time of the most recent run that finished without errors.",
		})
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObservePage records one processed page.
func ObservePage(pageURL string, status string, bytesFetched int) {
	site := SanitizeSite(pageURL)
	pagesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		pageBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveExtraction records the combined extraction counts of a run.
func ObserveExtraction(extracted, degraded int) {
	listingsExtractedTotal.Add(float64(extracted))
	listingsDegradedTotal.Add(float64(degraded))
}

// ObserveNewListings records how many listings survived dedup.
func ObserveNewListings(n int) {
	listingsNewTotal.Add(float64(n))
}

// ObserveWritten records how many rows were appended to the store.
func ObserveWritten(n int) {
	listingsWrittenTotal.Add(float64(n))
}

// ObserveNotification increments the notification counter for the given status.
func ObserveNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// ObserveRun records the duration of a run and, when it succeeded, its finish time.
func ObserveRun(duration time.Duration, success bool, finishedAt time.Time) {
	lastRunDuration.Set(duration.Seconds())
	if success {
		lastSuccessTimestamp.Set(float64(finishedAt.Unix()))
	}
}

// Push sends every registered collector to the Pushgateway at gatewayURL
// under the given job name.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = "jobwatch"
	}
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
