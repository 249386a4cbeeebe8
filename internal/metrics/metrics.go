package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    gatewayReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "examprep",
            Name:      "gateway_requests_total",
            Help:      "Total LLM gateway requests by capability and result",
        },
        []string{"capability", "result"},
    )

    gatewayLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "examprep",
            Name:      "gateway_request_duration_seconds",
            Help:      "Duration of LLM gateway requests by capability",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"capability"},
    )

    extractionRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "examprep",
            Name:      "extraction_runs_total",
            Help:      "Total extraction runs by result (success, failed)",
        },
        []string{"result"},
    )

    pagesExtracted = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "examprep",
            Name:      "pages_extracted_total",
            Help:      "Pages processed, labeled by source (text_layer, ocr, degraded)",
        },
        []string{"source"},
    )

    cooldownEvents = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "examprep",
            Name:      "gateway_cooldown_events_total",
            Help:      "Gateway cooldown events by capability and action",
        },
        []string{"capability", "action"},
    )

    wrongAnswers = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "examprep",
            Name:      "wrong_answers_total",
            Help:      "Wrong answers recorded by question type",
        },
        []string{"question_type"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(gatewayReqs, gatewayLatency, extractionRuns, pagesExtracted, cooldownEvents, wrongAnswers)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveGateway(capability, result string, dur time.Duration) {
    gatewayReqs.WithLabelValues(capability, result).Inc()
    gatewayLatency.WithLabelValues(capability).Observe(dur.Seconds())
}

func IncExtraction(result string) { extractionRuns.WithLabelValues(result).Inc() }
func IncPage(source string) { pagesExtracted.WithLabelValues(source).Inc() }

func CooldownOpened(capability string) { cooldownEvents.WithLabelValues(capability, "opened").Inc() }
func CooldownClosed(capability string) { cooldownEvents.WithLabelValues(capability, "closed").Inc() }

func IncWrongAnswer(questionType string) { wrongAnswers.WithLabelValues(questionType).Inc() }
