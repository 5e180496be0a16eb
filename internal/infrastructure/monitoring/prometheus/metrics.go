package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the application metrics. A nil *AppMetrics is valid and
// records nothing.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	AnalysesTotal     CounterVec
	AnalysisDuration  HistogramVec
	StageDuration     HistogramVec
	ConformerAttempts HistogramVec

	ResolutionsTotal   CounterVec
	ResolutionDuration HistogramVec

	ExternalCallsTotal   CounterVec
	ExternalCallDuration HistogramVec

	CacheRequestsTotal CounterVec

	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec

	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
	BuildInfo         GaugeVec
}

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalysisDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30}
	DefaultExternalDurationBuckets = []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30}
	conformerAttemptBuckets        = []float64{1, 2, 3, 5, 8, 13, 21}
)

// NewAppMetrics registers every metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.AnalysesTotal = collector.RegisterCounter("analyses_total", "Query analyses by outcome and resolution source", "outcome", "source")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "End-to-end analysis duration", DefaultAnalysisDurationBuckets, "outcome")
	m.StageDuration = collector.RegisterHistogram("analysis_stage_duration_seconds", "Duration of individual analysis stages", DefaultAnalysisDurationBuckets, "stage")
	m.ConformerAttempts = collector.RegisterHistogram("conformer_attempts", "Embedding attempts per generated conformer", conformerAttemptBuckets)

	m.ResolutionsTotal = collector.RegisterCounter("resolutions_total", "Entity resolutions by method", "method", "cached")
	m.ResolutionDuration = collector.RegisterHistogram("resolution_duration_seconds", "Entity resolution duration", DefaultExternalDurationBuckets, "method")

	m.ExternalCallsTotal = collector.RegisterCounter("external_calls_total", "Calls to external services", "service", "outcome")
	m.ExternalCallDuration = collector.RegisterHistogram("external_call_duration_seconds", "External service call duration", DefaultExternalDurationBuckets, "service")

	m.CacheRequestsTotal = collector.RegisterCounter("cache_requests_total", "Cache lookups", "cache", "result")

	m.MessagesTotal = collector.RegisterCounter("messages_total", "Consumed messages by outcome", "topic", "outcome")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Component health (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")
	m.BuildInfo = collector.RegisterGauge("build_info", "Build information", "version", "commit")

	return m
}

func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordAnalysis counts a finished analysis. outcome is detected,
// undetected or error.
func (m *AppMetrics) RecordAnalysis(outcome, source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome, source).Inc()
	m.AnalysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordConformer(attempts int) {
	if m == nil {
		return
	}
	m.ConformerAttempts.WithLabelValues().Observe(float64(attempts))
}

// RecordResolution implements the resolver's metrics hook.
func (m *AppMetrics) RecordResolution(method string, cached bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(method, strconv.FormatBool(cached)).Inc()
	if !cached {
		m.ResolutionDuration.WithLabelValues(method).Observe(duration.Seconds())
	}
}

// RecordExternalCall implements the PubChem client's metrics hook.
func (m *AppMetrics) RecordExternalCall(service, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ExternalCallsTotal.WithLabelValues(service, outcome).Inc()
	m.ExternalCallDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

func (m *AppMetrics) RecordMessage(topic, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(topic, outcome).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func (m *AppMetrics) RecordError(component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

func (m *AppMetrics) SetBuildInfo(version, commit string) {
	if m == nil {
		return
	}
	m.BuildInfo.WithLabelValues(version, commit).Set(1)
}
