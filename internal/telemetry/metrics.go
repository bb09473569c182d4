package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Case lifecycle metrics
	CasesOpenedTotal      metric.Int64Counter
	StageTransitionsTotal metric.Int64Counter
	OutcomesRecordedTotal metric.Int64Counter
	CasesMergedTotal      metric.Int64Counter
	CasesDeletedTotal     metric.Int64Counter

	// Intake metrics
	PublicReportsTotal     metric.Int64Counter
	AccessCodeLookupsTotal metric.Int64Counter

	// Attachment metrics
	FilesUploadedTotal metric.Int64Counter
	FileUploadBytes    metric.Int64Counter

	// Auth metrics
	LoginsTotal        metric.Int64Counter
	LoginFailuresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.CasesOpenedTotal, _ = meter.Int64Counter(
		"hotline.cases.opened.total",
		metric.WithDescription("Total number of cases opened"),
		metric.WithUnit("{case}"),
	)

	m.StageTransitionsTotal, _ = meter.Int64Counter(
		"hotline.cases.stage_transitions.total",
		metric.WithDescription("Total number of pipeline stage transitions"),
		metric.WithUnit("{transition}"),
	)

	m.OutcomesRecordedTotal, _ = meter.Int64Counter(
		"hotline.cases.outcomes.total",
		metric.WithDescription("Total number of adjudication outcomes recorded"),
		metric.WithUnit("{outcome}"),
	)

	m.CasesMergedTotal, _ = meter.Int64Counter(
		"hotline.cases.merged.total",
		metric.WithDescription("Total number of cases merged into another case"),
		metric.WithUnit("{case}"),
	)

	m.CasesDeletedTotal, _ = meter.Int64Counter(
		"hotline.cases.deleted.total",
		metric.WithDescription("Total number of cases erased"),
		metric.WithUnit("{case}"),
	)

	m.PublicReportsTotal, _ = meter.Int64Counter(
		"hotline.reports.public.total",
		metric.WithDescription("Total number of anonymous public reports submitted"),
		metric.WithUnit("{report}"),
	)

	m.AccessCodeLookupsTotal, _ = meter.Int64Counter(
		"hotline.reports.access_code_lookups.total",
		metric.WithDescription("Total number of anonymous status lookups by access code"),
		metric.WithUnit("{lookup}"),
	)

	m.FilesUploadedTotal, _ = meter.Int64Counter(
		"hotline.files.uploaded.total",
		metric.WithDescription("Total number of case attachments uploaded"),
		metric.WithUnit("{file}"),
	)

	m.FileUploadBytes, _ = meter.Int64Counter(
		"hotline.files.uploaded.bytes",
		metric.WithDescription("Total bytes of case attachments uploaded"),
		metric.WithUnit("By"),
	)

	m.LoginsTotal, _ = meter.Int64Counter(
		"hotline.auth.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"hotline.auth.login_failures.total",
		metric.WithDescription("Total number of failed login attempts"),
		metric.WithUnit("{failure}"),
	)

	return m
}
