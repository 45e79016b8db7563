package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardsTracerName  = "trello-clone/api"
	boardsSpanName    = "api.boards.read"
	boardsEventName   = "boards.request.metrics"
	boardsEventDomain = "boards"
)

// boardRequestMetrics collects per-request timings for the board read paths
// and emits them twice on Log: as a span event on the request span and as a
// structured logrus record carrying the trace id.
type boardRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	route  string
	start  time.Time

	authDuration    time.Duration
	fetchDuration   time.Duration
	encodeDuration  time.Duration
	servedFromCache bool
	boardsReturned  int
	errorStage      string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*boardRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(boardsTracerName).Start(ctx, boardsSpanName)
	m := &boardRequestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		start:  time.Now(),
	}
	return m, spanCtx
}

func (m *boardRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *boardRequestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *boardRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *boardRequestMetrics) SetServedFromCache(cached bool) {
	m.servedFromCache = cached
}

func (m *boardRequestMetrics) SetBoardsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.boardsReturned = count
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finalizes the request span and writes the observability record.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil || m.span == nil {
		return
	}

	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("trello.boards.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Bool("trello.boards.cache_hit", m.servedFromCache),
		attribute.Int("trello.boards.boards_returned", m.boardsReturned),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("trello.boards.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("trello.boards.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("trello.boards.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("trello.boards.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	m.span.SetAttributes(attrs...)

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", boardsEventName),
		attribute.String("event.domain", boardsEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
	} else if status >= 500 {
		m.span.SetStatus(codes.Error, "server error")
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}

	fieldAttrs := map[string]any{}
	for _, kv := range attrs {
		fieldAttrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      boardsEventName,
		"event.domain":    boardsEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      fieldAttrs,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}

	entry := m.logger.WithFields(fields)
	switch {
	case severityNumber >= 17:
		entry.Error("observability.event")
	case severityNumber >= 13:
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
