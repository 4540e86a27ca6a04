package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zombar/newscheck/internal/tracing"
)

func getSpanNames(spans tracetest.SpanStubs) []string {
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name
	}
	return names
}

func TestAnalyzeTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	env := setupTestHandler(t)
	handler := tracing.HTTPMiddleware("newscheck")(env.handler.mux)

	body := `{"title":"Gobierno anuncia medidas","body":"Cuerpo","source":"diario"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()

	var server, analyze *tracetest.SpanStub
	for i := range spans {
		switch spans[i].Name {
		case "verifier.analyze":
			analyze = &spans[i]
		case "POST /api/analyze":
			server = &spans[i]
		}
	}
	require.NotNil(t, analyze, "spans: %v", getSpanNames(spans))
	require.NotNil(t, server, "spans: %v", getSpanNames(spans))

	assert.Equal(t, server.SpanContext.TraceID(), analyze.SpanContext.TraceID())
	assert.Equal(t, server.SpanContext.SpanID(), analyze.Parent.SpanID())

	attrs := map[string]any{}
	for _, kv := range server.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "diario", attrs["article.source"])
	assert.Equal(t, int64(len("Gobierno anuncia medidas")), attrs["article.title_length"])
}
