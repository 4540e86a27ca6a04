package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/newscheck/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTracing(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder, tp.Tracer("test")
}

func TestTraceContextCapturedOnEnqueue(t *testing.T) {
	recorder, tracer := setupTracing(t)
	enq := &fakeEnqueuer{}
	client := newTestClient(enq)

	ctx, parent := tracer.Start(context.Background(), "http.feedback")
	_, err := client.EnqueueRetrain(ctx, "feedback")
	require.NoError(t, err)
	parent.End()

	var payload TaskPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, parent.SpanContext().TraceID().String(), payload.TraceID)
	assert.Equal(t, parent.SpanContext().SpanID().String(), payload.SpanID)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	events := ended[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "task_enqueued", events[0].Name)
}

func TestTraceContinuedInWorker(t *testing.T) {
	recorder, tracer := setupTracing(t)
	enq := &fakeEnqueuer{}
	client := newTestClient(enq)
	w := newTestWorker(&fakeRetrainer{result: models.RetrainResult{Trained: true}}, &fakeCalibrator{})

	ctx, parent := tracer.Start(context.Background(), "http.feedback")
	_, err := client.EnqueueRetrain(ctx, "feedback")
	require.NoError(t, err)
	parent.End()

	require.NoError(t, w.Handler().ProcessTask(context.Background(), enq.tasks[0]))

	var consumer sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "asynq.task.process" {
			consumer = s
		}
	}
	require.NotNil(t, consumer)
	assert.Equal(t, trace.SpanKindConsumer, consumer.SpanKind())
	assert.Equal(t, parent.SpanContext().TraceID(), consumer.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), consumer.Parent().SpanID())

	attrs := map[string]any{}
	for _, kv := range consumer.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, TypeRetrainModel, attrs["task.type"])
	assert.Equal(t, "feedback", attrs["task.trigger"])
	assert.Equal(t, true, attrs["retrain.trained"])
}

func TestWorkerStartsRootSpanWithoutTraceContext(t *testing.T) {
	recorder, _ := setupTracing(t)
	w := newTestWorker(&fakeRetrainer{}, &fakeCalibrator{})

	data, err := json.Marshal(TaskPayload{Trigger: "schedule", EnqueuedAt: time.Now().Add(-2 * time.Second).UnixNano()})
	require.NoError(t, err)
	require.NoError(t, w.Handler().ProcessTask(context.Background(), asynq.NewTask(TypeRunCalibration, data)))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.False(t, ended[0].Parent().IsValid())

	for _, kv := range ended[0].Attributes() {
		if kv.Key == "queue.wait_time_seconds" {
			assert.GreaterOrEqual(t, kv.Value.AsFloat64(), 2.0)
		}
	}
}
