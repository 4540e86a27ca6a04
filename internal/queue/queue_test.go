package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/newscheck/internal/feedback"
	"github.com/zombar/newscheck/internal/models"
)

var _ feedback.Launcher = (*Client)(nil)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeRetrainer struct {
	result models.RetrainResult
	calls  int
}

func (f *fakeRetrainer) RetrainNow(context.Context) models.RetrainResult {
	f.calls++
	return f.result
}

type fakeCalibrator struct {
	entry models.CalibrationLogEntry
	err   error
	calls int
}

func (f *fakeCalibrator) Calibrate(context.Context) (models.CalibrationLogEntry, error) {
	f.calls++
	return f.entry, f.err
}

func newTestClient(enq *fakeEnqueuer) *Client {
	return &Client{client: enq, logger: discardLogger()}
}

func newTestWorker(r RetrainRunner, c Calibrator) *Worker {
	w := NewWorker(WorkerConfig{RedisAddr: "localhost:0"}, r, c)
	w.logger = discardLogger()
	return w
}

func TestTaskTypeConstants(t *testing.T) {
	assert.Equal(t, "newscheck:retrain_model", TypeRetrainModel)
	assert.Equal(t, "newscheck:run_calibration", TypeRunCalibration)
}

func TestEnqueueRetrain(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := newTestClient(enq)

	id, err := client.EnqueueRetrain(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeRetrainModel, enq.tasks[0].Type())

	var payload TaskPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "manual", payload.Trigger)
	assert.NotZero(t, payload.EnqueuedAt)
	assert.Empty(t, payload.TraceID)
}

func TestEnqueueRetrainDuplicateIsNotAnError(t *testing.T) {
	client := newTestClient(&fakeEnqueuer{err: asynq.ErrDuplicateTask})

	id, err := client.EnqueueRetrain(context.Background(), "feedback")
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, client.LaunchRetrain(context.Background()))
}

func TestEnqueueErrors(t *testing.T) {
	client := newTestClient(&fakeEnqueuer{err: errors.New("redis down")})

	assert.Error(t, client.LaunchRetrain(context.Background()))

	_, err := client.EnqueueCalibration(context.Background(), "manual")
	assert.ErrorContains(t, err, "redis down")
}

func TestEnqueueCalibration(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := newTestClient(enq)

	_, err := client.EnqueueCalibration(context.Background(), "schedule")
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeRunCalibration, enq.tasks[0].Type())
}

func TestHandleRetrain(t *testing.T) {
	tests := []struct {
		name    string
		result  models.RetrainResult
		wantErr bool
	}{
		{"trained", models.RetrainResult{Trained: true, FeedbackCount: 3}, false},
		{"insufficient feedback", models.RetrainResult{FeedbackCount: 1, Reason: models.ReasonInsufficientFeedback}, false},
		{"already running", models.RetrainResult{Reason: models.ReasonAlreadyRunning}, false},
		{"training failed", models.RetrainResult{Reason: models.ReasonTrainingFailed, Error: "exit status 1"}, true},
		{"exception", models.RetrainResult{Reason: models.ReasonException, Error: "boom"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrainer := &fakeRetrainer{result: tt.result}
			w := newTestWorker(retrainer, &fakeCalibrator{})

			task, err := NewRetrainTask(context.Background(), "manual", 0)
			require.NoError(t, err)

			err = w.Handler().ProcessTask(context.Background(), task)
			assert.Equal(t, 1, retrainer.calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, asynq.SkipRetry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandleCalibration(t *testing.T) {
	calibrator := &fakeCalibrator{entry: models.CalibrationLogEntry{TotalAnalyses: 4, CalibratedAnalyses: 2}}
	w := newTestWorker(&fakeRetrainer{}, calibrator)

	task, err := NewCalibrationTask(context.Background(), "manual")
	require.NoError(t, err)
	require.NoError(t, w.Handler().ProcessTask(context.Background(), task))
	assert.Equal(t, 1, calibrator.calls)

	calibrator.err = errors.New("database locked")
	err = w.Handler().ProcessTask(context.Background(), task)
	assert.ErrorContains(t, err, "database locked")
}

func TestInvalidPayloadSkipsRetry(t *testing.T) {
	retrainer := &fakeRetrainer{}
	w := newTestWorker(retrainer, &fakeCalibrator{})

	err := w.Handler().ProcessTask(context.Background(), asynq.NewTask(TypeRetrainModel, []byte("{not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, retrainer.calls)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 30 * time.Second},
		{1, 2 * time.Minute},
		{2, 10 * time.Minute},
		{9, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(tt.retry, nil, nil))
	}
}

func TestQueuePriorities(t *testing.T) {
	assert.Greater(t, queuePriorities[QueueCalibration], queuePriorities[QueueTraining])
}

func TestRetrainTaskOptions(t *testing.T) {
	timeoutOf := func(opts []asynq.Option) (time.Duration, bool) {
		for _, opt := range opts {
			if opt.Type() == asynq.TimeoutOpt {
				return opt.Value().(time.Duration), true
			}
		}
		return 0, false
	}

	_, bounded := timeoutOf(retrainTaskOptions(0))
	assert.False(t, bounded, "retrain task must not carry a timeout unless one is configured")

	got, bounded := timeoutOf(retrainTaskOptions(2 * time.Hour))
	require.True(t, bounded)
	assert.Equal(t, 2*time.Hour, got)

	maxRetry := -1
	for _, opt := range retrainTaskOptions(0) {
		if opt.Type() == asynq.MaxRetryOpt {
			maxRetry = opt.Value().(int)
		}
	}
	assert.Zero(t, maxRetry)
}
