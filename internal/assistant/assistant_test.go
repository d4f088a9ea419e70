package assistant_test

import (
	"bytes"
	"context"
	"encoding/csv"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/advisor"
	"codeberg.org/mutker/driveassist/internal/assistant"
	"codeberg.org/mutker/driveassist/internal/broadcast"
	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
	"codeberg.org/mutker/driveassist/internal/metrics"
	"codeberg.org/mutker/driveassist/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader replays a fixed sequence of readings, then repeats the
// last step. onRead runs after every call.
type scriptedReader struct {
	mu     sync.Mutex
	steps  []readStep
	calls  int
	onRead func(calls int)
}

type readStep struct {
	reading telemetry.Reading
	err     error
}

func (r *scriptedReader) Read(_ context.Context) (telemetry.Reading, error) {
	r.mu.Lock()
	i := min(r.calls, len(r.steps)-1)
	r.calls++
	calls := r.calls
	r.mu.Unlock()

	if r.onRead != nil {
		r.onRead(calls)
	}

	return r.steps[i].reading, r.steps[i].err
}

func ok(s telemetry.Snapshot) readStep {
	return readStep{reading: telemetry.Reading{Snapshot: s}}
}

type failingSink struct {
	initErr error
	err     error
	appends int
}

func (f *failingSink) Initialize() error { return f.initErr }

func (f *failingSink) Append(context.Context, dataset.Record) error {
	f.appends++
	return f.err
}

type capturePublisher struct {
	payloads []advice.Payload
	err      error
}

func (c *capturePublisher) Publish(_ context.Context, p advice.Payload) error {
	c.payloads = append(c.payloads, p)
	return c.err
}

type captureBroadcast struct {
	events []broadcast.Event
}

func (c *captureBroadcast) Send(_ context.Context, ev broadcast.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type fileStack struct {
	dir         string
	datasetPath string
	advicePath  string
	sink        dataset.Sink
	publisher   advice.Publisher
}

func newFileStack(t *testing.T) fileStack {
	t.Helper()

	dir := t.TempDir()
	fs := fileStack{
		dir:         dir,
		datasetPath: filepath.Join(dir, "dataset.csv"),
		advicePath:  filepath.Join(dir, "advice.json"),
	}

	var err error
	fs.sink, err = dataset.NewSink(dataset.Config{Path: fs.datasetPath})
	require.NoError(t, err)
	fs.publisher, err = advice.NewPublisher(advice.Config{Path: fs.advicePath})
	require.NoError(t, err)

	return fs
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return rows
}

var (
	normal = telemetry.Snapshot{SpeedKmh: 50, OutsideTempC: 20, CabinTempC: 22, BatteryLevelPercent: 80}
	fast   = telemetry.Snapshot{SpeedKmh: 130, OutsideTempC: 20, CabinTempC: 22, BatteryLevelPercent: 80}
)

func TestNewRequiresCollaborators(t *testing.T) {
	fs := newFileStack(t)
	reader := &scriptedReader{steps: []readStep{ok(normal)}}

	tests := []struct {
		name string
		opts assistant.Options
	}{
		{"no reader", assistant.Options{Dataset: fs.sink, Publisher: fs.publisher}},
		{"no dataset", assistant.Options{Reader: reader, Publisher: fs.publisher}},
		{"no publisher", assistant.Options{Reader: reader, Dataset: fs.sink}},
		{"negative interval", assistant.Options{Reader: reader, Dataset: fs.sink, Publisher: fs.publisher, Interval: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assistant.New(tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.ErrConfig))
		})
	}
}

func TestTickWritesDatasetAndAdvice(t *testing.T) {
	fs := newFileStack(t)
	require.NoError(t, fs.sink.Initialize())

	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)
	a, err := assistant.New(assistant.Options{
		Reader:    &scriptedReader{steps: []readStep{ok(fast)}},
		Dataset:   fs.sink,
		Publisher: fs.publisher,
		Now:       func() time.Time { return at },
	})
	require.NoError(t, err)

	res := a.Tick(context.Background())
	require.NoError(t, res.Read)
	assert.Equal(t, assistant.OutcomeOK, res.Outcome())
	assert.Equal(t, advisor.SafetyTip, res.Record.Label)

	rows := readRows(t, fs.datasetPath)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-06-01T08:00:00.000000", "130", "20", "22", "80", "2"}, rows[1])

	data, err := os.ReadFile(fs.advicePath)
	require.NoError(t, err)
	want, err := advice.NewPayload(fast).Encode()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(data))
}

func TestReadFailureLeavesOutputsUntouched(t *testing.T) {
	fs := newFileStack(t)
	require.NoError(t, fs.sink.Initialize())

	reader := &scriptedReader{steps: []readStep{
		ok(normal),
		{err: errors.New().New(telemetry.ErrParseFailed)},
		ok(fast),
	}}
	a, err := assistant.New(assistant.Options{Reader: reader, Dataset: fs.sink, Publisher: fs.publisher})
	require.NoError(t, err)

	first := a.Tick(context.Background())
	require.NoError(t, first.Read)

	before, err := os.ReadFile(fs.advicePath)
	require.NoError(t, err)
	rowsBefore := readRows(t, fs.datasetPath)

	failed := a.Tick(context.Background())
	require.Error(t, failed.Read)
	assert.Equal(t, assistant.OutcomeReadFailed, failed.Outcome())
	assert.Nil(t, failed.Record)

	after, err := os.ReadFile(fs.advicePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, rowsBefore, readRows(t, fs.datasetPath))

	third := a.Tick(context.Background())
	require.NoError(t, third.Read)
	assert.Len(t, readRows(t, fs.datasetPath), 3)
}

func TestDatasetFailureStillPublishes(t *testing.T) {
	sink := &failingSink{err: errors.New().New(dataset.ErrAppendFailed)}
	pub := &capturePublisher{}
	bc := &captureBroadcast{}
	m := metrics.NewLoop()

	a, err := assistant.New(assistant.Options{
		Reader:    &scriptedReader{steps: []readStep{ok(normal)}},
		Dataset:   sink,
		Publisher: pub,
		Broadcast: bc,
		Metrics:   m,
	})
	require.NoError(t, err)

	res := a.Tick(context.Background())
	assert.Error(t, res.Dataset)
	assert.NoError(t, res.Publish)
	assert.Equal(t, assistant.OutcomeWriteFailed, res.Outcome())
	assert.Len(t, pub.payloads, 1)
	assert.Len(t, bc.events, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WriteFailures.WithLabelValues(metrics.SinkDataset)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues(assistant.OutcomeWriteFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Labels.WithLabelValues("normal")))
}

func TestPublishFailureStillAppends(t *testing.T) {
	sink := &failingSink{}
	pub := &capturePublisher{err: stderrors.New("disk full")}

	a, err := assistant.New(assistant.Options{
		Reader:    &scriptedReader{steps: []readStep{ok(normal)}},
		Dataset:   sink,
		Publisher: pub,
	})
	require.NoError(t, err)

	res := a.Tick(context.Background())
	assert.Error(t, res.Publish)
	assert.Equal(t, 1, sink.appends)
}

func TestMissingFieldsAreReported(t *testing.T) {
	reader := &scriptedReader{steps: []readStep{{
		reading: telemetry.Reading{
			Snapshot: telemetry.Snapshot{SpeedKmh: 50},
			Missing:  []string{telemetry.FieldBatteryLevel},
		},
	}}}

	a, err := assistant.New(assistant.Options{Reader: reader, Dataset: &failingSink{}, Publisher: &capturePublisher{}})
	require.NoError(t, err)

	res := a.Tick(context.Background())
	assert.Equal(t, []string{telemetry.FieldBatteryLevel}, res.Missing)
	// battery defaults to 0 and so is low
	assert.Equal(t, advisor.EnergyTip, res.Payload.Label)
}

func TestRunRecordsEveryTickInOrder(t *testing.T) {
	fs := newFileStack(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := []telemetry.Snapshot{
		{SpeedKmh: 10, BatteryLevelPercent: 90, CabinTempC: 22},
		{SpeedKmh: 20, BatteryLevelPercent: 90, CabinTempC: 22},
		{SpeedKmh: 30, BatteryLevelPercent: 90, CabinTempC: 22},
	}
	steps := make([]readStep, 0, len(snapshots))
	for _, s := range snapshots {
		steps = append(steps, ok(s))
	}

	reader := &scriptedReader{steps: steps, onRead: func(calls int) {
		if calls == len(snapshots) {
			cancel()
		}
	}}

	a, err := assistant.New(assistant.Options{
		Reader:    reader,
		Dataset:   fs.sink,
		Publisher: fs.publisher,
		Interval:  time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, assistant.Stopped, a.State())

	require.NoError(t, a.Run(ctx))
	assert.Equal(t, assistant.Stopped, a.State())

	rows := readRows(t, fs.datasetPath)
	require.Len(t, rows, len(snapshots)+1)
	assert.Equal(t, dataset.Header, rows[0])
	for i, want := range []string{"10", "20", "30"} {
		assert.Equal(t, want, rows[i+1][1])
	}
}

func TestRunStopsDuringWait(t *testing.T) {
	fs := newFileStack(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{steps: []readStep{ok(normal)}, onRead: func(int) { cancel() }}
	a, err := assistant.New(assistant.Options{
		Reader:    reader,
		Dataset:   fs.sink,
		Publisher: fs.publisher,
		Interval:  time.Hour,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	// the tick that observed the cancellation still completed
	assert.Len(t, readRows(t, fs.datasetPath), 2)
}

func TestRunFailsWhenDatasetCannotInitialize(t *testing.T) {
	reader := &scriptedReader{steps: []readStep{ok(normal)}}
	sink := &failingSink{initErr: errors.New().New(dataset.ErrInitFailed)}

	a, err := assistant.New(assistant.Options{Reader: reader, Dataset: sink, Publisher: &capturePublisher{}})
	require.NoError(t, err)

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, assistant.ErrStartFailed))
	assert.True(t, errors.IsKind(err, errors.ErrWrite))
	assert.Zero(t, reader.calls)
	assert.Equal(t, 0, sink.appends)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", assistant.Running.String())
	assert.Equal(t, "stopped", assistant.Stopped.String())
}

func TestTickTracesPayloadAtInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, true)
	logger.SetLogLevel(logger.InfoLevel)
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, true) })

	a, err := assistant.New(assistant.Options{
		Reader:    &scriptedReader{steps: []readStep{ok(fast)}},
		Dataset:   &failingSink{},
		Publisher: &capturePublisher{},
	})
	require.NoError(t, err)

	a.Tick(context.Background())

	out := buf.String()
	assert.Contains(t, out, "Cycle complete")
	assert.Contains(t, out, "safety_tip")
	assert.Contains(t, out, advisor.MsgSpeedHigh)
}
