// Package trip owns the recording session lifecycle: the Idle/Recording
// state machine, the single-writer ingestion loop that persists sensor
// samples against the active session, and incident detection over the
// motion stream.
package trip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/suryavirkapur/DrivinData/internal/db"
	"github.com/suryavirkapur/DrivinData/internal/monitoring"
	"github.com/suryavirkapur/DrivinData/internal/sensors"
	"github.com/suryavirkapur/DrivinData/internal/timeutil"
)

// ErrAlreadyRecording is returned by Start while a session is active.
// A second start is rejected rather than silently replacing the current
// session, which would orphan it with a null end_time.
var ErrAlreadyRecording = errors.New("recording already in progress")

// Store is the persistence surface the recorder needs. *db.DB implements it.
type Store interface {
	InsertSession(startTime time.Time) (int64, error)
	CloseSession(id int64, endTime time.Time) error
	InsertTelemetry(sessionID int64, timestamp time.Time, pos *db.Position, mot *db.Motion) error
}

// Sample is one ingested observation as broadcast to live observers.
// Exactly one of Position and Motion is set.
type Sample struct {
	Time     time.Time               `json:"time"`
	Position *sensors.PositionSample `json:"position,omitempty"`
	Motion   *sensors.MotionSample   `json:"motion,omitempty"`
}

// Observer receives every persisted sample, e.g. for a live UI stream.
type Observer interface {
	ObserveSample(Sample)
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Store persists sessions and telemetry.
	Store Store
	// Positions and Motions are the two producer buses.
	Positions *sensors.Bus[sensors.PositionSample]
	Motions   *sensors.Bus[sensors.MotionSample]
	// Detector classifies motion samples; nil disables detection.
	Detector *Detector
	// Observer receives persisted samples; nil disables observation.
	Observer Observer
	// Clock is optional; defaults to the real clock.
	Clock timeutil.Clock
}

// Recorder owns the recording state machine and the current-session
// reference. The reference is written only by Start and Stop; the ingest
// goroutine holds its own copy for the lifetime of a session, so no sample
// can ever be attributed to a session other than the one that was active
// when its ingest loop started.
type Recorder struct {
	store     Store
	positions *sensors.Bus[sensors.PositionSample]
	motions   *sensors.Bus[sensors.MotionSample]
	detector  *Detector
	observer  Observer
	clock     timeutil.Clock

	mu        sync.Mutex
	recording bool
	sessionID int64
	posSubID  string
	motSubID  string
	stopCh    chan struct{}
	doneCh    chan struct{}

	// stopping is set at the very start of Stop. The ingest loop checks it
	// before every insert, which makes the drop policy for in-flight
	// samples deterministic: nothing is persisted once Stop has begun.
	stopping atomic.Bool

	lastMu  sync.Mutex
	lastPos *sensors.PositionSample
}

// NewRecorder creates an idle Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Recorder{
		store:     cfg.Store,
		positions: cfg.Positions,
		motions:   cfg.Motions,
		detector:  cfg.Detector,
		observer:  cfg.Observer,
		clock:     cfg.Clock,
	}
}

// Start transitions Idle -> Recording: it creates a session row, stores the
// returned id, and only then subscribes to the producer buses and launches
// the ingest loop. Producer callbacks therefore cannot race ahead of id
// assignment. Returns ErrAlreadyRecording if a session is active.
func (r *Recorder) Start(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return 0, ErrAlreadyRecording
	}

	id, err := r.store.InsertSession(r.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}

	// The session id is durable; now it is safe to let samples flow.
	r.sessionID = id
	r.recording = true
	r.stopping.Store(false)

	var posCh <-chan sensors.PositionSample
	var motCh <-chan sensors.MotionSample
	r.posSubID, posCh = r.positions.Subscribe()
	r.motSubID, motCh = r.motions.Subscribe()

	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.ingest(id, posCh, motCh, r.stopCh, r.doneCh)

	monitoring.Logf("session %d started", id)
	return id, nil
}

// Stop transitions Recording -> Idle: it unsubscribes the producers first so
// no new events arrive, waits for the ingest loop to exit, and only then
// finalizes the session row. Samples still queued when Stop begins are
// dropped. Stop while Idle is a no-op.
func (r *Recorder) Stop(ctx context.Context) error {
	r.stopping.Store(true)

	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}

	r.positions.Unsubscribe(r.posSubID)
	r.motions.Unsubscribe(r.motSubID)
	close(r.stopCh)

	id := r.sessionID
	doneCh := r.doneCh
	r.recording = false
	r.sessionID = 0
	r.mu.Unlock()

	// The loop owns all telemetry writes; once it exits, no write can land
	// after the session row is finalized.
	<-doneCh

	if err := r.store.CloseSession(id, r.clock.Now().UTC()); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			monitoring.Logf("closing session %d: already gone, treating as no-op", id)
			return nil
		}
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}

	monitoring.Logf("session %d stopped", id)
	return nil
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// CurrentSessionID returns the active session id, or 0 when idle.
func (r *Recorder) CurrentSessionID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return 0
	}
	return r.sessionID
}

// LastPosition returns the most recently persisted position sample, for the
// UI speed readout. Nil until the first fix of the first session.
func (r *Recorder) LastPosition() *sensors.PositionSample {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()
	return r.lastPos
}

// ingest is the single writer: it drains both producer subscriptions and
// serializes every telemetry insert for one session.
func (r *Recorder) ingest(id int64, posCh <-chan sensors.PositionSample, motCh <-chan sensors.MotionSample, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case p := <-posCh:
			r.recordPosition(id, p)
		case m := <-motCh:
			r.recordMotion(id, m)
		}
	}
}

// recordPosition stamps and persists one position sample.
func (r *Recorder) recordPosition(id int64, p sensors.PositionSample) {
	if r.stopping.Load() {
		return
	}
	ts := r.clock.Now().UTC()

	pos := &db.Position{Latitude: p.Latitude, Longitude: p.Longitude, Speed: p.Speed}
	if err := r.store.InsertTelemetry(id, ts, pos, nil); err != nil {
		// A stale session reference is non-fatal: drop the sample and keep
		// the pipeline running.
		monitoring.Logf("discarding position sample for session %d: %v", id, err)
		return
	}

	r.lastMu.Lock()
	r.lastPos = &p
	r.lastMu.Unlock()

	if r.observer != nil {
		r.observer.ObserveSample(Sample{Time: ts, Position: &p})
	}
}

// recordMotion stamps, classifies, and persists one motion sample.
func (r *Recorder) recordMotion(id int64, m sensors.MotionSample) {
	if r.stopping.Load() {
		return
	}
	ts := r.clock.Now().UTC()

	if r.detector != nil {
		r.detector.Inspect(ts, m)
	}

	mot := &db.Motion{X: m.X, Y: m.Y, Z: m.Z}
	if err := r.store.InsertTelemetry(id, ts, nil, mot); err != nil {
		monitoring.Logf("discarding motion sample for session %d: %v", id, err)
		return
	}

	if r.observer != nil {
		r.observer.ObserveSample(Sample{Time: ts, Motion: &m})
	}
}
