package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suryavirkapur/DrivinData/internal/db"
	"github.com/suryavirkapur/DrivinData/internal/monitoring"
	"github.com/suryavirkapur/DrivinData/internal/sensors"
	"github.com/suryavirkapur/DrivinData/internal/trip"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

type serverFixture struct {
	db        *db.DB
	positions *sensors.Bus[sensors.PositionSample]
	motions   *sensors.Bus[sensors.MotionSample]
	recorder  *trip.Recorder
	server    *Server
	mux       *http.ServeMux
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	fname := strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	_ = os.Remove(fname)
	database, err := db.NewDB(fname)
	require.NoError(t, err)
	t.Cleanup(func() {
		database.Close()
		_ = os.Remove(fname)
		_ = os.Remove(fname + "-shm")
		_ = os.Remove(fname + "-wal")
	})

	f := &serverFixture{
		db:        database,
		positions: sensors.NewBus[sensors.PositionSample](),
		motions:   sensors.NewBus[sensors.MotionSample](),
	}
	hub := NewLiveHub()
	f.recorder = trip.NewRecorder(trip.RecorderConfig{
		Store:     database,
		Positions: f.positions,
		Motions:   f.motions,
		Detector:  trip.NewDetector(hub),
		Observer:  hub,
	})
	t.Cleanup(func() { _ = f.recorder.Stop(context.Background()) })
	f.server = NewServer(f.recorder, database, "kmph", hub)
	f.mux = f.server.ServeMux()
	return f
}

func (f *serverFixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(into))
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/session/start")
	require.Equal(t, http.StatusCreated, w.Code)
	var started map[string]int64
	decodeJSON(t, w, &started)
	assert.Equal(t, int64(1), started["session_id"])

	w = f.do(http.MethodGet, "/api/session")
	require.Equal(t, http.StatusOK, w.Code)
	var current struct {
		Recording bool        `json:"recording"`
		Session   *db.Session `json:"session"`
	}
	decodeJSON(t, w, &current)
	assert.True(t, current.Recording)
	require.NotNil(t, current.Session)
	assert.Equal(t, int64(1), current.Session.ID)
	assert.Nil(t, current.Session.EndTime)

	w = f.do(http.MethodPost, "/api/session/stop")
	require.Equal(t, http.StatusOK, w.Code)
	var stopped map[string]int64
	decodeJSON(t, w, &stopped)
	assert.Equal(t, int64(1), stopped["session_id"])

	w = f.do(http.MethodGet, "/api/session")
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &current)
	assert.False(t, current.Recording)
	assert.Nil(t, current.Session)
}

func TestStartConflictsWhileRecording(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/session/start")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, "/api/session/start")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStopWhileIdleSucceeds(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodPost, "/api/session/stop")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListSessions(t *testing.T) {
	f := setupServer(t)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/session/start").Code)
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/session/stop").Code)
	}

	w := f.do(http.MethodGet, "/api/sessions?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []db.Session
	decodeJSON(t, w, &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(3), sessions[0].ID)
	assert.Equal(t, int64(2), sessions[1].ID)

	w = f.do(http.MethodGet, "/api/sessions?limit=nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTelemetryEndpointConvertsSpeed(t *testing.T) {
	f := setupServer(t)

	id, err := f.db.InsertSession(time.Now().UTC())
	require.NoError(t, err)
	speed := 10.0
	require.NoError(t, f.db.InsertTelemetry(id, time.Now().UTC(),
		&db.Position{Latitude: 48.1, Longitude: 11.5, Speed: &speed}, nil))

	w := f.do(http.MethodGet, "/api/sessions/1/telemetry")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []db.TelemetryRow
	decodeJSON(t, w, &rows)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Speed)
	assert.InDelta(t, 36.0, *rows[0].Speed, 0.001)
}

func TestSummaryEndpoint(t *testing.T) {
	f := setupServer(t)

	id, err := f.db.InsertSession(time.Now().UTC())
	require.NoError(t, err)
	speed := 5.0
	require.NoError(t, f.db.InsertTelemetry(id, time.Now().UTC(),
		&db.Position{Latitude: 48.1, Longitude: 11.5, Speed: &speed}, nil))
	require.NoError(t, f.db.InsertTelemetry(id, time.Now().UTC(),
		nil, &db.Motion{X: 3, Y: 4, Z: 0}))

	w := f.do(http.MethodGet, "/api/sessions/1/summary")
	require.Equal(t, http.StatusOK, w.Code)
	var summary db.SessionSummary
	decodeJSON(t, w, &summary)
	assert.Equal(t, 2, summary.TotalSamples)
	assert.Equal(t, 1, summary.PositionSamples)
	assert.Equal(t, 1, summary.MotionSamples)
	require.NotNil(t, summary.AvgSpeed)
	assert.InDelta(t, 18.0, *summary.AvgSpeed, 0.001)
	require.NotNil(t, summary.MaxAccelMag)
	assert.InDelta(t, 5.0, *summary.MaxAccelMag, 0.001)
}

func TestSessionSubresourceErrors(t *testing.T) {
	f := setupServer(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sessions/99/summary").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/sessions/abc/summary").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sessions/1/bogus").Code)
}

func TestChartEndpoint(t *testing.T) {
	f := setupServer(t)

	id, err := f.db.InsertSession(time.Now().UTC())
	require.NoError(t, err)
	speed := 10.0
	require.NoError(t, f.db.InsertTelemetry(id, time.Now().UTC(),
		&db.Position{Latitude: 48.1, Longitude: 11.5, Speed: &speed}, nil))

	w := f.do(http.MethodGet, "/api/sessions/1/chart")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "echarts")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sessions/99/chart").Code)
}

func TestSpeedEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/api/speed")
	require.Equal(t, http.StatusOK, w.Code)
	var readout struct {
		Speed *float64 `json:"speed"`
		Units string   `json:"units"`
	}
	decodeJSON(t, w, &readout)
	assert.Nil(t, readout.Speed)
	assert.Equal(t, "kmph", readout.Units)

	_, err := f.recorder.Start(context.Background())
	require.NoError(t, err)
	speed := 10.0
	f.positions.Publish(sensors.PositionSample{Latitude: 48.1, Longitude: 11.5, Speed: &speed})
	require.Eventually(t, func() bool {
		return f.recorder.LastPosition() != nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.recorder.Stop(context.Background()))

	w = f.do(http.MethodGet, "/api/speed")
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &readout)
	require.NotNil(t, readout.Speed)
	assert.InDelta(t, 36.0, *readout.Speed, 0.001)
}

func TestConfigEndpoint(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]interface{}
	decodeJSON(t, w, &cfg)
	assert.Equal(t, "kmph", cfg["units"])
	assert.Equal(t, false, cfg["recording"])
}

func TestMethodNotAllowed(t *testing.T) {
	f := setupServer(t)

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/session/start").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/api/sessions").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodDelete, "/api/speed").Code)
}

func TestLiveStreamDeliversSamplesAndIncidents(t *testing.T) {
	f := setupServer(t)

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.server.hub.ClientCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err = f.recorder.Start(context.Background())
	require.NoError(t, err)
	defer f.recorder.Stop(context.Background())

	f.motions.Publish(sensors.MotionSample{X: 3, Y: 4, Z: 0})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kinds := map[string]int{}
	for i := 0; i < 2; i++ {
		var msg struct {
			Kind     string              `json:"kind"`
			Sample   *trip.Sample        `json:"sample"`
			Incident *trip.IncidentEvent `json:"incident"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		kinds[msg.Kind]++
		switch msg.Kind {
		case "sample":
			require.NotNil(t, msg.Sample)
			require.NotNil(t, msg.Sample.Motion)
			assert.Equal(t, 4.0, msg.Sample.Motion.Y)
		case "incident":
			require.NotNil(t, msg.Incident)
			assert.Equal(t, 5.0, msg.Incident.Magnitude)
		}
	}
	assert.Equal(t, 1, kinds["sample"])
	assert.Equal(t, 1, kinds["incident"])
}
