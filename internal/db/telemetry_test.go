package db

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestInsertTelemetryPositionRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	id, err := db.InsertSession(time.Now())
	if err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	ts := time.Date(2025, 6, 1, 9, 31, 12, 345678000, time.UTC)
	pos := &Position{Latitude: 12.971598, Longitude: 77.594566, Speed: floatPtr(13.89)}
	if err := db.InsertTelemetry(id, ts, pos, nil); err != nil {
		t.Fatalf("InsertTelemetry failed: %v", err)
	}

	rows, err := db.TelemetryForSession(id)
	if err != nil {
		t.Fatalf("TelemetryForSession failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	want := TelemetryRow{
		SessionID: id,
		Timestamp: ts,
		Latitude:  floatPtr(12.971598),
		Longitude: floatPtr(77.594566),
		Speed:     floatPtr(13.89),
	}
	if diff := cmp.Diff(want, rows[0], cmpopts.IgnoreFields(TelemetryRow{}, "ID")); diff != "" {
		t.Errorf("position row mismatch (-want +got):\n%s", diff)
	}
	if rows[0].AccelerationX != nil || rows[0].AccelerationY != nil || rows[0].AccelerationZ != nil {
		t.Error("position row must have a null motion field group")
	}
}

func TestInsertTelemetryMotionRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	id, err := db.InsertSession(time.Now())
	if err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	ts := time.Date(2025, 6, 1, 9, 31, 12, 0, time.UTC)
	mot := &Motion{X: 0.01, Y: -0.02, Z: 0.98}
	if err := db.InsertTelemetry(id, ts, nil, mot); err != nil {
		t.Fatalf("InsertTelemetry failed: %v", err)
	}

	rows, err := db.TelemetryForSession(id)
	if err != nil {
		t.Fatalf("TelemetryForSession failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	r := rows[0]
	if r.Latitude != nil || r.Longitude != nil || r.Speed != nil {
		t.Error("motion row must have a null position field group")
	}
	if r.AccelerationX == nil || *r.AccelerationX != 0.01 ||
		r.AccelerationY == nil || *r.AccelerationY != -0.02 ||
		r.AccelerationZ == nil || *r.AccelerationZ != 0.98 {
		t.Errorf("motion fields = %v/%v/%v, want 0.01/-0.02/0.98",
			r.AccelerationX, r.AccelerationY, r.AccelerationZ)
	}
}

func TestInsertTelemetryPositionWithoutSpeed(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	id, err := db.InsertSession(time.Now())
	if err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	pos := &Position{Latitude: 51.5, Longitude: -0.12}
	if err := db.InsertTelemetry(id, time.Now(), pos, nil); err != nil {
		t.Fatalf("InsertTelemetry failed: %v", err)
	}

	rows, err := db.TelemetryForSession(id)
	if err != nil {
		t.Fatalf("TelemetryForSession failed: %v", err)
	}
	if rows[0].Speed != nil {
		t.Errorf("Speed = %v, want nil when the receiver has no velocity solution", *rows[0].Speed)
	}
	if rows[0].Latitude == nil || rows[0].Longitude == nil {
		t.Error("Latitude/Longitude must still be populated")
	}
}

func TestInsertTelemetryForeignKey(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	err := db.InsertTelemetry(424242, time.Now(), nil, &Motion{X: 1})
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("InsertTelemetry error = %v, want ErrForeignKey", err)
	}
}

func TestInsertTelemetryRejectsAmbiguousPayload(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	id, err := db.InsertSession(time.Now())
	if err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	if err := db.InsertTelemetry(id, time.Now(), nil, nil); err == nil {
		t.Error("expected error for sample with neither field group")
	}

	pos := &Position{Latitude: 1, Longitude: 2}
	mot := &Motion{X: 0, Y: 0, Z: 1}
	if err := db.InsertTelemetry(id, time.Now(), pos, mot); err == nil {
		t.Error("expected error for sample with both field groups")
	}
}

func TestSummarizeSession(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	id, err := db.InsertSession(time.Now())
	if err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	now := time.Now()
	speeds := []float64{10, 20, 30}
	for _, s := range speeds {
		pos := &Position{Latitude: 1, Longitude: 2, Speed: floatPtr(s)}
		if err := db.InsertTelemetry(id, now, pos, nil); err != nil {
			t.Fatalf("InsertTelemetry failed: %v", err)
		}
	}
	// 3-4-0 triple has magnitude 5.
	if err := db.InsertTelemetry(id, now, nil, &Motion{X: 3, Y: 4, Z: 0}); err != nil {
		t.Fatalf("InsertTelemetry failed: %v", err)
	}

	summary, err := db.SummarizeSession(id)
	if err != nil {
		t.Fatalf("SummarizeSession failed: %v", err)
	}

	if summary.TotalSamples != 4 || summary.PositionSamples != 3 || summary.MotionSamples != 1 {
		t.Errorf("sample counts = %d/%d/%d, want 4/3/1",
			summary.TotalSamples, summary.PositionSamples, summary.MotionSamples)
	}
	if summary.AvgSpeed == nil || *summary.AvgSpeed != 20 {
		t.Errorf("AvgSpeed = %v, want 20", summary.AvgSpeed)
	}
	if summary.MaxSpeed == nil || *summary.MaxSpeed != 30 {
		t.Errorf("MaxSpeed = %v, want 30", summary.MaxSpeed)
	}
	if summary.MaxAccelMag == nil || *summary.MaxAccelMag != 5 {
		t.Errorf("MaxAccelMag = %v, want 5", summary.MaxAccelMag)
	}
}

func TestSummarizeSessionNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	_, err := db.SummarizeSession(77)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SummarizeSession error = %v, want ErrSessionNotFound", err)
	}
}
