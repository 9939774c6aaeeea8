package db

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Position is the payload of a sample from the positioning receiver.
// Speed is in m/s and nil when the receiver has no velocity solution.
type Position struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
}

// Motion is the payload of a sample from the accelerometer, one value per
// axis in the sensor's native units.
type Motion struct {
	X float64
	Y float64
	Z float64
}

// TelemetryRow is one persisted observation. Exactly one of the position
// field group (latitude/longitude, optionally speed) and the motion field
// group is populated; the other is entirely null.
type TelemetryRow struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Speed     *float64 `json:"speed"`

	AccelerationX *float64 `json:"acceleration_x"`
	AccelerationY *float64 `json:"acceleration_y"`
	AccelerationZ *float64 `json:"acceleration_z"`
}

// InsertTelemetry persists one sample against a session. Exactly one of pos
// and mot must be non-nil; the fields of the other group are stored as null.
// A dangling session id surfaces as ErrForeignKey.
func (db *DB) InsertTelemetry(sessionID int64, timestamp time.Time, pos *Position, mot *Motion) error {
	if (pos == nil) == (mot == nil) {
		return errors.New("telemetry sample must carry exactly one of position or motion")
	}

	var (
		lat, lon, speed *float64
		ax, ay, az      *float64
	)
	if pos != nil {
		lat, lon, speed = &pos.Latitude, &pos.Longitude, pos.Speed
	}
	if mot != nil {
		ax, ay, az = &mot.X, &mot.Y, &mot.Z
	}

	_, err := db.Exec(
		`INSERT INTO telemetry (
			session_id, timestamp, latitude, longitude, speed,
			acceleration_x, acceleration_y, acceleration_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, formatTime(timestamp), lat, lon, speed, ax, ay, az,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	return nil
}

// TelemetryForSession returns all samples for a session in insertion order.
func (db *DB) TelemetryForSession(sessionID int64) ([]TelemetryRow, error) {
	rows, err := db.Query(
		`SELECT id, session_id, timestamp, latitude, longitude, speed,
			acceleration_x, acceleration_y, acceleration_z
		FROM telemetry WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var samples []TelemetryRow
	for rows.Next() {
		var (
			r  TelemetryRow
			ts string
		)
		if err := rows.Scan(
			&r.ID, &r.SessionID, &ts,
			&r.Latitude, &r.Longitude, &r.Speed,
			&r.AccelerationX, &r.AccelerationY, &r.AccelerationZ,
		); err != nil {
			return nil, err
		}
		timestamp, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		r.Timestamp = timestamp
		samples = append(samples, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// SessionSummary aggregates a session's telemetry for reporting.
type SessionSummary struct {
	SessionID       int64    `json:"session_id"`
	TotalSamples    int      `json:"total_samples"`
	PositionSamples int      `json:"position_samples"`
	MotionSamples   int      `json:"motion_samples"`
	AvgSpeed        *float64 `json:"avg_speed"`
	MaxSpeed        *float64 `json:"max_speed"`
	MaxAccelMag     *float64 `json:"max_accel_magnitude"`
}

// SummarizeSession computes aggregate statistics over a session's samples.
// Speed aggregates are in m/s; display conversion is the caller's concern.
func (db *DB) SummarizeSession(sessionID int64) (*SessionSummary, error) {
	if _, err := db.Session(sessionID); err != nil {
		return nil, err
	}

	samples, err := db.TelemetryForSession(sessionID)
	if err != nil {
		return nil, err
	}

	summary := &SessionSummary{SessionID: sessionID, TotalSamples: len(samples)}

	var speeds, accelMags []float64
	for _, s := range samples {
		switch {
		case s.Latitude != nil:
			summary.PositionSamples++
			if s.Speed != nil {
				speeds = append(speeds, *s.Speed)
			}
		case s.AccelerationX != nil:
			summary.MotionSamples++
			ax, ay, az := *s.AccelerationX, *s.AccelerationY, *s.AccelerationZ
			mag := math.Sqrt(ax*ax + ay*ay + az*az)
			accelMags = append(accelMags, mag)
		}
	}

	if len(speeds) > 0 {
		avg := stat.Mean(speeds, nil)
		max := floats.Max(speeds)
		summary.AvgSpeed = &avg
		summary.MaxSpeed = &max
	}
	if len(accelMags) > 0 {
		max := floats.Max(accelMags)
		summary.MaxAccelMag = &max
	}
	return summary, nil
}
