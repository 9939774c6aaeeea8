package sensors

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/suryavirkapur/DrivinData/internal/monitoring"
	"github.com/suryavirkapur/DrivinData/internal/timeutil"
)

// MockGPSProducer replays NMEA sentences from fixture data, one sentence per
// tick, through the same parsing and filtering path as the real producer.
// Used in dev mode and tests.
type MockGPSProducer struct {
	producer *GPSProducer
	data     []byte
	clock    timeutil.Clock
	interval time.Duration
}

// NewMockGPSProducer creates a fixture-driven position producer. Sentences
// are replayed once per interval; the fixture loops forever.
func NewMockGPSProducer(bus *Bus[PositionSample], config GPSConfig, data []byte, interval time.Duration) *MockGPSProducer {
	producer := NewGPSProducer(bus, config)
	return &MockGPSProducer{
		producer: producer,
		data:     data,
		clock:    producer.config.Clock,
		interval: interval,
	}
}

// Monitor replays the fixture until the context is cancelled.
func (m *MockGPSProducer) Monitor(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	scanner := bufio.NewScanner(bytes.NewReader(m.data))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if !scanner.Scan() {
				scanner = bufio.NewScanner(bytes.NewReader(m.data))
				continue
			}
			m.producer.handleSentence(scanner.Text())
		}
	}
}

// MockMotionProducer replays accelerometer readings from fixture data of
// comma-separated "x,y,z" lines at a fixed sampling interval, looping
// forever, mimicking the platform sensor's fixed cadence.
type MockMotionProducer struct {
	bus      *Bus[MotionSample]
	data     []byte
	clock    timeutil.Clock
	interval time.Duration
}

// NewMockMotionProducer creates a fixture-driven motion producer.
func NewMockMotionProducer(bus *Bus[MotionSample], data []byte, interval time.Duration, clock timeutil.Clock) *MockMotionProducer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &MockMotionProducer{bus: bus, data: data, clock: clock, interval: interval}
}

// Monitor replays the fixture until the context is cancelled.
func (m *MockMotionProducer) Monitor(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	scanner := bufio.NewScanner(bytes.NewReader(m.data))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if !scanner.Scan() {
				scanner = bufio.NewScanner(bytes.NewReader(m.data))
				continue
			}
			if sample, ok := parseMotionLine(scanner.Text()); ok {
				m.bus.Publish(sample)
			}
		}
	}
}

// parseMotionLine parses one "x,y,z" fixture line. Malformed lines are
// skipped like any other bad sensor reading.
func parseMotionLine(line string) (MotionSample, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return MotionSample{}, false
	}

	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		monitoring.Logf("skipping malformed motion fixture line %q", line)
		return MotionSample{}, false
	}

	var values [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			monitoring.Logf("skipping malformed motion fixture line %q: %v", line, err)
			return MotionSample{}, false
		}
		values[i] = v
	}
	return MotionSample{X: values[0], Y: values[1], Z: values[2]}, true
}
