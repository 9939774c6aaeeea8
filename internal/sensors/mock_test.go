package sensors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMotionLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want MotionSample
		ok   bool
	}{
		{"valid", "0.01,-0.02,0.98", MotionSample{X: 0.01, Y: -0.02, Z: 0.98}, true},
		{"whitespace", " 1.0 , 2.0 , 3.0 ", MotionSample{X: 1, Y: 2, Z: 3}, true},
		{"empty", "", MotionSample{}, false},
		{"comment", "# calibration run", MotionSample{}, false},
		{"too few fields", "1.0,2.0", MotionSample{}, false},
		{"not numeric", "a,b,c", MotionSample{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseMotionLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMockMotionProducerReplaysFixture(t *testing.T) {
	fixture := []byte("0,0,1\n3,4,0\n")
	bus := NewBus[MotionSample]()
	_, ch := bus.Subscribe()

	producer := NewMockMotionProducer(bus, fixture, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go producer.Monitor(ctx)

	var got []MotionSample
	require.Eventually(t, func() bool {
		for {
			select {
			case s := <-ch:
				got = append(got, s)
			default:
				return len(got) >= 3
			}
		}
	}, 2*time.Second, 5*time.Millisecond)

	// The fixture loops, so the third sample wraps to the first line.
	assert.Equal(t, MotionSample{Z: 1}, got[0])
	assert.Equal(t, MotionSample{X: 3, Y: 4}, got[1])
	assert.Equal(t, MotionSample{Z: 1}, got[2])
}

func TestMockGPSProducerReplaysFixture(t *testing.T) {
	sentence := nmeaSentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	fixture := []byte(sentence + "\n")

	bus := NewBus[PositionSample]()
	_, ch := bus.Subscribe()

	producer := NewMockGPSProducer(bus, GPSConfig{}, fixture, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go producer.Monitor(ctx)

	select {
	case got := <-ch:
		assert.InDelta(t, 48.1173, got.Latitude, 1e-4)
	case <-time.After(2 * time.Second):
		t.Fatal("mock GPS producer published nothing")
	}
}
