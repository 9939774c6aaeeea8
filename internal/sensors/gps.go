package sensors

import (
	"bufio"
	"context"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/suryavirkapur/DrivinData/internal/timeutil"
	"github.com/suryavirkapur/DrivinData/internal/units"
)

// GPSConfig configures the NMEA position producer.
type GPSConfig struct {
	// Port is the serial device the receiver is attached to.
	Port string
	// Baud is the serial baud rate (typically 9600 for GPS modules).
	Baud int
	// MinInterval is the minimum time between published fixes.
	MinInterval time.Duration
	// MinDisplacement is the minimum movement in meters between published
	// fixes. A fix is published only when both thresholds are satisfied.
	MinDisplacement float64
	// Clock is optional; defaults to the real clock.
	Clock timeutil.Clock
}

// GPSProducer reads NMEA sentences from a serial port and publishes
// PositionSamples onto its bus. Delivery is best-effort: unparseable or
// invalid sentences are skipped, never retried.
type GPSProducer struct {
	bus    *Bus[PositionSample]
	config GPSConfig
	filter fixFilter
}

// NewGPSProducer creates a position producer publishing onto bus.
func NewGPSProducer(bus *Bus[PositionSample], config GPSConfig) *GPSProducer {
	if config.Clock == nil {
		config.Clock = timeutil.RealClock{}
	}
	return &GPSProducer{
		bus:    bus,
		config: config,
		filter: fixFilter{
			minInterval:     config.MinInterval,
			minDisplacement: config.MinDisplacement,
			clock:           config.Clock,
		},
	}
}

// Monitor opens the serial port and reads sentences until the context is
// cancelled or the port fails.
func (g *GPSProducer) Monitor(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: g.config.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(g.config.Port, mode)
	if err != nil {
		return err
	}

	// Closing the port unblocks the pending Read when the context ends.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		g.handleSentence(scanner.Text())
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}

// handleSentence parses one NMEA line and publishes a sample when it is a
// valid RMC fix that passes the interval and displacement filters.
func (g *GPSProducer) handleSentence(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// Noisy receivers emit partial sentences; skip them.
		return
	}
	if sentence.DataType() != nmea.TypeRMC {
		return
	}

	rmc := sentence.(nmea.RMC)
	if rmc.Validity != "A" {
		return
	}

	if !g.filter.allow(rmc.Latitude, rmc.Longitude) {
		return
	}

	speed := units.KnotsToMPS(rmc.Speed)
	g.bus.Publish(PositionSample{
		Latitude:  rmc.Latitude,
		Longitude: rmc.Longitude,
		Speed:     &speed,
	})
}

// fixFilter suppresses fixes until both the minimum-interval and
// minimum-displacement thresholds are satisfied. The first fix always
// passes.
type fixFilter struct {
	minInterval     time.Duration
	minDisplacement float64
	clock           timeutil.Clock

	haveFix  bool
	lastTime time.Time
	lastLat  float64
	lastLon  float64
}

func (f *fixFilter) allow(lat, lon float64) bool {
	now := f.clock.Now()
	if f.haveFix {
		if now.Sub(f.lastTime) < f.minInterval {
			return false
		}
		if haversineMeters(f.lastLat, f.lastLon, lat, lon) < f.minDisplacement {
			return false
		}
	}
	f.haveFix = true
	f.lastTime = now
	f.lastLat = lat
	f.lastLon = lon
	return true
}

// earthRadiusMeters is the mean Earth radius used for displacement checks.
const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
