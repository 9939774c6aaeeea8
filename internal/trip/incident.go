package trip

import (
	"math"
	"time"

	"github.com/suryavirkapur/DrivinData/internal/monitoring"
	"github.com/suryavirkapur/DrivinData/internal/sensors"
)

// Classification is the result of inspecting one motion sample.
type Classification int

const (
	// Normal is a motion sample within the incident threshold.
	Normal Classification = iota
	// Incident is a motion sample whose magnitude exceeds the threshold.
	Incident
)

func (c Classification) String() string {
	if c == Incident {
		return "incident"
	}
	return "normal"
}

// DefaultIncidentThreshold is the acceleration magnitude above which a
// sample is classified as an incident. Phone-class accelerometers report in
// g; ~1 g is rest, 2.5 g corresponds to hard braking or a collision.
const DefaultIncidentThreshold = 2.5

// IncidentEvent carries what a collaborator needs to surface an incident:
// when it happened and how hard.
type IncidentEvent struct {
	Time      time.Time `json:"time"`
	Magnitude float64   `json:"magnitude"`
}

// Notifier receives detected incidents. How the incident is surfaced (UI
// alert, incident log) is the implementation's concern.
type Notifier interface {
	Notify(IncidentEvent)
}

// LogNotifier surfaces incidents on the diagnostic log.
type LogNotifier struct{}

func (LogNotifier) Notify(e IncidentEvent) {
	monitoring.Logf("incident detected at %s: acceleration magnitude %.2f", e.Time.Format(time.RFC3339), e.Magnitude)
}

// Notifiers fans one incident out to several collaborators.
type Notifiers []Notifier

func (ns Notifiers) Notify(e IncidentEvent) {
	for _, n := range ns {
		n.Notify(e)
	}
}

// Magnitude returns the Euclidean norm of a motion sample's three axes.
func Magnitude(m sensors.MotionSample) float64 {
	return math.Sqrt(m.X*m.X + m.Y*m.Y + m.Z*m.Z)
}

// Detector classifies motion samples by magnitude threshold. It keeps no
// state between samples: no hysteresis, no debounce, each sample stands
// alone.
type Detector struct {
	Threshold float64
	Notifier  Notifier
}

// NewDetector creates a Detector with the default threshold and notifier.
func NewDetector(notifier Notifier) *Detector {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Detector{Threshold: DefaultIncidentThreshold, Notifier: notifier}
}

// Classify is a pure function from a motion sample to a classification.
func (d *Detector) Classify(m sensors.MotionSample) Classification {
	if Magnitude(m) > d.Threshold {
		return Incident
	}
	return Normal
}

// Inspect classifies a sample and notifies the collaborator when it is an
// incident. The sample's writer-assigned timestamp is carried through.
func (d *Detector) Inspect(ts time.Time, m sensors.MotionSample) Classification {
	c := d.Classify(m)
	if c == Incident && d.Notifier != nil {
		d.Notifier.Notify(IncidentEvent{Time: ts, Magnitude: Magnitude(m)})
	}
	return c
}
