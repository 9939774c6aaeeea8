// Package sensors provides the two asynchronous measurement producers and
// the publish/subscribe buses that deliver their samples. The position and
// motion streams are independently clocked and are never merged; each sample
// carries only its own field group.
package sensors

// PositionSample is one fix from the satellite positioning receiver.
// Speed is ground speed in m/s; nil when the receiver has no velocity
// solution for the fix.
type PositionSample struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     *float64 `json:"speed,omitempty"`
}

// MotionSample is one accelerometer reading, one value per axis in the
// sensor's native units (g for phone-class accelerometers).
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
