package session

import (
	"fmt"

	"ramplab/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// Kind tags a physiological channel within a session.
type Kind string

const (
	KindPower       Kind = "power"       // watts
	KindHeartRate   Kind = "heartrate"   // bpm
	KindCadence     Kind = "cadence"     // rpm
	KindVentilation Kind = "ventilation" // L/min
	KindBreathRate  Kind = "breathrate"  // breaths/min
	KindSmO2        Kind = "smo2"        // %
	KindTHb         Kind = "thb"         // g/dL
)

// Unit returns the measurement unit for the channel kind.
func (k Kind) Unit() string {
	switch k {
	case KindPower:
		return "W"
	case KindHeartRate:
		return "bpm"
	case KindCadence:
		return "rpm"
	case KindVentilation:
		return "L/min"
	case KindBreathRate:
		return "breaths/min"
	case KindSmO2:
		return "%"
	case KindTHb:
		return "g/dL"
	default:
		return ""
	}
}

// Protocol identifies the test structure.
type Protocol string

const (
	ProtocolRamp Protocol = "ramp" // continuous power increase
	ProtocolStep Protocol = "step" // discrete power plateaus
)

// ParseProtocol converts a string into a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case ProtocolRamp:
		return ProtocolRamp, nil
	case ProtocolStep:
		return ProtocolStep, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownProtocol, s)
	}
}

// Sample is one timestamped measurement within a channel.
// T is seconds since session start.
type Sample struct {
	T     float64 `json:"t"`
	Value float64 `json:"value"`
}

// Channel is an ordered sequence of samples for one measurement kind.
// INVARIANT: sample times strictly increasing. Channels within a session
// share one wall-clock timeline but may have independent rates and gaps.
type Channel struct {
	Kind    Kind     `json:"kind"`
	Samples []Sample `json:"samples"`
}

// StepBoundary declares one power step of a step-protocol test.
type StepBoundary struct {
	StartS  float64 `json:"start_s"`
	EndS    float64 `json:"end_s"`
	TargetW float64 `json:"target_w,omitempty"`
}

// Session is a collection of channel time-series sharing one timeline plus
// protocol metadata. Immutable once validation passes; preprocessing always
// works on copies, never in place.
type Session struct {
	ID         core.SessionID `json:"id"`
	Protocol   Protocol       `json:"protocol"`
	Steps      []StepBoundary `json:"steps,omitempty"` // declared boundaries, step protocol only
	Channels   []Channel      `json:"channels"`
	RecordedAt core.Timestamp `json:"recorded_at"`
}

// ============================================================================
// CHANNEL OPERATIONS
// ============================================================================

// Validate checks the strictly-increasing timestamp invariant.
func (c Channel) Validate() error {
	for i := 1; i < len(c.Samples); i++ {
		if c.Samples[i].T <= c.Samples[i-1].T {
			return fmt.Errorf("%w: %s at index %d (%.3f <= %.3f)",
				core.ErrNonMonotonicTime, c.Kind, i, c.Samples[i].T, c.Samples[i-1].T)
		}
	}
	return nil
}

// Clone returns a deep copy of the channel.
func (c Channel) Clone() Channel {
	out := Channel{Kind: c.Kind}
	if c.Samples != nil {
		out.Samples = make([]Sample, len(c.Samples))
		copy(out.Samples, c.Samples)
	}
	return out
}

// Duration returns the time span covered by the channel in seconds.
func (c Channel) Duration() float64 {
	if len(c.Samples) < 2 {
		return 0
	}
	return c.Samples[len(c.Samples)-1].T - c.Samples[0].T
}

// Values extracts the value column.
func (c Channel) Values() []float64 {
	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s.Value
	}
	return out
}

// Times extracts the time column.
func (c Channel) Times() []float64 {
	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s.T
	}
	return out
}

// ============================================================================
// SESSION OPERATIONS
// ============================================================================

// Channel returns the channel of the given kind, if present.
func (s *Session) Channel(kind Kind) (Channel, bool) {
	for _, c := range s.Channels {
		if c.Kind == kind {
			return c, true
		}
	}
	return Channel{}, false
}

// Has reports whether a channel of the given kind is present and non-empty.
func (s *Session) Has(kind Kind) bool {
	c, ok := s.Channel(kind)
	return ok && len(c.Samples) > 0
}

// Duration returns the session duration in seconds: the widest span covered
// by any channel.
func (s *Session) Duration() float64 {
	max := 0.0
	for _, c := range s.Channels {
		if d := c.Duration(); d > max {
			max = d
		}
	}
	return max
}

// Clone returns a deep copy. Preprocessing mutates copies only, so the
// caller's session is never corrupted.
func (s *Session) Clone() *Session {
	out := &Session{
		ID:         s.ID,
		Protocol:   s.Protocol,
		RecordedAt: s.RecordedAt,
	}
	if s.Steps != nil {
		out.Steps = make([]StepBoundary, len(s.Steps))
		copy(out.Steps, s.Steps)
	}
	out.Channels = make([]Channel, len(s.Channels))
	for i, c := range s.Channels {
		out.Channels[i] = c.Clone()
	}
	return out
}

// Fingerprint computes a deterministic hash over all channel data, used for
// analysis provenance and per-call caching keys.
func (s *Session) Fingerprint() core.SessionFingerprint {
	series := make(map[string][]float64, len(s.Channels)*2)
	for _, c := range s.Channels {
		series[string(c.Kind)+":t"] = c.Times()
		series[string(c.Kind)+":v"] = c.Values()
	}
	return core.ComputeSeriesFingerprint(series)
}

// New constructs a session and validates channel ordering invariants.
func New(id core.SessionID, protocol Protocol, channels []Channel) (*Session, error) {
	s := &Session{
		ID:         id,
		Protocol:   protocol,
		Channels:   channels,
		RecordedAt: core.Now(),
	}
	for _, c := range channels {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}
