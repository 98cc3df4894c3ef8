package model

// SessionState is the lifecycle state of the camera session.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionAcquiring SessionState = "acquiring"
	SessionActive    SessionState = "active"
	SessionStopping  SessionState = "stopping"
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	return string(s)
}

// IsValid checks whether the state is a known value.
func (s SessionState) IsValid() bool {
	switch s {
	case SessionIdle, SessionAcquiring, SessionActive, SessionStopping:
		return true
	}
	return false
}

// TorchIntent is the user's desired flashlight state. It is independent of
// whether a session is bound and survives stop/start cycles.
type TorchIntent struct {
	UserRequested bool `json:"user_requested"`
}

// MeteringPoint is a focus/metering target in normalized sensor
// coordinates, both axes in [0, 1].
type MeteringPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
