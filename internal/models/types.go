package models

// RunStatus represents the current state of a run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusComplete  RunStatus = "complete"
	StatusPartial   RunStatus = "partial"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further stages will run under this status.
func (s RunStatus) Terminal() bool {
	return s != StatusRunning
}

// Scheme is the URL scheme a host answered on
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// Rank orders schemes by preference: https beats http.
func (s Scheme) Rank() int {
	switch s {
	case SchemeHTTPS:
		return 2
	case SchemeHTTP:
		return 1
	default:
		return 0
	}
}
