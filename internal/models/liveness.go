package models

// LivenessResult is the outcome of probing one host over HTTP(S)
type LivenessResult struct {
	Host       string `json:"host"`
	Alive      bool   `json:"alive"`
	Scheme     Scheme `json:"scheme,omitempty"`
	URL        string `json:"url,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SourceOutcome records what a single enumeration source contributed
type SourceOutcome struct {
	Name       string `json:"name"`
	Candidates int    `json:"candidates"`
	Error      string `json:"error,omitempty"`
}

// Succeeded reports whether the source returned at least one candidate
func (o SourceOutcome) Succeeded() bool {
	return o.Error == "" && o.Candidates > 0
}
