package models

import (
	"time"

	"github.com/google/uuid"
)

// RunMeta contains metadata about one pipeline execution
type RunMeta struct {
	ID             string            `json:"id"`
	Target         string            `json:"target"`
	Dir            string            `json:"dir"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Status         RunStatus         `json:"status"`
	StagesRun      []string          `json:"stages_run,omitempty"`
	StageErrors    map[string]string `json:"stage_errors,omitempty"`
	SubdomainCount int               `json:"subdomain_count"`
	AliveCount     int               `json:"alive_count"`
}

// NewRun creates run metadata for target with a fresh ID
func NewRun(target Target, startedAt time.Time) *RunMeta {
	return &RunMeta{
		ID:          uuid.New().String(),
		Target:      target.String(),
		StartedAt:   startedAt,
		Status:      StatusRunning,
		StagesRun:   []string{},
		StageErrors: make(map[string]string),
	}
}
