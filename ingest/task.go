// Package ingest routes incoming Parquet files to lakehouse tables and writes
// them into the table's storage location.
package ingest

import (
	"strings"

	"github.com/gigapi/gigapi-lakehouse/core"
)

// Method records how a task's table was chosen.
type Method string

const (
	MethodExplicit Method = "explicit"
	MethodMetadata Method = "embedded-metadata"
	MethodPattern  Method = "filename-pattern"
	MethodNone     Method = "none"
)

// Mode is the write mode applied to routed files.
type Mode string

const (
	Append    Mode = "append"
	Overwrite Mode = "overwrite"
)

// ParseMode normalizes a user-supplied mode; empty means append.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Append:
		return Append, nil
	case Overwrite:
		return Overwrite, nil
	default:
		return "", core.ErrValidation("invalid write mode %q (expected append or overwrite)", s)
	}
}

// State is a task's position in the routing state machine.
type State string

const (
	StateRouted     State = "routed"
	StateUnresolved State = "unresolved"
	StateWritten    State = "written"
	StateFailed     State = "failed"
)

// Task is the routing decision and outcome for one input file.
type Task struct {
	Source      string `json:"source"`
	Table       string `json:"table,omitempty"`
	Method      Method `json:"method"`
	Mode        Mode   `json:"mode"`
	State       State  `json:"state"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report aggregates a batch. Tasks are sorted by source.
type Report struct {
	DryRun     bool   `json:"dry_run"`
	Mode       Mode   `json:"mode"`
	Tasks      []Task `json:"tasks"`
	Routed     int    `json:"routed"`
	Unresolved int    `json:"unresolved"`
	Written    int    `json:"written"`
	Failed     int    `json:"failed"`
}

func (r *Report) tally() {
	r.Routed, r.Unresolved, r.Written, r.Failed = 0, 0, 0, 0
	for _, t := range r.Tasks {
		switch t.State {
		case StateRouted:
			r.Routed++
		case StateUnresolved:
			r.Unresolved++
		case StateWritten:
			r.Written++
		case StateFailed:
			r.Failed++
		}
	}
}
