package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// TaskStatusUnmatched marks a task that matched no assigned task option and
// therefore produced no submission row.
const TaskStatusUnmatched = "unmatched"

// Hours is a work duration in hours. Zero means "not set" and is replaced by
// the configured default when a submission row is built.
type Hours float64

// UnmarshalJSON accepts a JSON number, a numeric string or null. Anything
// that does not parse to a positive number decodes to zero instead of
// failing the whole request.
func (h *Hours) UnmarshalJSON(data []byte) error {
	*h = 0

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return nil
	}
	*h = Hours(v)
	return nil
}

// looseString decodes any JSON value into a string. Strings keep their
// content, null becomes "" and numbers, booleans, objects or arrays keep
// their compact literal text.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*s = looseString(buf.String())
	}
	return nil
}

// TaskRequest is a caller supplied time entry.
type TaskRequest struct {
	// ID is the caller's own identifier, echoed back as text. A numeric id
	// comes back as its literal digits.
	ID string `json:"id"`

	// Code is the external project code that must equal the code extracted
	// from an assigned task option label.
	Code string `json:"code"`

	// Note becomes the row memo when present.
	Note string `json:"note"`

	// Activity must equal an activity option label after sanitization.
	Activity string `json:"activity"`

	// Time is the duration in hours.
	Time Hours `json:"time"`

	// Matched is set by the reconciler: true when the task produced a row.
	Matched bool `json:"matched"`
}

// UnmarshalJSON never rejects a task for the shape of its fields. A task
// that is not an object decodes to the zero TaskRequest, and an incoming
// "matched" is ignored because the reconciler owns it.
func (t *TaskRequest) UnmarshalJSON(data []byte) error {
	*t = TaskRequest{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}

	var wire struct {
		ID       looseString `json:"id"`
		Code     looseString `json:"code"`
		Note     looseString `json:"note"`
		Activity looseString `json:"activity"`
		Time     Hours       `json:"time"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	t.ID = string(wire.ID)
	t.Code = string(wire.Code)
	t.Note = string(wire.Note)
	t.Activity = string(wire.Activity)
	t.Time = wire.Time
	return nil
}

// TaskResult is a TaskRequest annotated with the outcome of the batch.
type TaskResult struct {
	TaskRequest

	// Status is the endpoint's aggregate status for matched tasks and
	// TaskStatusUnmatched for the rest.
	Status string `json:"status"`
}

// UnmarshalJSON restores a result written by the server, including the
// fields TaskRequest ignores on input.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	if err := r.TaskRequest.UnmarshalJSON(data); err != nil {
		return err
	}

	var outcome struct {
		Matched bool   `json:"matched"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &outcome); err != nil {
		return err
	}
	r.Matched = outcome.Matched
	r.Status = outcome.Status
	return nil
}
