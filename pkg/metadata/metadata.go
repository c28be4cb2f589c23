// Package metadata turns the rendered time log form into the identifiers
// a submission needs: the anti-forgery token, the assigned task options,
// the activity options and the operator id.
//
// The page itself is reached through a Provider so the extraction rules
// here do not depend on any automation engine.
package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/types"
)

var debugLog = logging.MustNew("metadata")

// Selectors of the target form. They must match the site exactly.
const (
	TokenSelector    = `input[name="_token"]`
	TaskSelector     = `select[name="task_id[]"] option`
	ActivitySelector = `select[name="custom_fields_data[activity_1][]"] option`
	ProfileSelector  = `.profile-box a[href*="/account/employees/"]`
)

// ErrNotFound is returned by a Provider when the element is absent.
var ErrNotFound = errors.New("metadata: element not found")

// RawOption is an <option> as rendered.
type RawOption struct {
	Value   string
	Content string // data-content attribute
	Text    string // text content
}

// Provider reads raw values from a loaded page.
type Provider interface {
	// Token returns the value of the hidden anti-forgery input.
	Token() (string, error)

	// TaskOptions returns the options of the task selection control.
	TaskOptions() ([]RawOption, error)

	// ActivityOptions returns the options of the activity selection control.
	ActivityOptions() ([]RawOption, error)

	// ProfileHref returns the href of the operator profile link.
	ProfileHref() (string, error)
}

// FormMetadata is everything scraped from the form.
type FormMetadata struct {
	Token         string                     `json:"token"`
	AssignedTasks []types.AssignedTaskOption `json:"assigned_tasks"`
	Activities    []types.ActivityOption     `json:"activities"`
	UserID        string                     `json:"user_id"`
}

// ExtractionError reports a required element missing from the page,
// which means the page did not render as expected.
type ExtractionError struct {
	Element string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Element, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s missing", e.Element)
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var (
	// A dot, then an optional '#', 6+ alphanumerics, a dot and 2+ digits.
	// Matches "#20xxxx.08" as well as "202504.005".
	projectCodePattern = regexp.MustCompile(`\.(#?[a-zA-Z0-9]{6,}\.\d{2,})`)

	employeePattern = regexp.MustCompile(`/employees/(\d+)`)
)

// ProjectCode extracts the project code from a task option label. Leading
// '#' characters are stripped. ok is false when the label has no code.
func ProjectCode(label string) (code string, ok bool) {
	m := projectCodePattern.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	return strings.TrimLeft(m[1], "#"), true
}

// UserID parses the numeric operator id from a profile href.
func UserID(href string) (string, bool) {
	m := employeePattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Extract reads the form through p. A missing token is fatal; a missing
// profile link only leaves UserID empty.
func Extract(p Provider) (*FormMetadata, error) {
	token, err := p.Token()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ExtractionError{Element: "_token"}
		}
		return nil, &ExtractionError{Element: "_token", Err: err}
	}
	if token == "" {
		return nil, &ExtractionError{Element: "_token"}
	}

	meta := &FormMetadata{Token: token}

	taskOptions, err := p.TaskOptions()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, &ExtractionError{Element: "task_id[]", Err: err}
	}
	meta.AssignedTasks = make([]types.AssignedTaskOption, 0, len(taskOptions))
	for _, opt := range taskOptions {
		code, ok := ProjectCode(opt.Content)
		meta.AssignedTasks = append(meta.AssignedTasks, types.AssignedTaskOption{
			OptionID: opt.Value,
			Code:     code,
			HasCode:  ok,
		})
	}

	activityOptions, err := p.ActivityOptions()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, &ExtractionError{Element: "custom_fields_data[activity_1][]", Err: err}
	}
	meta.Activities = make([]types.ActivityOption, 0, len(activityOptions))
	for _, opt := range activityOptions {
		meta.Activities = append(meta.Activities, types.ActivityOption{
			Value: opt.Value,
			Label: strings.TrimSpace(opt.Text),
		})
	}

	href, err := p.ProfileHref()
	switch {
	case err == nil:
		meta.UserID, _ = UserID(href)
	case errors.Is(err, ErrNotFound):
		debugLog.Warnf("operator profile link not found; submitting without user_id")
	default:
		return nil, &ExtractionError{Element: "profile link", Err: err}
	}

	debugLog.Debugf("extracted %d task options, %d activities, user %q",
		len(meta.AssignedTasks), len(meta.Activities), meta.UserID)
	return meta, nil
}
