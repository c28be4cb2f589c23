// Package reconcile matches caller tasks against the options scraped from
// the time log form.
//
// Matching is literal. A task matches the FIRST assigned option, in the
// order the form lists them, whose extracted project code equals the task
// code; duplicates resolve by list order, never by any quality metric.
// Activities match the first option whose trimmed label equals the
// sanitized task activity.
package reconcile

import (
	"strconv"
	"strings"

	"github.com/entrhq/timelog/pkg/types"
)

// DefaultHours replaces a missing or non positive task time.
const DefaultHours = 0.1

// Options tunes row construction.
type Options struct {
	// DefaultHours is used when a task has no time; zero means DefaultHours.
	DefaultHours float64
}

var activitySanitizer = strings.NewReplacer("<", "-", "/", "-")

// SanitizeActivity replaces '<' and '/' with '-'.
func SanitizeActivity(activity string) string {
	return activitySanitizer.Replace(activity)
}

// Reconcile returns one row per task that matches an assigned option, in
// task order. It sets Matched on every task and writes the sanitized
// activity back to matched tasks; nothing else is modified.
func Reconcile(tasks []types.TaskRequest, assigned []types.AssignedTaskOption, activities []types.ActivityOption, opts Options) []types.SubmissionRow {
	defaultHours := opts.DefaultHours
	if defaultHours <= 0 {
		defaultHours = DefaultHours
	}

	rows := make([]types.SubmissionRow, 0, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		task.Matched = false

		option, ok := findAssigned(assigned, task.Code)
		if !ok {
			continue
		}

		task.Activity = SanitizeActivity(task.Activity)
		activityValue := findActivity(activities, task.Activity)

		memo := task.Note
		if memo == "" {
			memo = activityValue
		}

		hours := float64(task.Time)
		if hours <= 0 {
			hours = defaultHours
		}

		rows = append(rows, types.SubmissionRow{
			TaskID:   option.OptionID,
			Activity: activityValue,
			Memo:     memo,
			Hours:    strconv.FormatFloat(hours, 'f', -1, 64),
		})
		task.Matched = true
	}
	return rows
}

func findAssigned(assigned []types.AssignedTaskOption, code string) (types.AssignedTaskOption, bool) {
	for _, option := range assigned {
		if option.HasCode && option.Code == code {
			return option, true
		}
	}
	return types.AssignedTaskOption{}, false
}

// findActivity returns the value of the first option labelled label, or ""
// when none is. A missing activity is not an error.
func findActivity(activities []types.ActivityOption, label string) string {
	for _, activity := range activities {
		if activity.Label == label {
			return activity.Value
		}
	}
	return ""
}
