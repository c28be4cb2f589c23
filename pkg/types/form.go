package types

// AssignedTaskOption is one option of the task selection control.
type AssignedTaskOption struct {
	// OptionID is the option's value attribute, submitted as task_id[].
	OptionID string `json:"id"`

	// Code is the project code extracted from the option label. Only
	// meaningful when HasCode is true.
	Code string `json:"code,omitempty"`

	// HasCode reports whether the label contained a project code. Options
	// without one are kept but never match a task.
	HasCode bool `json:"has_code"`
}

// ActivityOption is one option of the activity selection control.
type ActivityOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SubmissionRow is one entry of the multi-row time log form.
type SubmissionRow struct {
	TaskID   string `json:"task_id"`
	Activity string `json:"activity_1"`
	Memo     string `json:"memo"`
	Hours    string `json:"wp_task_time"`
}

// SubmissionEnvelope is the complete multi-row form.
type SubmissionEnvelope struct {
	Token     string          `json:"_token"`
	UserID    string          `json:"user_id"`
	StartDate string          `json:"start_date"`
	Rows      []SubmissionRow `json:"rows"`
}
