// Package submit builds the multi-row time log form and replays it over
// plain HTTP with the cookies captured by the browser.
package submit

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/types"
)

// Form field names, in the order the site's own form posts them.
const (
	FieldToken         = "_token"
	FieldEmail         = "f_email"
	FieldSlackUsername = "f_slack_username"
	FieldRedirectURL   = "redirect_url"
	FieldUserID        = "user_id"
	FieldStartDate     = "start_date"

	FieldProjectCheck = "project_id_check[]"
	FieldTaskID       = "task_id[]"
	FieldActivity     = "custom_fields_data[activity_1][]"
	FieldMemo         = "memo[]"
	FieldHours        = "wp_task_time[]"
)

// DateLayout formats start_date.
const DateLayout = "2006-01-02"

// NewEnvelope assembles the form from scraped metadata and reconciled rows.
// start_date is now's calendar date in now's location.
func NewEnvelope(meta *metadata.FormMetadata, rows []types.SubmissionRow, now time.Time) *types.SubmissionEnvelope {
	return &types.SubmissionEnvelope{
		Token:     meta.Token,
		UserID:    meta.UserID,
		StartDate: now.Format(DateLayout),
		Rows:      rows,
	}
}

// Encode writes env as multipart/form-data and returns the body along with
// its content type. Field order is significant to the site.
func Encode(env *types.SubmissionEnvelope) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := [][2]string{
		{FieldToken, env.Token},
		{FieldEmail, ""},
		{FieldSlackUsername, ""},
		{FieldRedirectURL, ""},
		{FieldUserID, env.UserID},
		{FieldStartDate, env.StartDate},
	}
	for _, row := range env.Rows {
		fields = append(fields,
			[2]string{FieldProjectCheck, ""},
			[2]string{FieldTaskID, row.TaskID},
			[2]string{FieldActivity, row.Activity},
			[2]string{FieldMemo, row.Memo},
			[2]string{FieldHours, row.Hours},
		)
	}

	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", field[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return body, w.FormDataContentType(), nil
}
