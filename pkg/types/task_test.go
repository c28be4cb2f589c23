package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoursUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Hours
	}{
		{name: "number", input: `{"time": 1.5}`, want: 1.5},
		{name: "numeric string", input: `{"time": "2.25"}`, want: 2.25},
		{name: "padded string", input: `{"time": " 3 "}`, want: 3},
		{name: "trailing zeros", input: `{"time": "1.50"}`, want: 1.5},
		{name: "absent", input: `{}`, want: 0},
		{name: "null", input: `{"time": null}`, want: 0},
		{name: "garbage string", input: `{"time": "soon"}`, want: 0},
		{name: "zero", input: `{"time": 0}`, want: 0},
		{name: "negative", input: `{"time": -1}`, want: 0},
		{name: "empty string", input: `{"time": ""}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task TaskRequest
			require.NoError(t, json.Unmarshal([]byte(tt.input), &task))
			assert.Equal(t, tt.want, task.Time)
		})
	}
}

func TestTaskResultJSONFlattensRequest(t *testing.T) {
	result := TaskResult{
		TaskRequest: TaskRequest{ID: "7", Code: "200501.01", Activity: "Coding", Time: 1.5, Matched: true},
		Status:      "success",
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "7", decoded["id"])
	assert.Equal(t, "200501.01", decoded["code"])
	assert.Equal(t, true, decoded["matched"])
	assert.Equal(t, "success", decoded["status"])
	assert.Equal(t, 1.5, decoded["time"])
}

func TestTaskRequestUnmarshalJSONIsLenient(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  TaskRequest
	}{
		{
			name:  "strings",
			input: `{"id":"7","code":"200501.01","note":"review","activity":"Coding","time":"1.5"}`,
			want:  TaskRequest{ID: "7", Code: "200501.01", Note: "review", Activity: "Coding", Time: 1.5},
		},
		{
			name:  "numeric id",
			input: `{"id":1,"code":"200501.01","activity":"Coding","time":1.5}`,
			want:  TaskRequest{ID: "1", Code: "200501.01", Activity: "Coding", Time: 1.5},
		},
		{
			name:  "numbers and booleans keep their text",
			input: `{"id":12.50,"code":200501,"note":true,"activity":3}`,
			want:  TaskRequest{ID: "12.50", Code: "200501", Note: "true", Activity: "3"},
		},
		{
			name:  "object id is compacted",
			input: `{"id":{ "ref": 4 }}`,
			want:  TaskRequest{ID: `{"ref":4}`},
		},
		{
			name:  "nulls",
			input: `{"id":null,"code":null,"note":null,"activity":null,"time":null}`,
			want:  TaskRequest{},
		},
		{
			name:  "incoming matched is ignored",
			input: `{"id":"1","matched":"yes"}`,
			want:  TaskRequest{ID: "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task TaskRequest
			require.NoError(t, json.Unmarshal([]byte(tt.input), &task))
			assert.Equal(t, tt.want, task)
		})
	}
}

func TestTaskRequestsNonObjectElements(t *testing.T) {
	var tasks []TaskRequest
	require.NoError(t, json.Unmarshal([]byte(`[1, "x", null, {"id":2}]`), &tasks))

	require.Len(t, tasks, 4)
	assert.Equal(t, TaskRequest{}, tasks[0])
	assert.Equal(t, TaskRequest{}, tasks[1])
	assert.Equal(t, TaskRequest{}, tasks[2])
	assert.Equal(t, TaskRequest{ID: "2"}, tasks[3])
}

func TestTaskResultUnmarshalJSONKeepsOutcome(t *testing.T) {
	var result TaskResult
	require.NoError(t, json.Unmarshal([]byte(`{"id":"7","code":"200501.01","time":2,"matched":true,"status":"success"}`), &result))

	assert.Equal(t, TaskResult{
		TaskRequest: TaskRequest{ID: "7", Code: "200501.01", Time: 2, Matched: true},
		Status:      "success",
	}, result)
}
