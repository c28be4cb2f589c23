package submit

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/session"
	"github.com/entrhq/timelog/pkg/types"
)

type formField struct {
	name  string
	value string
}

// readFields returns the multipart fields in wire order.
func readFields(t *testing.T, body io.Reader, contentType string) []formField {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(body, params["boundary"])
	var fields []formField
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		value, err := io.ReadAll(part)
		require.NoError(t, err)
		fields = append(fields, formField{name: part.FormName(), value: string(value)})
	}
	return fields
}

func sampleEnvelope() *types.SubmissionEnvelope {
	meta := &metadata.FormMetadata{Token: "tok", UserID: "412"}
	rows := []types.SubmissionRow{
		{TaskID: "5", Activity: "2", Memo: "Coding", Hours: "1.5"},
		{TaskID: "9", Activity: "", Memo: "", Hours: "0.1"},
	}
	return NewEnvelope(meta, rows, time.Date(2025, 4, 7, 23, 30, 0, 0, time.UTC))
}

func TestNewEnvelope(t *testing.T) {
	env := sampleEnvelope()
	assert.Equal(t, "tok", env.Token)
	assert.Equal(t, "412", env.UserID)
	assert.Equal(t, "2025-04-07", env.StartDate)
	assert.Len(t, env.Rows, 2)
}

func TestEncodeFieldOrder(t *testing.T) {
	body, contentType, err := Encode(sampleEnvelope())
	require.NoError(t, err)

	assert.Equal(t, []formField{
		{FieldToken, "tok"},
		{FieldEmail, ""},
		{FieldSlackUsername, ""},
		{FieldRedirectURL, ""},
		{FieldUserID, "412"},
		{FieldStartDate, "2025-04-07"},
		{FieldProjectCheck, ""},
		{FieldTaskID, "5"},
		{FieldActivity, "2"},
		{FieldMemo, "Coding"},
		{FieldHours, "1.5"},
		{FieldProjectCheck, ""},
		{FieldTaskID, "9"},
		{FieldActivity, ""},
		{FieldMemo, ""},
		{FieldHours, "0.1"},
	}, readFields(t, body, contentType))
}

func TestEncodeWithoutRows(t *testing.T) {
	env := NewEnvelope(&metadata.FormMetadata{Token: "tok"}, nil, time.Now())
	body, contentType, err := Encode(env)
	require.NoError(t, err)
	assert.Len(t, readFields(t, body, contentType), 6)
}

func TestClientSubmit(t *testing.T) {
	var (
		gotHeaders http.Header
		gotFields  []formField
		gotMethod  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		gotFields = readFields(t, r.Body, r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success","message":"Timelog saved"}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL+"/account/timelogs/multi_store_simple", time.Second)
	cookies := []session.Cookie{{Name: "XSRF-TOKEN", Value: "abc"}, {Name: "laravel_session", Value: "def"}}
	gate := config.BasicCredential{Username: "gate", Password: "pw"}

	resp, err := client.Submit(context.Background(), sampleEnvelope(), cookies, gate)
	require.NoError(t, err)
	assert.Equal(t, &Response{Status: "success", Message: "Timelog saved"}, resp)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Basic Z2F0ZTpwdw==", gotHeaders.Get("Authorization"))
	assert.Equal(t, "XSRF-TOKEN=abc; laravel_session=def", gotHeaders.Get("Cookie"))
	assert.Equal(t, "XMLHttpRequest", gotHeaders.Get("X-Requested-With"))
	assert.Equal(t, "application/json, text/javascript, */*; q=0.01", gotHeaders.Get("Accept"))
	assert.Equal(t, "no-cache", gotHeaders.Get("Cache-Control"))
	assert.Equal(t, "no-cache", gotHeaders.Get("Pragma"))
	assert.True(t, strings.HasPrefix(gotHeaders.Get("Content-Type"), "multipart/form-data; boundary="))
	assert.Len(t, gotFields, 16)
}

func TestClientSubmitWithoutGate(t *testing.T) {
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		_, _ = io.WriteString(w, `{"status":"success"}`)
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, time.Second)
	_, err := client.Submit(context.Background(), sampleEnvelope(), nil, config.BasicCredential{})
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClientSubmitErrors(t *testing.T) {
	t.Run("non 2xx becomes TransportError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"message":"The given data was invalid."}`)
		}))
		defer server.Close()

		_, err := NewClient(nil, server.URL, time.Second).Submit(context.Background(), sampleEnvelope(), nil, config.BasicCredential{})
		var transportErr *TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, http.StatusUnprocessableEntity, transportErr.StatusCode)
		assert.Equal(t, `{"message":"The given data was invalid."}`, transportErr.Body)
	})

	t.Run("undecodable body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>login</html>`)
		}))
		defer server.Close()

		_, err := NewClient(nil, server.URL, time.Second).Submit(context.Background(), sampleEnvelope(), nil, config.BasicCredential{})
		require.Error(t, err)
		var transportErr *TransportError
		assert.False(t, errors.As(err, &transportErr))
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"success"}`)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient(nil, server.URL, time.Second).Submit(ctx, sampleEnvelope(), nil, config.BasicCredential{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
