package timelog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/session"
	"github.com/entrhq/timelog/pkg/submit"
	"github.com/entrhq/timelog/pkg/types"
)

type stubProvider struct {
	token string
}

func (p stubProvider) Token() (string, error) {
	if p.token == "" {
		return "", metadata.ErrNotFound
	}
	return p.token, nil
}

func (p stubProvider) TaskOptions() ([]metadata.RawOption, error) {
	return []metadata.RawOption{
		{Value: "", Content: ""},
		{Value: "5", Content: "Mobile Portal.200501.01"},
		{Value: "9", Content: "Intranet.#20AB12.08"},
	}, nil
}

func (p stubProvider) ActivityOptions() ([]metadata.RawOption, error) {
	return []metadata.RawOption{{Value: "2", Text: "Coding"}, {Value: "3", Text: "Dev--Test"}}, nil
}

func (p stubProvider) ProfileHref() (string, error) {
	return "/account/employees/412", nil
}

// fakeSession records when it was closed relative to submission.
type fakeSession struct {
	provider metadata.Provider
	cookies  []session.Cookie
	html     string
	closed   *[]string
}

func (s *fakeSession) Provider() metadata.Provider { return s.provider }
func (s *fakeSession) Cookies() []session.Cookie   { return s.cookies }
func (s *fakeSession) Snapshot() (string, error)   { return s.html, nil }
func (s *fakeSession) Close() error {
	*s.closed = append(*s.closed, "close")
	return nil
}

type fakeBrowser struct {
	session *fakeSession
	err     error
	calls   int
}

func (b *fakeBrowser) Acquire(context.Context) (Session, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}

// MockSubmitter is a testify mock of Submitter.
type MockSubmitter struct {
	mock.Mock
	events *[]string
}

func (m *MockSubmitter) Submit(ctx context.Context, env *types.SubmissionEnvelope, cookies []session.Cookie, gate config.BasicCredential) (*submit.Response, error) {
	if m.events != nil {
		*m.events = append(*m.events, "submit")
	}
	args := m.Called(ctx, env, cookies, gate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submit.Response), args.Error(1)
}

type fixture struct {
	service   *Service
	browser   *fakeBrowser
	submitter *MockSubmitter
	store     *session.MemoryStore
	events    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: session.NewMemoryStore()}
	cookies := []session.Cookie{{Name: "laravel_session", Value: "abc"}}
	f.browser = &fakeBrowser{session: &fakeSession{
		provider: stubProvider{token: "tok"},
		cookies:  cookies,
		closed:   &f.events,
	}}
	f.submitter = &MockSubmitter{events: &f.events}

	cfg := config.DefaultConfig()
	cfg.Credentials.Gate = config.BasicCredential{Username: "gate", Password: "pw"}
	f.service = NewService(f.browser, f.submitter, session.NewCache(f.store, "default"), cfg)
	f.service.now = func() time.Time { return time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC) }
	f.service.snapshotDir = t.TempDir()
	return f
}

func TestServiceSubmit(t *testing.T) {
	f := newFixture(t)
	f.submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&submit.Response{Status: "success", Message: "ok"}, nil)

	tasks := []types.TaskRequest{
		{ID: "1", Code: "200501.01", Activity: "Coding", Time: 1.5},
		{ID: "2", Code: "nope", Activity: "Coding"},
		{ID: "3", Code: "20AB12.08", Activity: "Dev</Test", Note: "review"},
	}

	results, err := f.service.Submit(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "success", results[0].Status)
	assert.True(t, results[0].Matched)
	assert.Equal(t, types.TaskStatusUnmatched, results[1].Status)
	assert.False(t, results[1].Matched)
	assert.Equal(t, "success", results[2].Status)
	assert.Equal(t, "Dev--Test", results[2].Activity)

	// Input order is kept and the caller's slice is untouched.
	assert.Equal(t, []string{"1", "2", "3"}, []string{results[0].ID, results[1].ID, results[2].ID})
	assert.False(t, tasks[0].Matched)
	assert.Equal(t, "Dev</Test", tasks[2].Activity)

	assert.Equal(t, []string{"close", "submit"}, f.events, "browser must close before transport")

	call := f.submitter.Calls[0]
	env := call.Arguments.Get(1).(*types.SubmissionEnvelope)
	assert.Equal(t, "tok", env.Token)
	assert.Equal(t, "412", env.UserID)
	assert.Equal(t, "2025-04-07", env.StartDate)
	assert.Equal(t, []types.SubmissionRow{
		{TaskID: "5", Activity: "2", Memo: "2", Hours: "1.5"},
		{TaskID: "9", Activity: "3", Memo: "review", Hours: "0.1"},
	}, env.Rows)
	assert.Equal(t, []session.Cookie{{Name: "laravel_session", Value: "abc"}}, call.Arguments.Get(2))
	assert.Equal(t, config.BasicCredential{Username: "gate", Password: "pw"}, call.Arguments.Get(3))
}

func TestServiceSubmitNothingMatched(t *testing.T) {
	f := newFixture(t)

	results, err := f.service.Submit(context.Background(), []types.TaskRequest{{Code: "nope"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.TaskStatusUnmatched, results[0].Status)
	f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceSubmitEmptyBatch(t *testing.T) {
	f := newFixture(t)

	results, err := f.service.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []string{"close"}, f.events)
}

func TestServiceSubmitFailures(t *testing.T) {
	t.Run("acquire failure", func(t *testing.T) {
		f := newFixture(t)
		f.browser.err = errors.New("chromium crashed")

		_, err := f.service.Submit(context.Background(), []types.TaskRequest{{Code: "200501.01"}})
		assert.ErrorContains(t, err, "chromium crashed")
	})

	t.Run("extraction failure still closes browser", func(t *testing.T) {
		f := newFixture(t)
		f.browser.session.provider = stubProvider{}

		_, err := f.service.Submit(context.Background(), []types.TaskRequest{{Code: "200501.01"}})
		var extractionErr *metadata.ExtractionError
		require.True(t, errors.As(err, &extractionErr))
		assert.Equal(t, []string{"close"}, f.events)
	})

	t.Run("extraction failure saves the form page", func(t *testing.T) {
		f := newFixture(t)
		f.browser.session.provider = stubProvider{}
		f.browser.session.html = `<html><body><form></form></body></html>`

		_, err := f.service.Submit(context.Background(), []types.TaskRequest{{Code: "200501.01"}})
		require.Error(t, err)

		matches, err := filepath.Glob(filepath.Join(f.service.snapshotDir, "*-form.html"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		assert.Equal(t, f.browser.session.html, string(data))
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t)
		f.submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &submit.TransportError{StatusCode: 500, Body: "boom"})

		_, err := f.service.Submit(context.Background(), []types.TaskRequest{{Code: "200501.01"}})
		var transportErr *submit.TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, 500, transportErr.StatusCode)
	})
}

func TestServiceClearSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := session.NewCache(f.store, "default")
	require.NoError(t, cache.Save(ctx, []session.Cookie{{Name: "a", Value: "b"}}))

	require.NoError(t, f.service.ClearSession(ctx))
	assert.Nil(t, cache.Load(ctx))
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, config.SessionConfig{Backend: config.SessionBackendFile, Path: t.TempDir() + "/session.json"})
	require.NoError(t, err)
	assert.IsType(t, &session.FileStore{}, store)

	_, err = NewStore(ctx, config.SessionConfig{Backend: "etcd"})
	assert.Error(t, err)
}
