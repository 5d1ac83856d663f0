package ctrl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"JiraAlerts/internal/app"
	ent "JiraAlerts/internal/entity"
	"JiraAlerts/internal/repo"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, project, issueType string, msg ent.WebhookMessage) (ent.ReconcileResult, error) {
	args := m.Called(ctx, project, issueType, msg)
	return args.Get(0).(ent.ReconcileResult), args.Error(1)
}

type MockIssueTracker struct {
	mock.Mock
}

func (m *MockIssueTracker) SearchByFingerprint(ctx context.Context, project, fingerprint string) ([]ent.Issue, error) {
	args := m.Called(ctx, project, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ent.Issue), args.Error(1)
}

func (m *MockIssueTracker) CreateIssue(ctx context.Context, req repo.CreateIssueRequest) (*ent.Issue, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ent.Issue), args.Error(1)
}

func (m *MockIssueTracker) UpdateIssue(ctx context.Context, key string, req repo.UpdateIssueRequest) error {
	args := m.Called(ctx, key, req)
	return args.Error(0)
}

func (m *MockIssueTracker) ListTransitions(ctx context.Context, key string) ([]ent.Transition, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ent.Transition), args.Error(1)
}

func (m *MockIssueTracker) ExecuteTransition(ctx context.Context, key, transitionID string) error {
	args := m.Called(ctx, key, transitionID)
	return args.Error(0)
}

const webhookPayload = `{
	"version": "4",
	"groupKey": "{}/{}/{notify=\"default\":{alertname=\"Foo_Bar\", instance=\"foo\"}",
	"status": "firing",
	"receiver": "jiralert",
	"groupLabels": {"alertname": "Foo_Bar", "instance": "foo"},
	"commonLabels": {"alertname": "Foo_Bar", "instance": "foo"},
	"commonAnnotations": {"summary": "Alert summary"},
	"externalURL": "https://alertmanager.example.com",
	"alerts": [{
		"status": "firing",
		"labels": {"alertname": "Foo_Bar", "instance": "foo"},
		"annotations": {"summary": "Alert summary"},
		"startsAt": "2017-02-02T16:51:13.507955756Z",
		"endsAt": "0001-01-01T00:00:00Z",
		"generatorURL": "https://example.com/foo"
	}]
}`

func newTestRouter(reconciler app.IssueReconciler) *mux.Router {
	router := mux.NewRouter()
	NewIssueController(reconciler).Register(router)
	return router
}

func postIssues(router *mux.Router, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestHandleIssuesWithProject checks the happy path of the qualified route.
func TestHandleIssuesWithProject(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("Reconcile", mock.Anything, "ABC", "Story", mock.MatchedBy(func(msg ent.WebhookMessage) bool {
		return msg.Status == ent.StatusFiring && msg.GroupLabels["alertname"] == "Foo_Bar"
	})).Return(ent.ReconcileResult{Created: []string{"ABC-1"}}, nil)

	rec := postIssues(newTestRouter(reconciler), "/issues/ABC/Story", webhookPayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
	assert.Contains(t, rec.Body.String(), `"ABC-1"`)
	reconciler.AssertNumberOfCalls(t, "Reconcile", 1)
}

// TestHandleIssuesMalformedBody checks that unparseable bodies stay away from
// the tracker.
func TestHandleIssuesMalformedBody(t *testing.T) {
	reconciler := new(MockReconciler)

	rec := postIssues(newTestRouter(reconciler), "/issues/ABC/Story", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleIssuesRejectsUnknownVersion(t *testing.T) {
	reconciler := new(MockReconciler)
	body := strings.Replace(webhookPayload, `"version": "4"`, `"version": "2"`, 1)

	rec := postIssues(newTestRouter(reconciler), "/issues/ABC/Story", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown message version")
	reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleIssuesRejectsMissingGroupLabels(t *testing.T) {
	reconciler := new(MockReconciler)
	body := strings.Replace(webhookPayload, `"groupLabels": {"alertname": "Foo_Bar", "instance": "foo"}`, `"groupLabels": {}`, 1)

	rec := postIssues(newTestRouter(reconciler), "/issues/ABC/Story", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "groupLabels")
}

// TestHandleIssuesTrackerFailure checks that reconciler errors come back as
// 500 with the error detail preserved.
func TestHandleIssuesTrackerFailure(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("Reconcile", mock.Anything, "ABC", "Story", mock.Anything).
		Return(ent.ReconcileResult{}, errors.New("jira search failed: connection refused"))

	rec := postIssues(newTestRouter(reconciler), "/issues/ABC/Story", webhookPayload)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

// TestHandleIssuesFromCommonLabels checks the unqualified route, which takes
// the project and issue type from the payload's common labels.
func TestHandleIssuesFromCommonLabels(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("Reconcile", mock.Anything, "OPS", "Bug", mock.Anything).
		Return(ent.ReconcileResult{Created: []string{"OPS-12"}}, nil)

	body := strings.Replace(webhookPayload,
		`"commonLabels": {"alertname": "Foo_Bar", "instance": "foo"}`,
		`"commonLabels": {"alertname": "Foo_Bar", "project": "OPS", "issue_type": "Bug"}`, 1)
	rec := postIssues(newTestRouter(reconciler), "/issues", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	reconciler.AssertNumberOfCalls(t, "Reconcile", 1)
}

func TestHandleIssuesMissingProjectLabels(t *testing.T) {
	reconciler := new(MockReconciler)

	rec := postIssues(newTestRouter(reconciler), "/issues", webhookPayload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "issue_type or project")
	reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(new(MockReconciler))
	req := httptest.NewRequest(http.MethodGet, "/-/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

// TestFileIssueEndToEnd runs the real reconciler against a mocked tracker:
// a firing group with no matching issue must produce exactly one Story in
// project ABC carrying the fingerprint label, and a 200 response.
func TestFileIssueEndToEnd(t *testing.T) {
	fp := ent.Fingerprint(map[string]string{"alertname": "Foo_Bar", "instance": "foo"})

	tracker := new(MockIssueTracker)
	tracker.On("SearchByFingerprint", mock.Anything, "ABC", fp).Return([]ent.Issue{}, nil)
	tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(req repo.CreateIssueRequest) bool {
		hasFingerprint := false
		for _, label := range req.Labels {
			if label == "jiralert:"+fp {
				hasFingerprint = true
			}
		}
		return req.Project == "ABC" && req.IssueType == "Story" && hasFingerprint
	})).Return(&ent.Issue{Key: "ABC-1"}, nil)

	reconciler := app.NewIssueReconciler(tracker, app.Config{
		CloseTransitions:  []string{"Close"},
		ReopenTransitions: []string{"Reopen"},
		ResolvedStatuses:  []string{"Closed"},
	})
	rec := postIssues(newTestRouter(reconciler), "/issues/ABC/Story", webhookPayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ABC-1"`)
	tracker.AssertNumberOfCalls(t, "CreateIssue", 1)
	tracker.AssertNotCalled(t, "ExecuteTransition", mock.Anything, mock.Anything, mock.Anything)
}
