package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	ent "JiraAlerts/internal/entity"

	jira "github.com/andygrunwald/go-jira"
)

// Order matters for query performance: the label clauses rely on the
// jiralert fingerprint label that must not be edited by hand.
const searchQuery = `project = %q and labels = "alert" and labels = "jiralert:%s" order by created desc`

const maxSearchResults = 50

// IssueTracker is the capability set the reconciler needs from the tracker.
// Tests substitute a mock for it so no network is involved.
type IssueTracker interface {
	SearchByFingerprint(ctx context.Context, project, fingerprint string) ([]ent.Issue, error)
	CreateIssue(ctx context.Context, req CreateIssueRequest) (*ent.Issue, error)
	UpdateIssue(ctx context.Context, key string, req UpdateIssueRequest) error
	ListTransitions(ctx context.Context, key string) ([]ent.Transition, error)
	ExecuteTransition(ctx context.Context, key, transitionID string) error
}

type CreateIssueRequest struct {
	Project     string
	IssueType   string
	Summary     string
	Description string
	Labels      []string
}

type UpdateIssueRequest struct {
	Summary     string
	Description string
	Labels      []string
}

// JiraTracker talks to a real JIRA server through go-jira with basic auth.
type JiraTracker struct {
	client *jira.Client
}

func NewJiraTracker(server, username, password string, timeout time.Duration) (*JiraTracker, error) {
	if server == "" {
		return nil, errors.New("jira server URL is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("jira username and password are required")
	}

	tp := jira.BasicAuthTransport{
		Username: username,
		Password: password,
	}
	httpClient := tp.Client()
	httpClient.Timeout = timeout

	client, err := jira.NewClient(httpClient, server)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}
	return &JiraTracker{client: client}, nil
}

func (t *JiraTracker) SearchByFingerprint(ctx context.Context, project, fingerprint string) ([]ent.Issue, error) {
	timer := newRequestTimer(actionSearch)
	jql := fmt.Sprintf(searchQuery, project, fingerprint)
	found, _, err := t.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxSearchResults,
		Fields:     []string{"summary", "description", "labels", "status", "created"},
	})
	timer.done(err)
	if err != nil {
		return nil, fmt.Errorf("jira search failed: %w", err)
	}

	issues := make([]ent.Issue, 0, len(found))
	for _, issue := range found {
		issues = append(issues, toEntity(issue))
	}
	return issues, nil
}

func (t *JiraTracker) CreateIssue(ctx context.Context, req CreateIssueRequest) (*ent.Issue, error) {
	timer := newRequestTimer(actionCreate)
	created, _, err := t.client.Issue.CreateWithContext(ctx, &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: req.Project},
			Type:        jira.IssueType{Name: req.IssueType},
			Summary:     req.Summary,
			Description: req.Description,
			Labels:      req.Labels,
		},
	})
	timer.done(err)
	if err != nil {
		return nil, fmt.Errorf("jira create failed: %w", err)
	}

	issue := toEntity(*created)
	return &issue, nil
}

func (t *JiraTracker) UpdateIssue(ctx context.Context, key string, req UpdateIssueRequest) error {
	timer := newRequestTimer(actionUpdate)
	_, _, err := t.client.Issue.UpdateWithContext(ctx, &jira.Issue{
		Key: key,
		Fields: &jira.IssueFields{
			Summary:     req.Summary,
			Description: req.Description,
			Labels:      req.Labels,
		},
	})
	timer.done(err)
	if err != nil {
		return fmt.Errorf("jira update of %s failed: %w", key, err)
	}
	return nil
}

func (t *JiraTracker) ListTransitions(ctx context.Context, key string) ([]ent.Transition, error) {
	timer := newRequestTimer(actionTransitions)
	found, _, err := t.client.Issue.GetTransitionsWithContext(ctx, key)
	timer.done(err)
	if err != nil {
		return nil, fmt.Errorf("jira transitions of %s failed: %w", key, err)
	}

	transitions := make([]ent.Transition, 0, len(found))
	for _, tr := range found {
		transitions = append(transitions, ent.Transition{ID: tr.ID, Name: tr.Name})
	}
	return transitions, nil
}

func (t *JiraTracker) ExecuteTransition(ctx context.Context, key, transitionID string) error {
	timer := newRequestTimer(actionTransition)
	_, err := t.client.Issue.DoTransitionWithContext(ctx, key, transitionID)
	timer.done(err)
	if err != nil {
		return fmt.Errorf("jira transition %s of %s failed: %w", transitionID, key, err)
	}
	return nil
}

func toEntity(issue jira.Issue) ent.Issue {
	converted := ent.Issue{Key: issue.Key}
	if issue.Fields == nil {
		return converted
	}
	converted.Summary = issue.Fields.Summary
	converted.Description = issue.Fields.Description
	converted.Labels = issue.Fields.Labels
	converted.Created = time.Time(issue.Fields.Created)
	if issue.Fields.Status != nil {
		converted.Status = issue.Fields.Status.Name
	}
	return converted
}
