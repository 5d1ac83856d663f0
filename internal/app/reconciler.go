package app

import (
	"context"
	"fmt"
	"strings"

	ent "JiraAlerts/internal/entity"
	"JiraAlerts/internal/repo"

	log "github.com/sirupsen/logrus"
)

// IssueReconciler maps one alert group onto at most one tracker mutation.
type IssueReconciler interface {
	Reconcile(ctx context.Context, project, issueType string, msg ent.WebhookMessage) (ent.ReconcileResult, error)
}

// Config carries the per-installation workflow knowledge: which transition
// names may close or reopen an issue, in order of preference, and which
// status names count as resolved. JIRA workflows vary per installation, so
// these are ranked candidate lists, not a state machine.
type Config struct {
	CloseTransitions  []string
	ReopenTransitions []string
	ResolvedStatuses  []string
}

type reconcilerUseCase struct {
	tracker repo.IssueTracker
	cfg     Config
}

func NewIssueReconciler(tracker repo.IssueTracker, cfg Config) IssueReconciler {
	return &reconcilerUseCase{
		tracker: tracker,
		cfg:     cfg,
	}
}

func (u *reconcilerUseCase) Reconcile(ctx context.Context, project, issueType string, msg ent.WebhookMessage) (ent.ReconcileResult, error) {
	var result ent.ReconcileResult

	fingerprint := ent.Fingerprint(msg.GroupLabels)
	logger := log.WithFields(log.Fields{
		"project":     project,
		"issue_type":  issueType,
		"fingerprint": fingerprint,
		"status":      msg.Status,
	})
	logger.Info("Reconciling alert group")

	found, err := u.tracker.SearchByFingerprint(ctx, project, fingerprint)
	if err != nil {
		return result, fmt.Errorf("searching for existing issue: %w", err)
	}
	for _, issue := range found {
		result.Found = append(result.Found, issue.Key)
	}

	summary, err := renderSummary(msg)
	if err != nil {
		return result, fmt.Errorf("rendering summary: %w", err)
	}
	description, err := renderDescription(msg)
	if err != nil {
		return result, fmt.Errorf("rendering description: %w", err)
	}
	labels := issueLabels(msg.CommonLabels, fingerprint)

	if len(found) == 0 {
		if msg.Resolved() {
			// Never filed, nothing to close.
			logger.Info("Resolved group has no matching issue, nothing to do")
			return result, nil
		}

		created, err := u.tracker.CreateIssue(ctx, repo.CreateIssueRequest{
			Project:     project,
			IssueType:   issueType,
			Summary:     summary,
			Description: newDescription(description),
			Labels:      labels,
		})
		if err != nil {
			return result, fmt.Errorf("creating issue: %w", err)
		}
		logger.Infof("Created issue %s", created.Key)
		result.Created = append(result.Created, created.Key)
		return result, nil
	}

	issue := newestIssue(found)
	if len(found) > 1 {
		logger.Warnf("%d issues share the fingerprint label, acting on newest %s", len(found), issue.Key)
	}

	switch {
	case msg.Resolved():
		closed, err := u.transitionFirstValid(ctx, logger, issue.Key, u.cfg.CloseTransitions)
		if err != nil {
			return result, err
		}
		if closed {
			result.Resolved = append(result.Resolved, issue.Key)
		}
	case u.isResolvedStatus(issue.Status):
		// The alert fired again on an issue that was already closed.
		reopened, err := u.transitionFirstValid(ctx, logger, issue.Key, u.cfg.ReopenTransitions)
		if err != nil {
			return result, err
		}
		if reopened {
			result.Reopened = append(result.Reopened, issue.Key)
		}
	}

	// Refresh the generated part of the issue regardless of the transition.
	err = u.tracker.UpdateIssue(ctx, issue.Key, repo.UpdateIssueRequest{
		Summary:     summary,
		Description: mergedDescription(issue.Description, description),
		Labels:      mergeLabels(issue.Labels, labels),
	})
	if err != nil {
		return result, fmt.Errorf("updating issue %s: %w", issue.Key, err)
	}
	logger.Infof("Updated issue %s", issue.Key)
	result.Updated = append(result.Updated, issue.Key)
	return result, nil
}

// transitionFirstValid walks the ranked candidate names and executes the
// first one the tracker currently offers for the issue. No candidate being
// available is a warning, not an error: the issue is simply left as-is.
func (u *reconcilerUseCase) transitionFirstValid(ctx context.Context, logger *log.Entry, key string, candidates []string) (bool, error) {
	available, err := u.tracker.ListTransitions(ctx, key)
	if err != nil {
		return false, fmt.Errorf("listing transitions of %s: %w", key, err)
	}

	for _, name := range candidates {
		transition, ok := findTransition(available, name)
		if !ok {
			continue
		}
		if err := u.tracker.ExecuteTransition(ctx, key, transition.ID); err != nil {
			return false, fmt.Errorf("transition %q of %s: %w", transition.Name, key, err)
		}
		logger.Infof("Executed transition %q on %s", transition.Name, key)
		return true, nil
	}

	logger.Warnf("None of the transitions [%s] are available for %s", strings.Join(candidates, ", "), key)
	return false, nil
}

func findTransition(available []ent.Transition, name string) (ent.Transition, bool) {
	for _, transition := range available {
		if strings.EqualFold(transition.Name, name) {
			return transition, true
		}
	}
	return ent.Transition{}, false
}

// newestIssue is the deterministic tie-break for stale duplicates: the most
// recently created issue wins, older ones are reported but left untouched.
func newestIssue(issues []ent.Issue) ent.Issue {
	newest := issues[0]
	for _, issue := range issues[1:] {
		if issue.Created.After(newest.Created) ||
			(issue.Created.Equal(newest.Created) && issue.Key > newest.Key) {
			newest = issue
		}
	}
	return newest
}

func (u *reconcilerUseCase) isResolvedStatus(status string) bool {
	for _, resolved := range u.cfg.ResolvedStatuses {
		if strings.EqualFold(status, resolved) {
			return true
		}
	}
	return false
}
