package ent

import (
	"time"
)

// Issue is this service's view of a tracker issue. JIRA owns the real thing;
// nothing here is persisted or cached between requests.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Status      string
	Labels      []string
	Created     time.Time
}

// Transition is a workflow action currently offered by the tracker for an
// issue. Which transitions exist depends on the installation's workflow.
type Transition struct {
	ID   string
	Name string
}

// ReconcileResult lists the issue keys touched while handling one webhook
// delivery, grouped by what happened to them.
type ReconcileResult struct {
	Found    []string `json:"found"`
	Created  []string `json:"created"`
	Updated  []string `json:"updated"`
	Resolved []string `json:"resolved"`
	Reopened []string `json:"reopened"`
}
