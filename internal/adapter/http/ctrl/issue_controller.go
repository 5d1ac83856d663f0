package ctrl

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"JiraAlerts/internal/app"
	ent "JiraAlerts/internal/entity"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_requests_total",
	Help: "Number of handled webhook deliveries by response code.",
}, []string{"code"})

type IssueController struct {
	reconciler app.IssueReconciler
}

func NewIssueController(r app.IssueReconciler) *IssueController {
	return &IssueController{
		reconciler: r,
	}
}

// Register wires the controller's routes onto the router.
func (h *IssueController) Register(r *mux.Router) {
	r.HandleFunc("/issues/{project}/{issueType}", h.HandleIssuesWithProject).Methods(http.MethodPost)
	r.HandleFunc("/issues", h.HandleIssues).Methods(http.MethodPost)
	r.HandleFunc("/-/health", h.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

type issuesResponse struct {
	Status string               `json:"status"`
	Issues *ent.ReconcileResult `json:"issues,omitempty"`
}

// HandleIssuesWithProject accepts an Alertmanager webhook for the project and
// issue type named in the path.
func (h *IssueController) HandleIssuesWithProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	msg, err := decodeMessage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, issuesResponse{Status: err.Error()})
		return
	}
	h.fileIssue(w, r, vars["project"], vars["issueType"], msg)
}

// HandleIssues accepts an Alertmanager webhook with the project and issue
// type carried in its common labels.
func (h *IssueController) HandleIssues(w http.ResponseWriter, r *http.Request) {
	msg, err := decodeMessage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, issuesResponse{Status: err.Error()})
		return
	}
	project := msg.CommonLabels["project"]
	issueType := msg.CommonLabels["issue_type"]
	if project == "" || issueType == "" {
		writeJSON(w, http.StatusBadRequest, issuesResponse{
			Status: "required commonLabels not found: issue_type or project",
		})
		return
	}
	h.fileIssue(w, r, project, issueType, msg)
}

func (h *IssueController) fileIssue(w http.ResponseWriter, r *http.Request, project, issueType string, msg ent.WebhookMessage) {
	result, err := h.reconciler.Reconcile(r.Context(), project, issueType, msg)
	if err != nil {
		log.Errorf("Error reconciling alert group: %v", err)
		writeJSON(w, http.StatusInternalServerError, issuesResponse{Status: err.Error(), Issues: &result})
		return
	}
	writeJSON(w, http.StatusOK, issuesResponse{Status: "OK", Issues: &result})
}

func (h *IssueController) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func decodeMessage(r *http.Request) (ent.WebhookMessage, error) {
	var msg ent.WebhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		return msg, err
	}
	if msg.Version != "3" && msg.Version != "4" {
		return msg, errors.New("unknown message version " + msg.Version)
	}
	if msg.Status != ent.StatusFiring && msg.Status != ent.StatusResolved {
		return msg, errors.New("unknown status " + msg.Status)
	}
	if len(msg.GroupLabels) == 0 {
		return msg, errors.New("groupLabels must not be empty")
	}
	return msg, nil
}

func writeJSON(w http.ResponseWriter, code int, body issuesResponse) {
	webhookRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Error encoding response: %v", err)
	}
}
