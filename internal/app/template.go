package app

import (
	"sort"
	"strings"
	"text/template"

	ent "JiraAlerts/internal/entity"
)

// DescriptionBoundary separates human notes from the generated body.
// Anything above the marker survives issue updates.
const DescriptionBoundary = "_-- Alertmanager -- [only edit above]_"

// Issue text is rendered in JIRA wiki markup.
var (
	summaryTmpl = template.Must(template.New("summary").Parse(
		`{{index .GroupLabels "alertname"}}: {{index .CommonAnnotations "summary"}}`))

	descriptionTmpl = template.Must(template.New("description").Funcs(template.FuncMap{
		"pairs":  sortedPairs,
		"alerts": sortedAlerts,
	}).Parse(`h2. Common information

_Common annotations_:
{{- range pairs .CommonAnnotations}}
* *{{.Key}}*: {{.Value}}
{{- end}}

_Common labels_:
{{- range pairs .CommonLabels}}
* {{.Key}}: "{{.Value}}"
{{- end}}

h2. Active alerts (total : {{len .Alerts}})
{{- range alerts .Alerts}}
* {{index .Labels "instance"}} ([documentation|{{index .Annotations "documentation"}}], [source|{{.GeneratorURL}}])
{{- end}}
`))
)

type labelPair struct {
	Key   string
	Value string
}

func sortedPairs(m map[string]string) []labelPair {
	pairs := make([]labelPair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, labelPair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

// sortedAlerts keeps the rendered alert list stable across deliveries so
// issue updates do not churn the description.
func sortedAlerts(alerts []ent.Alert) []ent.Alert {
	sorted := make([]ent.Alert, len(alerts))
	copy(sorted, alerts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].GeneratorURL != sorted[j].GeneratorURL {
			return sorted[i].GeneratorURL < sorted[j].GeneratorURL
		}
		return ent.Fingerprint(sorted[i].Labels) < ent.Fingerprint(sorted[j].Labels)
	})
	return sorted
}

func renderSummary(msg ent.WebhookMessage) (string, error) {
	var sb strings.Builder
	if err := summaryTmpl.Execute(&sb, msg); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderDescription(msg ent.WebhookMessage) (string, error) {
	var sb strings.Builder
	if err := descriptionTmpl.Execute(&sb, msg); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// newDescription is the body of a freshly created issue.
func newDescription(description string) string {
	return DescriptionBoundary + "\n\n" + description
}

// mergedDescription refreshes the generated part of an existing issue while
// keeping whatever a human wrote above the boundary marker.
func mergedDescription(existing, description string) string {
	custom := existing
	if i := strings.Index(existing, DescriptionBoundary); i >= 0 {
		custom = existing[:i]
	}
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return newDescription(description)
	}
	return custom + "\n\n" + DescriptionBoundary + "\n" + description
}

// tagWhitelist lists the common labels worth carrying over as JIRA labels.
var tagWhitelist = map[string]struct{}{
	"severity":  {},
	"dc":        {},
	"env":       {},
	"perimeter": {},
	"team":      {},
	"jiralert":  {},
}

// issueLabels builds the JIRA label set for an alert group: the fixed "alert"
// marker, whitelisted common labels, any comma-separated "tags" label values
// and the fingerprint label used by the search query.
func issueLabels(commonLabels map[string]string, fingerprint string) []string {
	labels := []string{"alert"}
	for _, pair := range sortedPairs(commonLabels) {
		if _, ok := tagWhitelist[pair.Key]; ok {
			labels = append(labels, pair.Key+":"+pair.Value)
		}
		if pair.Key == "tags" {
			for _, tag := range strings.Split(pair.Value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					labels = append(labels, tag)
				}
			}
		}
	}
	return append(labels, "jiralert:"+fingerprint)
}

func mergeLabels(existing, computed []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(computed))
	merged := make([]string, 0, len(existing)+len(computed))
	for _, label := range append(append([]string{}, existing...), computed...) {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		merged = append(merged, label)
	}
	sort.Strings(merged)
	return merged
}
