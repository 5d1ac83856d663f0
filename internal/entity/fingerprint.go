package ent

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"sort"
)

// fingerprintLen keeps the label short enough for JIRA label searches.
const fingerprintLen = 10

// Fingerprint derives the stable identifier used to correlate an alert group
// with its tracker issue. It hashes the group labels in sorted key order, so
// insertion order never changes the result.
func Fingerprint(groupLabels map[string]string) string {
	keys := make([]string, 0, len(groupLabels))
	for k := range groupLabels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha1.New()
	for _, k := range keys {
		io.WriteString(h, k)
		io.WriteString(h, "=")
		io.WriteString(h, groupLabels[k])
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen]
}
