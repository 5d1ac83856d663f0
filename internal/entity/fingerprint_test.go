package ent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFingerprintIsOrderIndependent checks that label insertion order never
// changes the fingerprint.
func TestFingerprintIsOrderIndependent(t *testing.T) {
	first := map[string]string{}
	first["alertname"] = "Foo_Bar"
	first["instance"] = "foo"
	first["dc"] = "par"

	second := map[string]string{}
	second["dc"] = "par"
	second["instance"] = "foo"
	second["alertname"] = "Foo_Bar"

	assert.Equal(t, Fingerprint(first), Fingerprint(second))
}

// TestFingerprintDiffersForDifferentLabels checks that changing any value or
// key yields a different fingerprint.
func TestFingerprintDiffersForDifferentLabels(t *testing.T) {
	base := map[string]string{"alertname": "Foo_Bar", "instance": "foo"}

	differentValue := map[string]string{"alertname": "Foo_Bar", "instance": "bar"}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(differentValue))

	differentKey := map[string]string{"alertname": "Foo_Bar", "host": "foo"}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(differentKey))

	subset := map[string]string{"alertname": "Foo_Bar"}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(subset))
}

func TestFingerprintShape(t *testing.T) {
	fp := Fingerprint(map[string]string{"alertname": "Foo_Bar"})
	assert.Len(t, fp, 10)
	assert.Regexp(t, "^[0-9a-f]+$", fp)

	// Empty label sets still get a stable fingerprint.
	assert.Equal(t, Fingerprint(nil), Fingerprint(map[string]string{}))
}
