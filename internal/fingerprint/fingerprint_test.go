package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

func sampleRecord() models.FailureRecord {
	return models.FailureRecord{
		StudyID:  "1042",
		Message:  "cache rebuild failed: timeout",
		EntityID: "77",
		Username: "jdoe",
		Date:     time.Date(2024, 3, 5, 14, 7, 9, 123000000, time.UTC),
	}
}

func TestCanonical(t *testing.T) {
	got := Canonical(sampleRecord())
	expected := "1042-cache rebuild failed: timeout-77-jdoe-2024-03-05T14:07:09.123Z"
	if got != expected {
		t.Errorf("\nexpected: %q\ngot:      %q", expected, got)
	}
}

func TestCanonical_NormalizesTimezone(t *testing.T) {
	r := sampleRecord()
	local := r
	local.Date = r.Date.In(time.FixedZone("EST", -5*3600))

	if Canonical(r) != Canonical(local) {
		t.Errorf("same instant in different zones should render identically:\n  %s\n  %s",
			Canonical(r), Canonical(local))
	}
}

func TestFingerprint_MatchesSHA256OfCanonical(t *testing.T) {
	r := sampleRecord()
	expected := fmt.Sprintf("%x", sha256.Sum256([]byte(Canonical(r))))
	if got := Fingerprint(r); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	r := sampleRecord()
	first := Fingerprint(r)
	for i := 0; i < 100; i++ {
		if got := Fingerprint(r); got != first {
			t.Fatalf("fingerprint changed on call %d: %s != %s", i, got, first)
		}
	}
}

func TestFingerprint_KnownValue(t *testing.T) {
	// Pinned so that a change to the canonical form is caught: persisted state
	// from earlier runs depends on it.
	r := models.FailureRecord{Date: time.Unix(0, 0).UTC()}
	expected := fmt.Sprintf("%x", sha256.Sum256([]byte("----1970-01-01T00:00:00Z")))
	if got := Fingerprint(r); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

func TestFingerprint_SensitiveToEveryField(t *testing.T) {
	base := sampleRecord()
	baseFP := Fingerprint(base)

	tests := []struct {
		name   string
		mutate func(r *models.FailureRecord)
	}{
		{"study id", func(r *models.FailureRecord) { r.StudyID = "1043" }},
		{"message", func(r *models.FailureRecord) { r.Message = "cache rebuild failed: refused" }},
		{"entity id", func(r *models.FailureRecord) { r.EntityID = "78" }},
		{"username", func(r *models.FailureRecord) { r.Username = "asmith" }},
		{"timestamp seconds", func(r *models.FailureRecord) { r.Date = r.Date.Add(time.Second) }},
		{"timestamp sub-second", func(r *models.FailureRecord) { r.Date = r.Date.Add(time.Millisecond) }},
		{"timestamp nanosecond", func(r *models.FailureRecord) { r.Date = r.Date.Add(time.Nanosecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if Fingerprint(r) == baseFP {
				t.Errorf("changing %s should change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprint_IsLowercaseHex(t *testing.T) {
	fp := Fingerprint(sampleRecord())
	if len(fp) != Size {
		t.Errorf("expected %d char hex string, got %d chars: %s", Size, len(fp), fp)
	}
	if !Valid(fp) {
		t.Errorf("fingerprint %q is not lowercase hex", fp)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{Fingerprint(sampleRecord()), true},
		{"", false},
		{"abc", false},
		{"ZZ" + Fingerprint(sampleRecord())[2:], false},
		{Fingerprint(sampleRecord()) + "0", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.input); got != tt.expected {
			t.Errorf("Valid(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
