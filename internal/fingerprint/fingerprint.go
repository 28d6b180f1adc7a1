// Package fingerprint derives stable identities for failure records and
// models the set of identities that have already been notified.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

const delimiter = "-"

var reFingerprint = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Fingerprint computes the SHA-256 fingerprint of a failure record.
// Every field participates, including the full-precision timestamp, so two
// rows that differ only in sub-second time get distinct fingerprints.
func Fingerprint(r models.FailureRecord) string {
	hash := sha256.Sum256([]byte(Canonical(r)))
	return fmt.Sprintf("%x", hash)
}

// Canonical renders the hash input: studyId-message-entityId-username-timestamp.
func Canonical(r models.FailureRecord) string {
	return strings.Join([]string{
		r.StudyID,
		r.Message,
		r.EntityID,
		r.Username,
		FormatTimestamp(r.Date),
	}, delimiter)
}

// FormatTimestamp renders t in UTC with nanosecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Valid reports whether s looks like a fingerprint produced by Fingerprint.
func Valid(s string) bool {
	return reFingerprint.MatchString(s)
}
