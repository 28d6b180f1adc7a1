// Package notifier delivers a summary of newly detected failures to a single
// configured destination.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

var (
	// ErrDeliveryFailed means the transport did not confirm acceptance.
	ErrDeliveryFailed = errors.New("notification delivery failed")
	// ErrEmptyBatch is returned, without sending anything, when Notify is
	// called with no records.
	ErrEmptyBatch = errors.New("notification batch is empty")
)

// Notifier is the interface for delivering failure notifications.
type Notifier interface {
	Notify(ctx context.Context, records []models.FailureRecord) (models.Receipt, error)
	// Name returns the transport identifier (e.g., "smtp", "webhook").
	Name() string
}

// Message is the rendered notification shared by all transports.
type Message struct {
	Subject string
	Body    string
}

// BuildMessage renders the subject and plain-text body for records found in table.
func BuildMessage(table string, records []models.FailureRecord) (Message, error) {
	if len(records) == 0 {
		return Message{}, ErrEmptyBatch
	}

	pretty, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return Message{}, fmt.Errorf("render records: %w", err)
	}

	return Message{
		Subject: fmt.Sprintf("Entries found in %s table", table),
		Body:    fmt.Sprintf("Failure(s) found in table dbo.%s;\n %s", table, pretty),
	}, nil
}
