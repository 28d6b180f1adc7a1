package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/cachewatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeSender struct {
	sent        []*mail.Msg
	err         error
	hadDeadline bool
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func newTestSMTP(sender mailSender) *SMTPNotifier {
	n := newSMTPNotifier(sender, "EncaptureMD <no-reply@encapturemd.com>", "oncall@example.com",
		"study_cache_failure", 5*time.Second)
	n.now = func() time.Time { return time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC) }
	return n
}

func TestSMTPNotifier_SendsOneMessage(t *testing.T) {
	sender := &fakeSender{}
	n := newTestSMTP(sender)

	receipt, err := n.Notify(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.True(t, sender.hadDeadline)

	m := sender.sent[0]
	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"oncall@example.com"}, rcpts)
	assert.Equal(t, []string{"Entries found in study_cache_failure table"}, m.GetGenHeader(mail.HeaderSubject))

	parts := m.GetParts()
	require.Len(t, parts, 1)
	content, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Contains(t, string(content), "Failure(s) found in table dbo.study_cache_failure;")
	assert.Contains(t, string(content), `"medical_study_id": "1042"`)
	assert.Contains(t, string(content), `"medical_study_id": "1043"`)

	assert.Equal(t, "oncall@example.com", receipt.Recipient)
	assert.Equal(t, 2, receipt.Count)
	assert.NotEmpty(t, receipt.MessageID)
	assert.Equal(t, time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC), receipt.SentAt)
}

func TestSMTPNotifier_EmptyBatchSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	n := newTestSMTP(sender)

	_, err := n.Notify(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Empty(t, sender.sent)
}

func TestSMTPNotifier_TransportFailure(t *testing.T) {
	sendErr := errors.New("535 5.7.8 Username and Password not accepted")
	n := newTestSMTP(&fakeSender{err: sendErr})

	_, err := n.Notify(context.Background(), sampleBatch())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, sendErr)
}

func TestSMTPNotifier_InvalidRecipient(t *testing.T) {
	sender := &fakeSender{}
	n := newSMTPNotifier(sender, "no-reply@encapturemd.com", "not an address", "study_cache_failure", time.Second)

	_, err := n.Notify(context.Background(), sampleBatch())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Empty(t, sender.sent)
}

func TestSMTPNotifier_Name(t *testing.T) {
	assert.Equal(t, "smtp", newTestSMTP(&fakeSender{}).Name())
}

func TestNewSMTPNotifier_FromConfig(t *testing.T) {
	n, err := NewSMTPNotifier(config.EmailConfig{
		Host:      "smtp.example.com",
		Port:      587,
		User:      "user",
		Password:  "pass",
		From:      "no-reply@example.com",
		Recipient: "oncall@example.com",
		Timeout:   10 * time.Second,
	}, "study_cache_failure")
	require.NoError(t, err)
	assert.Equal(t, "oncall@example.com", n.recipient)
}
