package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/cachewatch/internal/config"
	"github.com/kiranshivaraju/cachewatch/pkg/models"
	"github.com/wneessen/go-mail"
)

// mailSender is the subset of *mail.Client used by SMTPNotifier.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends one plain-text email per batch to a single recipient.
type SMTPNotifier struct {
	sender    mailSender
	from      string
	recipient string
	table     string
	timeout   time.Duration
	now       func() time.Time
}

// NewSMTPNotifier builds an SMTP client from cfg. STARTTLS is mandatory and
// every dial is bounded by cfg.Timeout.
func NewSMTPNotifier(cfg config.EmailConfig, table string) (*SMTPNotifier, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newSMTPNotifier(client, cfg.From, cfg.Recipient, table, cfg.Timeout), nil
}

func newSMTPNotifier(sender mailSender, from, recipient, table string, timeout time.Duration) *SMTPNotifier {
	return &SMTPNotifier{
		sender:    sender,
		from:      from,
		recipient: recipient,
		table:     table,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (n *SMTPNotifier) Name() string { return "smtp" }

func (n *SMTPNotifier) Notify(ctx context.Context, records []models.FailureRecord) (models.Receipt, error) {
	msg, err := BuildMessage(n.table, records)
	if err != nil {
		return models.Receipt{}, err
	}

	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return models.Receipt{}, fmt.Errorf("%w: invalid sender %q: %w", ErrDeliveryFailed, n.from, err)
	}
	if err := m.To(n.recipient); err != nil {
		return models.Receipt{}, fmt.Errorf("%w: invalid recipient %q: %w", ErrDeliveryFailed, n.recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetDate()
	m.SetMessageID()

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	if err := n.sender.DialAndSendWithContext(ctx, m); err != nil {
		return models.Receipt{}, fmt.Errorf("%w: smtp: %w", ErrDeliveryFailed, err)
	}

	var messageID string
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		messageID = ids[0]
	}

	return models.Receipt{
		MessageID: messageID,
		Recipient: n.recipient,
		Count:     len(records),
		SentAt:    n.now().UTC(),
	}, nil
}
