package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vendora-app/vendora/internal/events"
	"github.com/vendora-app/vendora/pkg/logging"
)

// Service turns appointment events into customer notifications. It implements
// events.DeliveryHandler, so it sits behind the outbox deliverer: a failed
// send keeps the event pending and it is retried on the next tick.
type Service struct {
	email  EmailSender
	sms    SMSSender
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, sms SMSSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, sms: sms, logger: logger}
}

// Handle routes one outbox entry to the channels the customer opted into.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeAppointmentBookedV1:
		var evt events.AppointmentBookedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode booked event: %w", err)
		}
		return s.notifyBooked(ctx, evt)
	case events.TypeAppointmentTransitionV1:
		var evt events.AppointmentTransitionV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode transition event: %w", err)
		}
		return s.notifyTransition(ctx, evt)
	}
	// Unknown types are acknowledged so they don't clog the outbox.
	s.logger.Warn("notify: unknown event type", "type", entry.Type, "event_id", entry.ID)
	return nil
}

func (s *Service) notifyBooked(ctx context.Context, evt events.AppointmentBookedV1) error {
	when := evt.StartAt.Format("Monday, January 2 at 3:04 PM")
	subject := fmt.Sprintf("Booking received - %s", evt.Reference)
	body := fmt.Sprintf(`Hi %s,

Your booking %s for %s on %s has been received.

Total: %s

We'll let you know as soon as the vendor confirms.`,
		evt.Recipient.Name, evt.Reference, evt.ServiceName, when, formatAmount(evt.TotalCents, evt.Currency))
	if evt.Status == "confirmed" {
		subject = fmt.Sprintf("Booking confirmed - %s", evt.Reference)
		body = fmt.Sprintf(`Hi %s,

Your booking %s for %s on %s is confirmed.

Total: %s

See you then!`,
			evt.Recipient.Name, evt.Reference, evt.ServiceName, when, formatAmount(evt.TotalCents, evt.Currency))
	}
	smsBody := fmt.Sprintf("Vendora: booking %s for %s on %s received. Total %s.",
		evt.Reference, evt.ServiceName, evt.StartAt.Format("Mon 1/2 3:04PM"), formatAmount(evt.TotalCents, evt.Currency))

	return s.dispatch(ctx, evt.Recipient, subject, body, smsBody)
}

// transitionCopy is the customer-facing wording per transition. Transitions
// without an entry (in_progress, completed) stay internal.
var transitionCopy = map[string]struct {
	subject string
	line    string
}{
	"confirmed":   {"Booking confirmed", "has been confirmed by the vendor"},
	"cancelled":   {"Booking cancelled", "has been cancelled"},
	"no_show":     {"Missed appointment", "was marked as missed"},
	"rescheduled": {"Booking rescheduled", "has been moved to a new time"},
}

func (s *Service) notifyTransition(ctx context.Context, evt events.AppointmentTransitionV1) error {
	copyText, ok := transitionCopy[evt.Transition]
	if !ok {
		s.logger.Debug("notify: transition not customer-facing", "transition", evt.Transition, "reference", evt.Reference)
		return nil
	}

	subject := fmt.Sprintf("%s - %s", copyText.subject, evt.Reference)
	body := fmt.Sprintf("Hi %s,\n\nYour booking %s %s.", evt.Recipient.Name, evt.Reference, copyText.line)
	if evt.Transition == "cancelled" && evt.Reason != "" {
		body += fmt.Sprintf("\nReason: %s", evt.Reason)
	}
	smsBody := fmt.Sprintf("Vendora: booking %s %s.", evt.Reference, copyText.line)

	return s.dispatch(ctx, evt.Recipient, subject, body, smsBody)
}

// dispatch fans out to every opted-in channel and fails if any send failed,
// so the deliverer retries the whole entry.
func (s *Service) dispatch(ctx context.Context, to events.Recipient, subject, body, smsBody string) error {
	var errs []error

	if to.EmailOptIn && to.Email != "" && s.email != nil {
		msg := EmailMessage{
			To:      to.Email,
			ToName:  to.Name,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}

	if to.SMSOptIn && to.Phone != "" && s.sms != nil {
		if err := s.sms.SendSMS(ctx, to.Phone, smsBody); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}

var _ events.DeliveryHandler = (*Service)(nil)
