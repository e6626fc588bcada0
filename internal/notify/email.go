package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/cardinity-gateway/internal/common"
	"github.com/noah-isme/cardinity-gateway/internal/events"
)

// EmailNotifier sends transactional emails for selected topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	return n.Mail.Send(to, subjectFor(event.Topic), bodyFor(event.Topic, payload, event.OccurredAt))
}

func extractRecipient(payload map[string]any) string {
	for _, key := range []string{"email", "recipient", "customerEmail"} {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicOrderPaid:
		return "Payment received"
	case events.TopicOrderCanceled:
		return "Order canceled"
	case events.TopicPaymentFailed:
		return "Payment failed"
	default:
		return "Order update"
	}
}

func bodyFor(topic string, payload map[string]any, occurredAt time.Time) string {
	ref := ""
	if v, ok := payload["externalOrderId"].(string); ok {
		ref = v
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	switch topic {
	case events.TopicOrderPaid:
		fmt.Fprintf(&b, "<p>We received your payment for order <strong>%s</strong>.</p>", ref)
	case events.TopicOrderCanceled:
		fmt.Fprintf(&b, "<p>Your order <strong>%s</strong> was canceled. The payment did not complete.</p>", ref)
	case events.TopicPaymentFailed:
		fmt.Fprintf(&b, "<p>The payment attempt for order <strong>%s</strong> failed. No money was taken.</p>", ref)
	default:
		fmt.Fprintf(&b, "<p>There is an update on your order <strong>%s</strong>.</p>", ref)
	}
	if !occurredAt.IsZero() {
		fmt.Fprintf(&b, "<p><small>%s</small></p>", occurredAt.UTC().Format(time.RFC1123))
	}
	b.WriteString("</body></html>")
	return b.String()
}
