// Package notify dispatches customer notifications through an external
// messaging gateway (SMS, WhatsApp, email) and schedules confirmation calls.
//
// Dispatch is best-effort: a false result means the gateway declined or was
// unreachable, and the caller decides how to degrade. The HTTP sender retries
// transient gateway failures and trips a per-channel circuit breaker when the
// gateway stays down.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Notification channels understood by the gateway.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// Sender delivers a message to a recipient over a channel.
// The boolean reports whether the gateway accepted the message; err is
// reserved for transport-level failures.
type Sender interface {
	Send(ctx context.Context, channel, recipient, subject, body string) (bool, error)
}

// CallScheduler queues an outbound confirmation call to a customer.
type CallScheduler interface {
	ScheduleCall(ctx context.Context, phone string) (bool, error)
}

// VerificationMessage renders the subject and body of a verification code
// message for an order.
func VerificationMessage(orderID, code string, expiry time.Duration) (subject, body string) {
	subject = fmt.Sprintf("Vérification de la commande %s", orderID)
	body = fmt.Sprintf(
		"RetailBot: votre code de vérification pour la commande %s est %s. Il expire dans %d minutes.",
		orderID, code, int(expiry.Minutes()),
	)
	return subject, body
}

// CallNotice renders the body of the message announcing a confirmation call.
func CallNotice(orderID string) string {
	return fmt.Sprintf(
		"RetailBot: un agent vous appellera sous peu pour confirmer la commande %s.",
		orderID,
	)
}
