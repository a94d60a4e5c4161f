// Package notifier delivers user notifications. Delivery is fire-and-forget
// from the engines' point of view: a failed send is logged, never rolled back
// into the transaction that triggered it.
package notifier

import "context"

// Notification types understood by the delivery sink.
const (
	TypeInvestment = "INVESTMENT"
	TypeSettlement = "SETTLEMENT"
)

// Notifier sends a message to a single user.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, notifType string) error
}

// NoopNotifier is used when no webhook URL is configured.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) Notify(_ context.Context, _, _, _, _ string) error { return nil }
