package alert

import "context"

// Sender is the delivery contract. Implementations fail independently
// per channel; the dispatcher decides what to do with the error (log
// and count, never surface to the triggering request).
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, toPhone, body string) error
}
