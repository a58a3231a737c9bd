// Package mail provides the outbound mail-provider clients behind a common
// Sender interface: a Mailgun HTTP API sender (with open/click tracking) and
// an SMTP relay sender. Retry policy lives with the delivery worker, not
// here; a Sender performs exactly one dispatch attempt per call.
package mail
