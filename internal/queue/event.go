// Package queue defines message payloads exchanged over the message broker
// and the background consumer that delivers them.
package queue

// EmailQueueName is the durable queue carrying outgoing account emails.
const EmailQueueName = "email.send"

// EmailKind selects the template for an outgoing email.
type EmailKind string

const (
	EmailRegistration     EmailKind = "registration"
	EmailPasswordRecovery EmailKind = "password_recovery"
	EmailVerification     EmailKind = "email_verification"
)

// EmailEvent is published for every outgoing account email.  It carries
// everything the consumer needs to render and deliver the message
// without querying the primary database.
type EmailEvent struct {
	Kind      EmailKind `json:"kind"`
	Recipient string    `json:"recipient"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Link      string    `json:"link"`
}
