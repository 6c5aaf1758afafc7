// Package queue publishes authentication failure events to RabbitMQ and
// tails them back for auditing.
package queue

import "time"

// AuthFailureEvent describes one rejected request. It carries no
// credential material: no token, no cache key.
type AuthFailureEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // AuthenticationError, AuthorizationError, ConfigurationError or internal
	Status     int       `json:"status"`
	Message    string    `json:"message"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
