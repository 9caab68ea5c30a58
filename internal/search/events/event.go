// Package events publishes what users pick in a search session.
package events

import (
	"time"

	"github.com/google/uuid"

	"idsearch/internal/identity/models"
)

// Type names an event.
type Type string

const TypeIdentitySelected Type = "identity_selected"

// Event is transport-agnostic so sinks can fan out.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	SessionID   string    `json:"session_id,omitempty"`
	IdentityKey string    `json:"identity_key"`
	Name        string    `json:"name"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// IdentitySelected builds the event for a user choosing identity.
func IdentitySelected(sessionID string, identity models.Identity, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        TypeIdentitySelected,
		SessionID:   sessionID,
		IdentityKey: identity.IdentityKey,
		Name:        identity.Name,
		OccurredAt:  at.UTC(),
	}
}
