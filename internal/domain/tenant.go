package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one API consumer of the evaluation service. The raw API key is
// returned once at registration; only its hash is stored.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
