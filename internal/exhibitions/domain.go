// Package exhibitions manages exhibitions and the stock allocated to them.
package exhibitions

import (
	"time"

	"github.com/google/uuid"
)

// Status of an exhibition.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Exhibition is a time-boxed selling event at a location.
type Exhibition struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sellable reports whether sales may be recorded against the exhibition.
func (e Exhibition) Sellable() bool {
	return e.Status != StatusCompleted
}

// CreateInput carries a new exhibition.
type CreateInput struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Location    string    `json:"location" validate:"required,max=200"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	Description string    `json:"description" validate:"max=2000"`
	Status      Status    `json:"status" validate:"omitempty,oneof=upcoming active"`
}

// StatusInput changes the status of an exhibition.
type StatusInput struct {
	Status Status `json:"status" validate:"required,oneof=upcoming active completed"`
}

// ListFilter narrows exhibition listings.
type ListFilter struct {
	Status Status
}
