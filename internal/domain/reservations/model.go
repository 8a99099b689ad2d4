package reservations

import (
	"errors"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var (
	ErrNotFound      = errors.New("reservations: not found")
	ErrInvalidStatus = errors.New("reservations: invalid status transition")
)

// Reservation — запись на визит. LinkID заполняется, когда визит
// оплачивается абонементом, и пишется в ту же строку, что и сама
// бронь: по нему координатор находит резерв при отмене/завершении.
type Reservation struct {
	ID         int64
	PetID      int64
	ServiceIDs []int64
	StartsAt   time.Time
	Status     Status
	LinkID     *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
