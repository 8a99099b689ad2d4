package subscriptions

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
	StatusCancelled Status = "cancelled"
)

// Subscription — абонемент питомца: окно действия и запас единиц.
// Счётчики меняются только через Ledger, статус — производный
// (кроме явной отмены).
type Subscription struct {
	ID             int64
	PetID          int64
	StartDate      time.Time
	EndDate        time.Time
	TotalLimit     int // купленные единицы
	ReservedCount  int // единицы, удержанные открытыми бронями
	ConfirmedCount int // окончательно потраченные единицы
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Remaining — сколько единиц ещё можно зарезервировать.
func (s *Subscription) Remaining() int {
	return s.TotalLimit - s.ConfirmedCount - s.ReservedCount
}

// WithinWindow — попадает ли момент в окно действия абонемента.
func (s *Subscription) WithinWindow(now time.Time) bool {
	return !now.Before(s.StartDate) && !now.After(s.EndDate)
}

// DeriveStatus пересчитывает статус по дате и счётчикам.
// Отмена необратима и датой/счётчиками не перебивается.
func (s *Subscription) DeriveStatus(now time.Time) Status {
	switch {
	case s.Status == StatusCancelled:
		return StatusCancelled
	case now.After(s.EndDate):
		return StatusExpired
	case s.Remaining() <= 0:
		return StatusExhausted
	default:
		return StatusActive
	}
}

type LinkState string

const (
	LinkReserved  LinkState = "reserved"
	LinkConfirmed LinkState = "confirmed"
	LinkReleased  LinkState = "released"
)

// UsageLink связывает бронь с абонементом: сколько единиц удержано
// и чем это кончилось. Из reserved переходит ровно один раз —
// либо в confirmed, либо в released.
type UsageLink struct {
	ID             int64
	SubscriptionID int64
	Weight         int
	State          LinkState
	ActorID        int64 // кто выполнил последнюю операцию
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Usage — сводка по абонементу для отчётности. Used учитывает
// только подтверждённые списания.
type Usage struct {
	Used      int
	Remaining int
	StartDate time.Time
	EndDate   time.Time
	Status    Status
}
