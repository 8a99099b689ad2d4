package pets

import "time"

// Pet — карточка питомца с контактом владельца. Чистый CRUD,
// никакой логики: вся механика абонементов живёт в subscriptions.
type Pet struct {
	ID         int64
	Name       string
	Breed      string
	OwnerName  string
	OwnerPhone string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
