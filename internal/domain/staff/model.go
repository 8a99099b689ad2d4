package staff

import "time"

type Role string

const (
	RoleGroomer Role = "groomer"
	RoleAdmin   Role = "admin"
)

// Member — сотрудник салона. Его id идёт в actor_id всех операций
// леджера: кто создал бронь, кто подтвердил списание.
type Member struct {
	ID        int64
	Name      string
	Phone     string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
