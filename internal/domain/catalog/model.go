package catalog

import "time"

type ServiceTag string

const (
	TagBath  ServiceTag = "bath"  // мытьё/купание
	TagGroom ServiceTag = "groom" // стрижка/груминг
)

// Service — услуга салона из прайса. Тег определяет, как услуга
// списывает абонемент (см. servicemix).
type Service struct {
	ID        int64
	Name      string
	Tag       ServiceTag
	Price     float64
	Active    bool
	CreatedAt time.Time
}
