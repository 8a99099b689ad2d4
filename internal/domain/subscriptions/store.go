package subscriptions

import (
	"context"
	"time"
)

// Tx — операции внутри критической секции одного абонемента.
// Пока Mutate не вернулся, никто другой счётчики этого абонемента
// не трогает.
type Tx interface {
	// Subscription — строка абонемента, захваченная на время секции.
	Subscription() *Subscription
	GetLink(ctx context.Context, id int64) (*UsageLink, error)
	InsertLink(ctx context.Context, l *UsageLink) (int64, error)
	UpdateLink(ctx context.Context, l *UsageLink) error
	// SaveSubscription пишет счётчики и статус обратно.
	SaveSubscription(ctx context.Context, s *Subscription) error
}

// Store — долговременное хранилище абонементов и связок.
// Контракт Mutate: атомарный read-modify-write в рамках одного
// subscription id, без глобальных блокировок.
type Store interface {
	CreateSubscription(ctx context.Context, s *Subscription) (int64, error)
	GetSubscription(ctx context.Context, id int64) (*Subscription, error)
	GetLink(ctx context.Context, id int64) (*UsageLink, error)

	// Mutate выполняет fn под эксклюзивной блокировкой абонемента.
	// Ошибка fn откатывает все изменения секции.
	Mutate(ctx context.Context, subID int64, fn func(ctx context.Context, tx Tx) error) error

	// SweepStatuses проставляет expired/exhausted по дате и счётчикам.
	// Отменённые не трогает. Возвращает число обновлённых строк.
	SweepStatuses(ctx context.Context, now time.Time) (int64, error)

	// ListReservedOlderThan — резервы, созданные раньше cutoff
	// (кандидаты в осиротевшие, см. реконсиляцию у координатора).
	ListReservedOlderThan(ctx context.Context, cutoff time.Time) ([]UsageLink, error)
}
