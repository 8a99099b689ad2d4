package subscriptions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Spok95/groom-salon/internal/infra/metrics"
)

// Ledger — единственная точка изменения счётчиков абонементов.
// Остальной код читает абонементы, но счётчики не трогает.
type Ledger struct {
	store Store
	log   *slog.Logger
}

func NewLedger(store Store, log *slog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// CreateSubscription заводит новый абонемент (момент покупки).
func (l *Ledger) CreateSubscription(ctx context.Context, actorID, petID int64, limit int, start, end time.Time) (*Subscription, error) {
	if limit <= 0 || petID <= 0 || end.Before(start) {
		return nil, ErrInvalidArgument
	}
	s := &Subscription{
		PetID:      petID,
		StartDate:  start,
		EndDate:    end,
		TotalLimit: limit,
		Status:     StatusActive,
	}
	id, err := l.store.CreateSubscription(ctx, s)
	if err != nil {
		return nil, err
	}
	s.ID = id
	l.log.Info("subscription created", "sub_id", id, "pet_id", petID, "limit", limit, "actor_id", actorID)
	return s, nil
}

// CancelSubscription — явная отмена. Счётчики не трогаем: уже
// подтверждённые списания остаются в отчётности.
func (l *Ledger) CancelSubscription(ctx context.Context, actorID, subID int64) error {
	err := l.store.Mutate(ctx, subID, func(ctx context.Context, tx Tx) error {
		s := tx.Subscription()
		s.Status = StatusCancelled
		return tx.SaveSubscription(ctx, s)
	})
	if err != nil {
		return err
	}
	l.log.Info("subscription cancelled", "sub_id", subID, "actor_id", actorID)
	return nil
}

// CheckAvailability — предварительная проверка без блокировки.
// Ответ «да» ничего не гарантирует: решает только ReserveUsage.
func (l *Ledger) CheckAvailability(ctx context.Context, subID int64, count int) (bool, error) {
	if count <= 0 {
		return false, ErrInvalidArgument
	}
	s, err := l.store.GetSubscription(ctx, subID)
	if err != nil {
		return false, err
	}
	// Окно проверяем отдельно: производный статус не ловит
	// абонемент, у которого срок ещё не начался.
	now := time.Now()
	if !s.WithinWindow(now) || s.DeriveStatus(now) != StatusActive {
		return false, nil
	}
	return s.Remaining() >= count, nil
}

// ReserveUsage атомарно удерживает weight единиц под бронь.
// Единственное место, где ёмкость абонемента выделяется заранее.
func (l *Ledger) ReserveUsage(ctx context.Context, actorID, subID int64, weight int) (*UsageLink, error) {
	if weight <= 0 {
		return nil, l.fail("reserve", ErrInvalidArgument)
	}
	var link *UsageLink
	err := l.store.Mutate(ctx, subID, func(ctx context.Context, tx Tx) error {
		s := tx.Subscription()
		now := time.Now()
		if s.Status == StatusCancelled || !s.WithinWindow(now) {
			return ErrExpired
		}
		if s.Remaining() < weight {
			return ErrInsufficientQuota
		}
		s.ReservedCount += weight
		s.Status = s.DeriveStatus(now)
		if err := tx.SaveSubscription(ctx, s); err != nil {
			return err
		}
		link = &UsageLink{
			SubscriptionID: subID,
			Weight:         weight,
			State:          LinkReserved,
			ActorID:        actorID,
		}
		id, err := tx.InsertLink(ctx, link)
		if err != nil {
			return err
		}
		link.ID = id
		return nil
	})
	if err != nil {
		return nil, l.fail("reserve", err)
	}
	metrics.LedgerOps.WithLabelValues("reserve").Inc()
	l.log.Debug("usage reserved", "sub_id", subID, "link_id", link.ID, "weight", weight, "actor_id", actorID)
	return link, nil
}

// ConfirmUsage переводит резерв в окончательное списание.
// Повторный вызов по той же связке — ошибка, не no-op: так всплывают
// ошибки координатора.
func (l *Ledger) ConfirmUsage(ctx context.Context, actorID, linkID int64) error {
	return l.transition(ctx, "confirm", actorID, linkID, func(s *Subscription, link *UsageLink) {
		s.ReservedCount -= link.Weight
		s.ConfirmedCount += link.Weight
		link.State = LinkConfirmed
	})
}

// ReleaseUsage возвращает удержанные единицы в доступный запас.
func (l *Ledger) ReleaseUsage(ctx context.Context, actorID, linkID int64) error {
	return l.transition(ctx, "release", actorID, linkID, func(s *Subscription, link *UsageLink) {
		s.ReservedCount -= link.Weight
		link.State = LinkReleased
	})
}

func (l *Ledger) transition(ctx context.Context, op string, actorID, linkID int64, apply func(*Subscription, *UsageLink)) error {
	// Сначала без блокировки узнаём, чей это резерв, затем
	// перечитываем связку уже внутри критической секции.
	link, err := l.store.GetLink(ctx, linkID)
	if err != nil {
		return l.fail(op, err)
	}
	err = l.store.Mutate(ctx, link.SubscriptionID, func(ctx context.Context, tx Tx) error {
		cur, err := tx.GetLink(ctx, linkID)
		if err != nil {
			return err
		}
		if cur.State != LinkReserved {
			return ErrInvalidState
		}
		s := tx.Subscription()
		apply(s, cur)
		s.Status = s.DeriveStatus(time.Now())
		if err := tx.SaveSubscription(ctx, s); err != nil {
			return err
		}
		cur.ActorID = actorID
		return tx.UpdateLink(ctx, cur)
	})
	if err != nil {
		return l.fail(op, err)
	}
	metrics.LedgerOps.WithLabelValues(op).Inc()
	l.log.Debug("link transitioned", "op", op, "link_id", linkID, "actor_id", actorID)
	return nil
}

// GetLink — чтение связки (для координатора и отчётов).
func (l *Ledger) GetLink(ctx context.Context, linkID int64) (*UsageLink, error) {
	return l.store.GetLink(ctx, linkID)
}

// GetUsage — сводка по абонементу. Used — только подтверждённые
// списания, незакрытые резервы туда не входят.
func (l *Ledger) GetUsage(ctx context.Context, subID int64) (*Usage, error) {
	s, err := l.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	return &Usage{
		Used:      s.ConfirmedCount,
		Remaining: s.Remaining(),
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Status:    s.DeriveStatus(time.Now()),
	}, nil
}

// AutoUpdateStatus — периодический пересчёт статусов. Влияет только
// на отчётность: корректность списаний от него не зависит.
func (l *Ledger) AutoUpdateStatus(ctx context.Context) (int64, error) {
	n, err := l.store.SweepStatuses(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SweepUpdated.Add(float64(n))
		l.log.Info("status sweep", "updated", n)
	}
	return n, nil
}

// ListReservedOlderThan — кандидаты в осиротевшие резервы.
func (l *Ledger) ListReservedOlderThan(ctx context.Context, cutoff time.Time) ([]UsageLink, error) {
	return l.store.ListReservedOlderThan(ctx, cutoff)
}

func (l *Ledger) fail(op string, err error) error {
	metrics.LedgerFailures.WithLabelValues(op, failureReason(err)).Inc()
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInsufficientQuota):
		return "insufficient_quota"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}
