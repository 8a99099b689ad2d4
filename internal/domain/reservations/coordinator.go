package reservations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Spok95/groom-salon/internal/domain/catalog"
	"github.com/Spok95/groom-salon/internal/domain/servicemix"
	"github.com/Spok95/groom-salon/internal/domain/subscriptions"
	"github.com/Spok95/groom-salon/internal/infra/metrics"
)

// TagLookup — каталог услуг глазами координатора.
type TagLookup interface {
	TagsFor(ctx context.Context, ids []int64) ([]catalog.ServiceTag, error)
}

// Notifier — уведомления админу. Реализация может отсутствовать.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Coordinator держит бронь и леджер абонементов в согласии на всех
// трёх точках жизненного цикла: создание, отмена, завершение.
type Coordinator struct {
	store   Store
	ledger  *subscriptions.Ledger
	catalog TagLookup
	notify  Notifier
	log     *slog.Logger
}

func NewCoordinator(store Store, ledger *subscriptions.Ledger, cat TagLookup, notify Notifier, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, ledger: ledger, catalog: cat, notify: notify, log: log}
}

type CreateInput struct {
	PetID          int64
	ServiceIDs     []int64
	StartsAt       time.Time
	SubscriptionID *int64 // nil — визит без абонемента
}

// Create создаёт бронь. При оплате абонементом сначала резервирует
// единицы, и если сохранить бронь не удалось — снимает резерв до
// возврата ошибки: ёмкость не должна висеть за несуществующей бронью.
func (c *Coordinator) Create(ctx context.Context, actorID int64, in CreateInput) (*Reservation, error) {
	if in.PetID <= 0 || len(in.ServiceIDs) == 0 {
		return nil, subscriptions.ErrInvalidArgument
	}
	tags, err := c.catalog.TagsFor(ctx, in.ServiceIDs)
	if err != nil {
		// Неизвестная/неактивная услуга — ошибка запроса, не сервера.
		return nil, fmt.Errorf("%w: %v", subscriptions.ErrInvalidArgument, err)
	}

	var link *subscriptions.UsageLink
	if in.SubscriptionID != nil {
		mix, err := servicemix.Classify(tags)
		if err != nil {
			return nil, subscriptions.ErrInvalidArgument
		}
		link, err = c.ledger.ReserveUsage(ctx, actorID, *in.SubscriptionID, mix.Weight)
		if err != nil {
			return nil, err
		}
		c.log.Debug("quota reserved for reservation", "sub_id", *in.SubscriptionID, "weight", mix.Weight, "mix", string(mix.Type))
	}

	res := &Reservation{
		PetID:      in.PetID,
		ServiceIDs: in.ServiceIDs,
		StartsAt:   in.StartsAt,
		Status:     StatusScheduled,
	}
	if link != nil {
		res.LinkID = &link.ID
	}

	id, err := c.store.Create(ctx, res)
	if err != nil {
		if link != nil {
			// Компенсация: бронь не сохранилась, резерв снимаем.
			if relErr := c.ledger.ReleaseUsage(ctx, actorID, link.ID); relErr != nil {
				c.log.Error("compensating release failed", "link_id", link.ID, "err", relErr)
				c.send(ctx, fmt.Sprintf("⚠️ Завис резерв по связке %d: снять не удалось (%v)", link.ID, relErr))
			}
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	res.ID = id

	if link != nil {
		if u, err := c.ledger.GetUsage(ctx, link.SubscriptionID); err == nil && u.Remaining == 0 {
			c.send(ctx, fmt.Sprintf("Абонемент %d исчерпан", link.SubscriptionID))
		}
	}
	return res, nil
}

// Cancel отменяет бронь и возвращает удержанные единицы.
// Визит с подтверждённым списанием отменить нельзя.
func (c *Coordinator) Cancel(ctx context.Context, actorID, resID int64) error {
	res, err := c.store.Get(ctx, resID)
	if err != nil {
		return err
	}
	switch res.Status {
	case StatusCompleted:
		if res.LinkID != nil {
			return subscriptions.ErrCannotCancelConfirmed
		}
		return ErrInvalidStatus
	case StatusCancelled:
		return ErrInvalidStatus
	}

	if res.LinkID != nil {
		link, err := c.ledger.GetLink(ctx, *res.LinkID)
		if err != nil {
			return err
		}
		switch link.State {
		case subscriptions.LinkConfirmed:
			return subscriptions.ErrCannotCancelConfirmed
		case subscriptions.LinkReserved:
			if err := c.ledger.ReleaseUsage(ctx, actorID, link.ID); err != nil {
				return err
			}
		case subscriptions.LinkReleased:
			// Резерв уже снят (например, реконсиляцией) — просто отменяем бронь.
		}
	}
	return c.store.SetStatus(ctx, resID, StatusCancelled)
}

// Complete завершает визит и подтверждает списание, если бронь
// была по абонементу. При сбое подтверждения статус не двигаем.
func (c *Coordinator) Complete(ctx context.Context, actorID, resID int64) error {
	res, err := c.store.Get(ctx, resID)
	if err != nil {
		return err
	}
	if res.Status != StatusScheduled {
		return ErrInvalidStatus
	}
	if res.LinkID != nil {
		link, err := c.ledger.GetLink(ctx, *res.LinkID)
		if err != nil {
			return err
		}
		switch link.State {
		case subscriptions.LinkReserved:
			if err := c.ledger.ConfirmUsage(ctx, actorID, link.ID); err != nil {
				return err
			}
		case subscriptions.LinkConfirmed:
			// Прошлая попытка подтвердила списание, но статус брони
			// не записался — дожимаем только статус.
		case subscriptions.LinkReleased:
			return subscriptions.ErrInvalidState
		}
	}
	return c.store.SetStatus(ctx, resID, StatusCompleted)
}

// ReconcileOrphans снимает резервы, за которыми не стоит ни одной
// брони: след упавшего процесса между ReserveUsage и записью брони.
// Запускается по таймеру снаружи.
func (c *Coordinator) ReconcileOrphans(ctx context.Context, actorID int64, olderThan time.Duration) (int, error) {
	links, err := c.ledger.ListReservedOlderThan(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	live, err := c.store.LiveLinkIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	var released int
	for _, l := range links {
		if _, ok := live[l.ID]; ok {
			continue
		}
		if err := c.ledger.ReleaseUsage(ctx, actorID, l.ID); err != nil {
			c.log.Error("orphan release failed", "link_id", l.ID, "err", err)
			continue
		}
		metrics.OrphansReleased.Inc()
		c.log.Warn("orphaned reserve released", "link_id", l.ID, "sub_id", l.SubscriptionID, "weight", l.Weight)
		released++
	}
	return released, nil
}

func (c *Coordinator) send(ctx context.Context, text string) {
	if c.notify != nil {
		c.notify.Notify(ctx, text)
	}
}
