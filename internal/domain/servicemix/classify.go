package servicemix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/groom-salon/internal/domain/catalog"
)

var ErrEmptyServices = errors.New("servicemix: empty service set")

type VisitType string

const (
	VisitBath  VisitType = "bath"
	VisitGroom VisitType = "groom"
	VisitMixed VisitType = "mixed"
)

// Стоимость визита в единицах абонемента:
// одна стрижка «стоит» столько же, сколько четыре мытья.
const (
	bathWeight  = 1
	groomWeight = 4
)

// Result — итог классификации набора услуг одного визита.
type Result struct {
	Type   VisitType
	Weight int    // сколько единиц абонемента спишет визит
	Reason string // расшифровка для клиента/админа
}

// Classify считает вес визита по тегам услуг. Чистая функция:
// никакого I/O, теги услуг добывает вызывающий (см. catalog.TagsFor).
func Classify(tags []catalog.ServiceTag) (Result, error) {
	if len(tags) == 0 {
		return Result{}, ErrEmptyServices
	}

	var bathCount, groomCount int
	for _, t := range tags {
		switch t {
		case catalog.TagBath:
			bathCount++
		case catalog.TagGroom:
			groomCount++
		default:
			return Result{}, fmt.Errorf("servicemix: unknown tag %q", t)
		}
	}

	res := Result{Weight: groomCount*groomWeight + bathCount*bathWeight}
	switch {
	case bathCount == 0:
		res.Type = VisitGroom
	case groomCount == 0:
		res.Type = VisitBath
	default:
		res.Type = VisitMixed
	}

	var parts []string
	if bathCount > 0 {
		parts = append(parts, fmt.Sprintf("%d× мытьё (%d ед.)", bathCount, bathCount*bathWeight))
	}
	if groomCount > 0 {
		parts = append(parts, fmt.Sprintf("%d× стрижка (%d ед.)", groomCount, groomCount*groomWeight))
	}
	res.Reason = fmt.Sprintf("%s = %d ед.", strings.Join(parts, " + "), res.Weight)

	return res, nil
}
