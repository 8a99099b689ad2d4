package subscriptions

import "errors"

var (
	ErrNotFound              = errors.New("subscriptions: not found")
	ErrExpired               = errors.New("subscriptions: outside validity window")
	ErrInsufficientQuota     = errors.New("subscriptions: insufficient quota")
	ErrInvalidState          = errors.New("subscriptions: invalid link state")
	ErrCannotCancelConfirmed = errors.New("subscriptions: cannot cancel confirmed usage")
	ErrInvalidArgument       = errors.New("subscriptions: invalid argument")
)

// Reason переводит ошибку леджера в текст для клиента/админа.
// Внутренние ошибки наружу не показываем.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Абонемент не найден"
	case errors.Is(err, ErrExpired):
		return "Срок действия абонемента истёк"
	case errors.Is(err, ErrInsufficientQuota):
		return "На абонементе недостаточно единиц"
	case errors.Is(err, ErrInvalidState):
		return "Списание по этой брони уже завершено"
	case errors.Is(err, ErrCannotCancelConfirmed):
		return "Нельзя отменить визит с подтверждённым списанием"
	case errors.Is(err, ErrInvalidArgument):
		return "Некорректный запрос"
	default:
		return "Внутренняя ошибка, попробуйте позже"
	}
}
