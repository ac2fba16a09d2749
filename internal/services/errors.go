package services

import "errors"

// Типизированные ошибки доменного слоя. Хендлеры сопоставляют их
// с HTTP статусами, сами сообщения для клиента формируются в хендлерах.
var (
	ErrNotFound          = errors.New("запись не найдена")
	ErrMissingInput      = errors.New("отсутствуют обязательные поля")
	ErrMaxOrdersExceeded = errors.New("превышено максимальное количество заказов в доставке")
	ErrInvalidState      = errors.New("недопустимое состояние доставки")
	ErrInvalidTransition = errors.New("недопустимый переход состояния доставки")
	ErrRecordFinalized   = errors.New("завершенная доставка не может быть изменена")
)
