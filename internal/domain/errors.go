package domain

import "errors"

// Ошибки источника данных. Все, кроме ErrSessionUnusable, относятся к одному
// запросу и не прерывают пакетную обработку.
var (
	// ErrAccessBlocked — реестр заблокировал доступ к странице.
	ErrAccessBlocked = errors.New("доступ к реестру заблокирован")
	// ErrElementTimeout — элемент формы не найден или не появился вовремя.
	ErrElementTimeout = errors.New("элемент формы не найден")
	// ErrCaptchaUnresolved — не удалось пройти проверку CAPTCHA.
	ErrCaptchaUnresolved = errors.New("не удалось решить CAPTCHA")
	// ErrUnexpectedPage — структура страницы не соответствует ожидаемой.
	ErrUnexpectedPage = errors.New("неожиданная структура страницы")
	// ErrSessionUnusable — сессия браузера больше непригодна для работы.
	// Это фатальная ошибка для всего пакета.
	ErrSessionUnusable = errors.New("сессия браузера непригодна для работы")
	// ErrSessionBusy — сессией уже владеет другой запрос.
	ErrSessionBusy = errors.New("сессия уже используется другим запросом")
)

// IsFatal сообщает, должна ли ошибка запроса прервать пакетную обработку.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionUnusable)
}
