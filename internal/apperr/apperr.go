// Package apperr содержит типизированные ошибки сервиса со стабильными
// машинными кодами. Ошибки передаются явным возвратом; исключений нет,
// перевод в HTTP-ответ выполняет только внешний обработчик.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code — стабильный машинный код ошибки, видимый клиенту.
type Code string

const (
	CodeItemsGone         Code = "ITEMS_GONE"
	CodePricingFailed     Code = "PRICING_FAILED"
	CodeSessionNotFound   Code = "SESSION_NOT_FOUND"
	CodeAlreadyPaid       Code = "ALREADY_PAID"
	CodeWrongAmount       Code = "WRONG_AMOUNT"
	CodeTicketIssueFailed Code = "TICKET_ISSUE_FAILED"
	CodeGoodsNotFound     Code = "GOODS_NOT_FOUND"
	CodeTicketNotFound    Code = "TICKET_NOT_FOUND"
	CodeShopNotFound      Code = "SHOP_NOT_FOUND"
	CodeBarcodeNoMatch    Code = "BARCODE_NO_MATCH"
	CodeBarcodeAmbiguous  Code = "BARCODE_AMBIGUOUS"
	CodeMissingShopID     Code = "MISSING_SHOP_ID"
	CodeInvalidRole       Code = "INVALID_ROLE"
	CodeValidation        Code = "VALIDATION_FAILED"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeInternalTicketNum Code = "INTERNAL_TICKET_NUM"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Kind — класс ошибки, определяющий обращение с ней на границе HTTP.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindPermission
)

// Kind возвращает класс ошибки для данного кода.
func (c Code) Kind() Kind {
	switch c {
	case CodeValidation, CodeMissingShopID, CodeInvalidRole:
		return KindValidation
	case CodeItemsGone, CodeAlreadyPaid, CodeWrongAmount, CodeBarcodeNoMatch, CodeBarcodeAmbiguous:
		return KindConflict
	case CodeSessionNotFound, CodeGoodsNotFound, CodeTicketNotFound, CodeShopNotFound:
		return KindNotFound
	case CodePermissionDenied:
		return KindPermission
	}
	return KindInternal
}

// Error — ошибка с машинным кодом и человекочитаемым сообщением.
// GoodsIDs заполняется для ITEMS_GONE; causes хранят исходные ошибки
// для диагностики, в том числе при агрегировании построчных сбоев.
type Error struct {
	Code     Code
	Message  string
	GoodsIDs []string
	causes   []error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if len(e.causes) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.causes))
	for _, c := range e.causes {
		parts = append(parts, c.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, strings.Join(parts, "; "))
}

// Unwrap возвращает исходные ошибки для errors.Is/As.
func (e *Error) Unwrap() []error { return e.causes }

// Is считает две ошибки равными при совпадении кодов.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New создаёт ошибку с указанным кодом и сообщением.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf создаёт ошибку с форматированным сообщением.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает исходную ошибку, сохраняя её для диагностики.
func Wrap(code Code, message string, cause error) *Error {
	e := &Error{Code: code, Message: message}
	if cause != nil {
		e.causes = []error{cause}
	}
	return e
}

// Aggregate объединяет несколько построчных сбоев под одним кодом,
// сохраняя каждый для диагностики.
func Aggregate(code Code, message string, causes []error) *Error {
	return &Error{Code: code, Message: message, causes: causes}
}

// ItemsGone создаёт ошибку нехватки товаров с перечнем затронутых позиций.
func ItemsGone(goodsIDs []string) *Error {
	return &Error{
		Code:     CodeItemsGone,
		Message:  fmt.Sprintf("items no longer available: %s", strings.Join(goodsIDs, ", ")),
		GoodsIDs: goodsIDs,
	}
}

// CodeOf извлекает машинный код из цепочки ошибок.
// Для ошибок без кода возвращает INTERNAL_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf извлекает человекочитаемое сообщение из цепочки ошибок.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// GoodsIDsOf извлекает перечень затронутых товаров, если он есть.
func GoodsIDsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.GoodsIDs
	}
	return nil
}
