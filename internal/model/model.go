// Package model содержит доменные сущности сервиса фудхолла.
package model

import "time"

// Good описывает товар, продаваемый одной из лавок фудхолла.
// Цена фиксируется в сессии оплаты при создании заказа и далее не перечитывается.
type Good struct {
	ID          string `json:"goodsId"`
	ShopID      string `json:"shopId"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// InventoryRecord описывает остаток товара. Допустима ровно одна из двух форм:
// булев признак наличия (Remain) либо счётный остаток (RemainCount).
type InventoryRecord struct {
	GoodsID      string
	Remain       *bool
	RemainCount  *int64
	WaitingCount int64
}

// Sufficient сообщает, хватает ли остатка на запрошенное количество.
// Для булевой формы количество не важно (кроме требования count > 0).
func (r *InventoryRecord) Sufficient(count int64) bool {
	if r == nil || count <= 0 {
		return false
	}
	switch {
	case r.Remain != nil:
		return *r.Remain
	case r.RemainCount != nil:
		return *r.RemainCount >= count
	}
	return false
}

// OrderLine описывает одну позицию заказа.
type OrderLine struct {
	GoodsID string `json:"goodsId"`
	Count   int64  `json:"count"`
}

// Order — упорядоченный список позиций заказа. Отдельно не хранится,
// только внутри сессии оплаты и билетов.
type Order []OrderLine

// SessionState описывает состояние сессии оплаты.
type SessionState string

const (
	// SessionStateUnpaid — сессия создана, оплата не зафиксирована.
	SessionStateUnpaid SessionState = "UNPAID"
	// SessionStatePaid — оплата зафиксирована, билеты выданы. Терминальное состояние.
	SessionStatePaid SessionState = "PAID"
)

// PaidDetail содержит данные о зафиксированной оплате.
type PaidDetail struct {
	PaymentID      string    `json:"paymentId"`
	PaymentStaffID string    `json:"paymentStaffId"`
	CustomerID     string    `json:"customerId"`
	PaidTime       time.Time `json:"paidTime"`
	PaidAmount     int64     `json:"paidAmount"`
	PaidMeans      string    `json:"paidMeans"`
	Remark         string    `json:"remark,omitempty"`
}

// PaymentSession описывает сессию оплаты одного заказа покупателя.
// Инвариант: PaidDetail заполнен тогда и только тогда, когда State == PAID.
// TotalAmount фиксируется при создании и никогда не пересчитывается.
type PaymentSession struct {
	ID           string
	CustomerID   string
	OrderContent Order
	TotalAmount  int64
	State        SessionState
	PaidDetail   *PaidDetail
	TicketIDs    []string
	CreatedAt    time.Time
}

// TicketStatus описывает статус готовности билета.
type TicketStatus string

const (
	TicketStatusProcessing TicketStatus = "PROCESSING"
	TicketStatusReady      TicketStatus = "READY"
	TicketStatusReceived   TicketStatus = "RECEIVED"
)

// Valid проверяет, что статус входит в закрытый набор значений.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusProcessing, TicketStatusReady, TicketStatusReceived:
		return true
	}
	return false
}

// Ticket описывает выданный билет. Одна сессия оплаты порождает по одному
// билету на каждую лавку, представленную в заказе; OrderData билета содержит
// только позиции его лавки.
type Ticket struct {
	ID                string
	ShopID            string
	CustomerID        string
	TicketNum         string
	OrderData         Order
	Status            TicketStatus
	IssueTime         time.Time
	PaymentSessionID  string
	LastStatusUpdated time.Time
}

// TicketNumInfo — счётчик номеров билетов лавки. Изменяется только внутри
// той же транзакции, что записывает очередной билет.
type TicketNumInfo struct {
	ShopID           string
	LastTicketNum    string
	TicketNumLeading string // пустая строка — нумерация без префикса
}

// BarcodeInfo — зарегистрированные префиксы штрихкодов лавки.
type BarcodeInfo struct {
	ShopID            string
	BarcodeStartsWith []string
}

// TicketBarcodeBind — закреплённое соответствие штрихкода и билета.
// Создаётся один раз при первом успешном разрешении и далее авторитетно.
type TicketBarcodeBind struct {
	Barcode  string
	UID      string
	TicketID string
}

// AuthType описывает роль аутентифицированного пользователя.
type AuthType string

const (
	AuthTypeAdmin     AuthType = "ADMIN"
	AuthTypeShop      AuthType = "SHOP"
	AuthTypeCashier   AuthType = "CASHIER"
	AuthTypeAnonymous AuthType = "ANONYMOUS"
)

// Valid проверяет, что роль входит в закрытый набор значений.
func (t AuthType) Valid() bool {
	switch t {
	case AuthTypeAdmin, AuthTypeShop, AuthTypeCashier, AuthTypeAnonymous:
		return true
	}
	return false
}

// AuthEntry связывает внешний идентификатор пользователя с ролью.
// ShopID заполняется только для роли SHOP.
type AuthEntry struct {
	UID      string
	AuthType AuthType
	ShopID   string
}

// Authorize сообщает, входит ли роль вызывающего в набор требуемых ролей.
func Authorize(entry *AuthEntry, required ...AuthType) bool {
	if entry == nil {
		return false
	}
	for _, r := range required {
		if entry.AuthType == r {
			return true
		}
	}
	return false
}

// ItemSufficiency — результат проверки остатка по одной позиции заказа.
type ItemSufficiency struct {
	GoodsID    string `json:"goodsId"`
	Sufficient bool   `json:"sufficient"`
}

// OrderCheck — результат проверки остатков по всему заказу.
type OrderCheck struct {
	Items         []ItemSufficiency
	AllSufficient bool
}

// InsufficientIDs возвращает идентификаторы товаров, которых не хватило.
func (c OrderCheck) InsufficientIDs() []string {
	var ids []string
	for _, it := range c.Items {
		if !it.Sufficient {
			ids = append(ids, it.GoodsID)
		}
	}
	return ids
}

// GoodWithStock — товар вместе с текущей доступностью для витрины.
type GoodWithStock struct {
	Good
	Available    bool   `json:"available"`
	RemainCount  *int64 `json:"remainCount,omitempty"`
	WaitingCount int64  `json:"waitingCount"`
}

// Notification — отложенное уведомление покупателю (outbox).
type Notification struct {
	ID           int64
	RecipientUID string
	Title        string
	Body         string
	ClickURL     string
	Sent         bool
	CreatedAt    time.Time
}
