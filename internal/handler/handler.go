// Package handler содержит HTTP-обработчики API сервиса фудхолла.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/foodhall-system/internal/apperr"
	"github.com/mmeshcher/foodhall-system/internal/middleware"
	"github.com/mmeshcher/foodhall-system/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ListGoods(ctx context.Context) ([]model.GoodWithStock, error)
	SubmitOrder(ctx context.Context, customerID string, order model.Order) (string, error)
	MarkPaid(ctx context.Context, sessionID, staffUID string, paidAmount int64, paidMeans, remark string) ([]string, error)
	TicketsByCustomer(ctx context.Context, customerID string) ([]model.Ticket, error)
	UpdateTicketStatus(ctx context.Context, caller *model.AuthEntry, ticketID string, status model.TicketStatus) error
	ResolveTicket(ctx context.Context, callerUID, barcode string, candidateTicketIDs []string) (string, error)
	GrantRole(ctx context.Context, targetUID string, role model.AuthType, shopID string) error
	GetAuthEntry(ctx context.Context, uid string) (*model.AuthEntry, error)
}

// Handler реализует HTTP-обработчики API сервиса фудхолла.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeSuccess пишет успешный ответ в едином конверте результата.
func writeSuccess(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"isSuccess": true}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// writeError пишет ответ об ошибке: стабильный машинный код плюс сообщение.
// Успешная форма никогда не смешивается с кодом ошибки.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)

	var status int
	switch code.Kind() {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPermission:
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
		h.logger.Error("internal error", zap.Error(err), zap.String("path", r.URL.Path))
	}

	body := map[string]any{
		"isSuccess": false,
		"errorCode": string(code),
		"message":   apperr.MessageOf(err),
	}
	if ids := apperr.GoodsIDsOf(err); len(ids) > 0 {
		body["goodsIds"] = ids
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// callerEntry извлекает роль вызывающего и проверяет её против требуемых.
func (h *Handler) callerEntry(w http.ResponseWriter, r *http.Request, required ...model.AuthType) (*model.AuthEntry, bool) {
	uid, ok := middleware.GetUIDFromContext(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"isSuccess": false,
			"errorCode": string(apperr.CodePermissionDenied),
			"message":   "authentication required",
		})
		return nil, false
	}

	entry, err := h.service.GetAuthEntry(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}

	if !model.Authorize(entry, required...) {
		h.writeError(w, r, apperr.New(apperr.CodePermissionDenied, "operation is not allowed for this role"))
		return nil, false
	}

	return entry, true
}

// ListGoods возвращает витрину товаров с доступностью.
func (h *Handler) ListGoods(w http.ResponseWriter, r *http.Request) {
	goods, err := h.service.ListGoods(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if goods == nil {
		goods = []model.GoodWithStock{}
	}
	writeSuccess(w, map[string]any{"goods": goods})
}

type submitOrderRequest struct {
	Order model.Order `json:"order"`
}

// SubmitOrder принимает заказ покупателя и создаёт сессию оплаты.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.callerEntry(w, r, model.AuthTypeAnonymous, model.AuthTypeAdmin)
	if !ok {
		return
	}

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.New(apperr.CodeValidation, "malformed request body"))
		return
	}

	sessionID, err := h.service.SubmitOrder(r.Context(), entry.UID, req.Order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]any{"sessionId": sessionID})
}

type ticketResponse struct {
	UniqueID          string       `json:"uniqueId"`
	ShopID            string       `json:"shopId"`
	TicketNum         string       `json:"ticketNum"`
	OrderData         model.Order  `json:"orderData"`
	Status            string       `json:"status"`
	IssueTime         string       `json:"issueTime"`
	PaymentSessionID  string       `json:"paymentSessionId"`
	LastStatusUpdated string       `json:"lastStatusUpdated"`
}

// GetTickets возвращает билеты текущего покупателя.
func (h *Handler) GetTickets(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.callerEntry(w, r, model.AuthTypeAnonymous, model.AuthTypeAdmin)
	if !ok {
		return
	}

	tickets, err := h.service.TicketsByCustomer(r.Context(), entry.UID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, ticketResponse{
			UniqueID:          t.ID,
			ShopID:            t.ShopID,
			TicketNum:         t.TicketNum,
			OrderData:         t.OrderData,
			Status:            string(t.Status),
			IssueTime:         t.IssueTime.Format(time.RFC3339),
			PaymentSessionID:  t.PaymentSessionID,
			LastStatusUpdated: t.LastStatusUpdated.Format(time.RFC3339),
		})
	}

	writeSuccess(w, map[string]any{"tickets": resp})
}

type markPaidRequest struct {
	PaidAmount int64  `json:"paidAmount"`
	PaidMeans  string `json:"paidMeans"`
	Remark     string `json:"remark,omitempty"`
}

// MarkPaid фиксирует оплату сессии кассиром и возвращает выданные билеты.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.callerEntry(w, r, model.AuthTypeCashier, model.AuthTypeAdmin)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.New(apperr.CodeValidation, "malformed request body"))
		return
	}

	ticketIDs, err := h.service.MarkPaid(r.Context(), sessionID, entry.UID, req.PaidAmount, req.PaidMeans, req.Remark)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]any{"ticketIds": ticketIDs})
}

type resolveBarcodeRequest struct {
	Barcode            string   `json:"barcode"`
	CandidateTicketIDs []string `json:"candidateTicketIds"`
}

// ResolveBarcode находит билет по отсканированному штрихкоду.
func (h *Handler) ResolveBarcode(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.callerEntry(w, r, model.AuthTypeCashier, model.AuthTypeAdmin)
	if !ok {
		return
	}

	var req resolveBarcodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.New(apperr.CodeValidation, "malformed request body"))
		return
	}

	ticketID, err := h.service.ResolveTicket(r.Context(), entry.UID, req.Barcode, req.CandidateTicketIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]any{"ticketId": ticketID})
}

type updateTicketStatusRequest struct {
	Status string `json:"status"`
}

// UpdateTicketStatus меняет статус готовности билета лавкой.
func (h *Handler) UpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.callerEntry(w, r, model.AuthTypeShop, model.AuthTypeAdmin)
	if !ok {
		return
	}

	ticketID := chi.URLParam(r, "ticketID")

	var req updateTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.New(apperr.CodeValidation, "malformed request body"))
		return
	}

	err := h.service.UpdateTicketStatus(r.Context(), entry, ticketID, model.TicketStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, nil)
}

type grantRoleRequest struct {
	UID    string `json:"uid"`
	Role   string `json:"role"`
	ShopID string `json:"shopId,omitempty"`
}

// GrantRole назначает роль пользователю. Доступно только администратору.
func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.callerEntry(w, r, model.AuthTypeAdmin); !ok {
		return
	}

	var req grantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.New(apperr.CodeValidation, "malformed request body"))
		return
	}

	err := h.service.GrantRole(r.Context(), req.UID, model.AuthType(req.Role), req.ShopID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, nil)
}
