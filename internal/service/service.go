// Package service реализует бизнес-логику сервиса фудхолла.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/foodhall-system/internal/apperr"
	"github.com/mmeshcher/foodhall-system/internal/model"
	"github.com/mmeshcher/foodhall-system/internal/notifier"
	"github.com/mmeshcher/foodhall-system/internal/repository"
	"github.com/mmeshcher/foodhall-system/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetGood(ctx context.Context, goodsID string) (*model.Good, error)
	ListGoodsWithStock(ctx context.Context) ([]model.GoodWithStock, error)
	GetInventory(ctx context.Context, goodsID string) (*model.InventoryRecord, error)
	CreateSession(ctx context.Context, s *model.PaymentSession) error
	GetSession(ctx context.Context, sessionID string) (*model.PaymentSession, error)
	SettleSession(ctx context.Context, sessionID string, detail model.PaidDetail) ([]string, error)
	GetTicketsByIDs(ctx context.Context, ticketIDs []string) ([]model.Ticket, error)
	GetTicketsByCustomer(ctx context.Context, customerID string) ([]model.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus, n *model.Notification) error
	ListBarcodeInfo(ctx context.Context) ([]model.BarcodeInfo, error)
	GetBarcodeBinding(ctx context.Context, barcode string) (*model.TicketBarcodeBind, error)
	CreateBarcodeBinding(ctx context.Context, b *model.TicketBarcodeBind) (string, error)
	GetAuthEntry(ctx context.Context, uid string) (*model.AuthEntry, error)
	UpsertAuthEntry(ctx context.Context, e *model.AuthEntry) error
	GetPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64) error
}

// Service содержит бизнес-логику сервиса фудхолла.
type Service struct {
	repo           Repository
	notifierClient *notifier.Client
	logger         *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом уведомлений.
func NewService(repo Repository, notifierClient *notifier.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:           repo,
		notifierClient: notifierClient,
		logger:         logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ListGoods возвращает витрину товаров с текущей доступностью.
func (s *Service) ListGoods(ctx context.Context) ([]model.GoodWithStock, error) {
	return s.repo.ListGoodsWithStock(ctx)
}

// CheckOrder проверяет остатки по каждой позиции заказа независимо.
// Сбой чтения по одной позиции делает её недостаточной, но не прерывает
// проверку остальных: полный список нужен для диагностики.
func (s *Service) CheckOrder(ctx context.Context, order model.Order) model.OrderCheck {
	check := model.OrderCheck{AllSufficient: true}

	for _, line := range order {
		rec, err := s.repo.GetInventory(ctx, line.GoodsID)
		if err != nil {
			s.logger.Warn("inventory read failed, line treated as insufficient",
				zap.String("goodsID", line.GoodsID), zap.Error(err))
		}
		ok := err == nil && rec.Sufficient(line.Count)

		check.Items = append(check.Items, model.ItemSufficiency{GoodsID: line.GoodsID, Sufficient: ok})
		if !ok {
			check.AllSufficient = false
		}
	}

	return check
}

// priceOrder вычисляет стоимость заказа по текущим ценам товаров.
// В отличие от проверки остатков, любой сбой чтения валит всю операцию:
// частичная сумма не имеет смысла. Построчные сбои собираются в одну ошибку.
func (s *Service) priceOrder(ctx context.Context, order model.Order) (int64, error) {
	var total int64
	var failures []error

	for _, line := range order {
		g, err := s.repo.GetGood(ctx, line.GoodsID)
		if err != nil {
			failures = append(failures, fmt.Errorf("price goods %s: %w", line.GoodsID, err))
			continue
		}
		total += g.Price * line.Count
	}

	if len(failures) > 0 {
		return 0, apperr.Aggregate(apperr.CodePricingFailed, "failed to price order", failures)
	}

	return total, nil
}

// SubmitOrder создаёт сессию оплаты для заказа покупателя: проверяет остатки,
// считает стоимость и сохраняет сессию в UNPAID с зафиксированной суммой.
func (s *Service) SubmitOrder(ctx context.Context, customerID string, order model.Order) (string, error) {
	if !validation.ValidateOrder(order) {
		return "", apperr.New(apperr.CodeValidation, "order must contain at least one line with positive count")
	}

	check := s.CheckOrder(ctx, order)
	if !check.AllSufficient {
		return "", apperr.ItemsGone(check.InsufficientIDs())
	}

	total, err := s.priceOrder(ctx, order)
	if err != nil {
		return "", err
	}

	session := &model.PaymentSession{
		CustomerID:   customerID,
		OrderContent: order,
		TotalAmount:  total,
		State:        model.SessionStateUnpaid,
	}

	// Случайный идентификатор с проверкой коллизии; при совпадении — новый кандидат.
	backoff := retry.WithMaxRetries(3, retry.NewConstant(10*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		session.ID = uuid.NewString()
		if err := s.repo.CreateSession(ctx, session); err != nil {
			if errors.Is(err, repository.ErrSessionExists) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return session.ID, nil
}

// MarkPaid фиксирует оплату сессии и возвращает идентификаторы выданных билетов.
// Сумма сверяется с зафиксированной при создании, без допуска; повторная
// фиксация уже оплаченной сессии отклоняется, а не принимается молча.
func (s *Service) MarkPaid(ctx context.Context, sessionID, staffUID string, paidAmount int64, paidMeans, remark string) ([]string, error) {
	if !validation.ValidatePaidInput(paidAmount, paidMeans) {
		return nil, apperr.New(apperr.CodeValidation, "paid amount must be positive and paid means must be set")
	}

	detail := model.PaidDetail{
		PaymentID:      uuid.NewString(),
		PaymentStaffID: staffUID,
		PaidTime:       time.Now().UTC(),
		PaidAmount:     paidAmount,
		PaidMeans:      paidMeans,
		Remark:         remark,
	}

	return s.repo.SettleSession(ctx, sessionID, detail)
}

// GetSession возвращает сессию оплаты по идентификатору.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.PaymentSession, error) {
	return s.repo.GetSession(ctx, sessionID)
}

// TicketsByCustomer возвращает билеты покупателя.
func (s *Service) TicketsByCustomer(ctx context.Context, customerID string) ([]model.Ticket, error) {
	return s.repo.GetTicketsByCustomer(ctx, customerID)
}

// UpdateTicketStatus меняет статус готовности билета. Роль SHOP ограничена
// билетами собственной лавки. Уведомление покупателю кладётся в outbox вместе
// со сменой статуса и доставляется фоновым процессом.
func (s *Service) UpdateTicketStatus(ctx context.Context, caller *model.AuthEntry, ticketID string, status model.TicketStatus) error {
	if !status.Valid() {
		return apperr.Newf(apperr.CodeValidation, "unknown ticket status %q", status)
	}

	tickets, err := s.repo.GetTicketsByIDs(ctx, []string{ticketID})
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return apperr.Newf(apperr.CodeTicketNotFound, "ticket %s not found", ticketID)
	}
	ticket := tickets[0]

	if caller != nil && caller.AuthType == model.AuthTypeShop && caller.ShopID != ticket.ShopID {
		return apperr.Newf(apperr.CodePermissionDenied, "ticket %s belongs to another shop", ticketID)
	}

	n := &model.Notification{
		RecipientUID: ticket.CustomerID,
		Title:        "Order status updated",
		Body:         fmt.Sprintf("Ticket %s is now %s", ticket.TicketNum, status),
		ClickURL:     "/tickets/" + ticket.ID,
	}

	return s.repo.UpdateTicketStatus(ctx, ticketID, status, n)
}

// GrantRole назначает роль пользователю. Роль SHOP без указания лавки —
// ошибка валидации, а не молчаливое значение по умолчанию.
func (s *Service) GrantRole(ctx context.Context, targetUID string, role model.AuthType, shopID string) error {
	if targetUID == "" {
		return apperr.New(apperr.CodeValidation, "target uid must be set")
	}
	if !role.Valid() {
		return apperr.Newf(apperr.CodeInvalidRole, "unknown role %q", role)
	}
	if role == model.AuthTypeShop && shopID == "" {
		return apperr.New(apperr.CodeMissingShopID, "role SHOP requires shopId")
	}
	if role != model.AuthTypeShop {
		shopID = ""
	}

	return s.repo.UpsertAuthEntry(ctx, &model.AuthEntry{
		UID:      targetUID,
		AuthType: role,
		ShopID:   shopID,
	})
}

// GetAuthEntry возвращает роль пользователя. Пользователь без назначенной
// роли считается ANONYMOUS в пределах собственного идентификатора.
func (s *Service) GetAuthEntry(ctx context.Context, uid string) (*model.AuthEntry, error) {
	entry, err := s.repo.GetAuthEntry(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrAuthEntryNotFound) {
			return &model.AuthEntry{UID: uid, AuthType: model.AuthTypeAnonymous}, nil
		}
		return nil, err
	}
	return entry, nil
}

// StartNotificationDispatch запускает фоновую доставку уведомлений из outbox.
func (s *Service) StartNotificationDispatch(ctx context.Context) {
	if s.notifierClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processNotificationBatch(ctx)
			}
		}
	}()
}

func (s *Service) processNotificationBatch(ctx context.Context) {
	pending, err := s.repo.GetPendingNotifications(ctx, 100)
	if err != nil {
		s.logger.Warn("pending notifications read failed", zap.Error(err))
		return
	}

	for _, n := range pending {
		err := s.notifierClient.Send(ctx, notifier.Message{
			RecipientUserID: n.RecipientUID,
			Title:           n.Title,
			Body:            n.Body,
			ClickURL:        n.ClickURL,
		})
		if err != nil {
			// Неотправленное уведомление остаётся в outbox до следующего тика.
			s.logger.Warn("notification dispatch failed", zap.Int64("id", n.ID), zap.Error(err))
			continue
		}

		if err := s.repo.MarkNotificationSent(ctx, n.ID); err != nil {
			s.logger.Warn("mark notification sent failed", zap.Int64("id", n.ID), zap.Error(err))
		}
	}
}
