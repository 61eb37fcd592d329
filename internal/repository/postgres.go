// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/foodhall-system/internal/apperr"
	"github.com/mmeshcher/foodhall-system/internal/model"
	"github.com/mmeshcher/foodhall-system/internal/ticketnum"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSessionExists возвращается при коллизии случайного идентификатора сессии.
var (
	ErrSessionExists = errors.New("session id already in use")
	// ErrBindingNotFound возвращается, если штрихкод ещё не закреплён за билетом.
	ErrBindingNotFound = errors.New("barcode binding not found")
	// ErrAuthEntryNotFound возвращается, если роль пользователю не назначена.
	ErrAuthEntryNotFound = errors.New("auth entry not found")
	// ErrInventoryNotFound возвращается при отсутствии записи об остатке товара.
	ErrInventoryNotFound = errors.New("inventory record not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetGood возвращает товар по идентификатору.
func (r *PostgresRepository) GetGood(ctx context.Context, goodsID string) (*model.Good, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, shop_id, name, price, description, image_url FROM goods WHERE id = $1`,
		goodsID,
	)

	var g model.Good
	err := row.Scan(&g.ID, &g.ShopID, &g.Name, &g.Price, &g.Description, &g.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.CodeGoodsNotFound, "goods %s not found", goodsID)
		}
		return nil, fmt.Errorf("get goods: %w", err)
	}

	return &g, nil
}

// ListGoodsWithStock возвращает витрину: все товары с текущей доступностью.
func (r *PostgresRepository) ListGoodsWithStock(ctx context.Context) ([]model.GoodWithStock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.shop_id, g.name, g.price, g.description, g.image_url,
		        i.remain, i.remain_count, COALESCE(i.waiting_count, 0)
		 FROM goods g
		 LEFT JOIN inventory i ON i.goods_id = g.id
		 ORDER BY g.shop_id, g.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select goods: %w", err)
	}
	defer rows.Close()

	var res []model.GoodWithStock
	for rows.Next() {
		var (
			gws         model.GoodWithStock
			remain      *bool
			remainCount *int64
		)
		if err := rows.Scan(
			&gws.ID, &gws.ShopID, &gws.Name, &gws.Price, &gws.Description, &gws.ImageURL,
			&remain, &remainCount, &gws.WaitingCount,
		); err != nil {
			return nil, fmt.Errorf("scan goods: %w", err)
		}

		rec := model.InventoryRecord{GoodsID: gws.ID, Remain: remain, RemainCount: remainCount}
		gws.Available = rec.Sufficient(1)
		gws.RemainCount = remainCount

		res = append(res, gws)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetInventory возвращает запись об остатке товара.
func (r *PostgresRepository) GetInventory(ctx context.Context, goodsID string) (*model.InventoryRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT goods_id, remain, remain_count, waiting_count FROM inventory WHERE goods_id = $1`,
		goodsID,
	)

	var rec model.InventoryRecord
	err := row.Scan(&rec.GoodsID, &rec.Remain, &rec.RemainCount, &rec.WaitingCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrInventoryNotFound, goodsID)
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}

	return &rec, nil
}

// CreateSession сохраняет новую сессию оплаты в состоянии UNPAID.
// При коллизии идентификатора возвращает ErrSessionExists, выбор нового
// кандидата — забота вызывающего.
func (r *PostgresRepository) CreateSession(ctx context.Context, s *model.PaymentSession) error {
	orderJSON, err := json.Marshal(s.OrderContent)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO payment_sessions (id, customer_id, order_content, total_amount, state)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.CustomerID, orderJSON, s.TotalAmount, string(model.SessionStateUnpaid),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetSession возвращает сессию оплаты по идентификатору.
func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*model.PaymentSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, customer_id, order_content, total_amount, state, paid_detail, ticket_ids, created_at
		 FROM payment_sessions WHERE id = $1`,
		sessionID,
	)

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.CodeSessionNotFound, "payment session %s not found", sessionID)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return s, nil
}

func scanSession(row pgx.Row) (*model.PaymentSession, error) {
	var (
		s          model.PaymentSession
		state      string
		orderJSON  []byte
		detailJSON []byte
	)
	if err := row.Scan(&s.ID, &s.CustomerID, &orderJSON, &s.TotalAmount, &state, &detailJSON, &s.TicketIDs, &s.CreatedAt); err != nil {
		return nil, err
	}

	s.State = model.SessionState(state)
	if err := json.Unmarshal(orderJSON, &s.OrderContent); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	if detailJSON != nil {
		s.PaidDetail = &model.PaidDetail{}
		if err := json.Unmarshal(detailJSON, s.PaidDetail); err != nil {
			return nil, fmt.Errorf("unmarshal paid detail: %w", err)
		}
	}

	return &s, nil
}

// SettleSession фиксирует оплату сессии в одной транзакции: блокирует строку
// сессии, повторно проверяет остатки под FOR UPDATE, резервирует товар,
// выдаёт по билету на каждую лавку заказа через счётчик номеров и переводит
// сессию в PAID. Любой сбой откатывает всё вместе: частичная выдача билетов
// или резерв без смены состояния невозможны.
func (r *PostgresRepository) SettleSession(ctx context.Context, sessionID string, detail model.PaidDetail) ([]string, error) {
	var ticketIDs []string
	err := r.withRetry(ctx, func() error {
		ids, err := r.settleSessionTx(ctx, sessionID, detail)
		if err != nil {
			return err
		}
		ticketIDs = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticketIDs, nil
}

func (r *PostgresRepository) settleSessionTx(ctx context.Context, sessionID string, detail model.PaidDetail) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку сессии: повторная фиксация оплаты сериализуется здесь.
	var (
		customerID  string
		orderJSON   []byte
		totalAmount int64
		state       string
	)
	err = tx.QueryRow(ctx,
		`SELECT customer_id, order_content, total_amount, state
		 FROM payment_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&customerID, &orderJSON, &totalAmount, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.CodeSessionNotFound, "payment session %s not found", sessionID)
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}

	if model.SessionState(state) == model.SessionStatePaid {
		return nil, apperr.Newf(apperr.CodeAlreadyPaid, "payment session %s is already paid", sessionID)
	}

	var order model.Order
	if err := json.Unmarshal(orderJSON, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	if err := r.checkAndReserve(ctx, tx, order); err != nil {
		return nil, err
	}

	if detail.PaidAmount != totalAmount {
		return nil, apperr.Newf(apperr.CodeWrongAmount,
			"paid amount %d does not match session total %d", detail.PaidAmount, totalAmount)
	}

	shops, err := resolveGoodsShops(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	groups, err := groupOrderByShop(order, shops)
	if err != nil {
		return nil, err
	}

	ticketIDs := make([]string, 0, len(groups))
	for _, grp := range groups {
		id, err := r.mintTicket(ctx, tx, grp.shopID, customerID, sessionID, grp.lines)
		if err != nil {
			return nil, err
		}
		ticketIDs = append(ticketIDs, id)
	}

	detail.CustomerID = customerID
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("marshal paid detail: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE payment_sessions SET state = $2, paid_detail = $3, ticket_ids = $4 WHERE id = $1`,
		sessionID, string(model.SessionStatePaid), detailJSON, ticketIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return ticketIDs, nil
}

// checkAndReserve блокирует строки остатков, повторно проверяет достаточность
// и списывает счётные остатки. Булев остаток проверяется, но не списывается.
func (r *PostgresRepository) checkAndReserve(ctx context.Context, tx pgx.Tx, order model.Order) error {
	ids := make([]string, 0, len(order))
	for _, line := range order {
		ids = append(ids, line.GoodsID)
	}
	// Стабильный порядок блокировок против взаимных блокировок параллельных оплат.
	lockIDs := slices.Clone(ids)
	slices.Sort(lockIDs)

	rows, err := tx.Query(ctx,
		`SELECT goods_id, remain, remain_count FROM inventory
		 WHERE goods_id = ANY($1) ORDER BY goods_id FOR UPDATE`,
		lockIDs,
	)
	if err != nil {
		return fmt.Errorf("lock inventory: %w", err)
	}

	records := make(map[string]*model.InventoryRecord, len(lockIDs))
	for rows.Next() {
		var rec model.InventoryRecord
		if err := rows.Scan(&rec.GoodsID, &rec.Remain, &rec.RemainCount); err != nil {
			rows.Close()
			return fmt.Errorf("scan inventory: %w", err)
		}
		records[rec.GoodsID] = &rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	var gone []string
	for _, line := range order {
		if !records[line.GoodsID].Sufficient(line.Count) {
			gone = append(gone, line.GoodsID)
		}
	}
	if len(gone) > 0 {
		return apperr.ItemsGone(gone)
	}

	for _, line := range order {
		rec := records[line.GoodsID]
		if rec.RemainCount == nil {
			continue
		}
		_, err := tx.Exec(ctx,
			`UPDATE inventory SET remain_count = remain_count - $2 WHERE goods_id = $1`,
			line.GoodsID, line.Count,
		)
		if err != nil {
			return fmt.Errorf("reserve inventory: %w", err)
		}
	}

	return nil
}

type shopGroup struct {
	shopID string
	lines  model.Order
}

// resolveGoodsShops возвращает лавку-владельца каждого товара заказа.
func resolveGoodsShops(ctx context.Context, tx pgx.Tx, order model.Order) (map[string]string, error) {
	shops := make(map[string]string, len(order))

	for _, line := range order {
		if _, ok := shops[line.GoodsID]; ok {
			continue
		}
		var shopID string
		err := tx.QueryRow(ctx, `SELECT shop_id FROM goods WHERE id = $1`, line.GoodsID).Scan(&shopID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.Newf(apperr.CodeTicketIssueFailed, "failed to get item data for %s", line.GoodsID)
			}
			return nil, fmt.Errorf("resolve goods shop: %w", err)
		}
		shops[line.GoodsID] = shopID
	}

	return shops, nil
}

// groupOrderByShop разбивает заказ по лавкам-владельцам товаров, сохраняя
// порядок первого появления каждой лавки в заказе. Товар без владельца
// прекращает выдачу билетов, а не теряется молча.
func groupOrderByShop(order model.Order, shopByGood map[string]string) ([]shopGroup, error) {
	var groups []shopGroup
	index := make(map[string]int)

	for _, line := range order {
		shopID, ok := shopByGood[line.GoodsID]
		if !ok {
			return nil, apperr.Newf(apperr.CodeTicketIssueFailed, "failed to get item data for %s", line.GoodsID)
		}

		i, ok := index[shopID]
		if !ok {
			i = len(groups)
			index[shopID] = i
			groups = append(groups, shopGroup{shopID: shopID})
		}
		groups[i].lines = append(groups[i].lines, line)
	}

	return groups, nil
}

// mintTicket выдаёт один билет лавке внутри транзакции оплаты: строка счётчика
// блокируется FOR UPDATE, следующий номер вычисляется, билет записывается и
// счётчик обновляется — всё атомарно, иначе возможен пропуск или дубль номера.
func (r *PostgresRepository) mintTicket(ctx context.Context, tx pgx.Tx, shopID, customerID, sessionID string, lines model.Order) (string, error) {
	var last, leading string
	err := tx.QueryRow(ctx,
		`SELECT last_ticket_num, ticket_num_leading FROM ticket_num_info WHERE shop_id = $1 FOR UPDATE`,
		shopID,
	).Scan(&last, &leading)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.Newf(apperr.CodeShopNotFound, "ticket numbering for shop %s is not provisioned", shopID)
		}
		return "", fmt.Errorf("lock ticket counter: %w", err)
	}

	next, err := ticketnum.Next(last, leading)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternalTicketNum,
			fmt.Sprintf("ticket number generation failed for shop %s", shopID), err)
	}

	ticketID, err := allocateTicketID(ctx, tx)
	if err != nil {
		return "", err
	}

	orderJSON, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("marshal ticket order: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO tickets (id, shop_id, customer_id, ticket_num, order_data, status, payment_session_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ticketID, shopID, customerID, next, orderJSON, string(model.TicketStatusProcessing), sessionID,
	)
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE ticket_num_info SET last_ticket_num = $2 WHERE shop_id = $1`,
		shopID, next,
	)
	if err != nil {
		return "", fmt.Errorf("update ticket counter: %w", err)
	}

	return ticketID, nil
}

// allocateTicketID подбирает свободный случайный идентификатор билета.
// Коллизии UUID крайне маловероятны, поэтому ограниченного числа попыток достаточно.
func allocateTicketID(ctx context.Context, tx pgx.Tx) (string, error) {
	for i := 0; i < 3; i++ {
		candidate := uuid.NewString()

		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, candidate).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check ticket id: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperr.New(apperr.CodeInternal, "failed to allocate ticket id")
}

// GetTicketsByIDs возвращает билеты по списку идентификаторов, сохраняя порядок хранилища.
func (r *PostgresRepository) GetTicketsByIDs(ctx context.Context, ticketIDs []string) ([]model.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, shop_id, customer_id, ticket_num, order_data, status, issue_time, payment_session_id, last_status_updated
		 FROM tickets WHERE id = ANY($1) ORDER BY issue_time`,
		ticketIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// GetTicketsByCustomer возвращает билеты покупателя, новые первыми.
func (r *PostgresRepository) GetTicketsByCustomer(ctx context.Context, customerID string) ([]model.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, shop_id, customer_id, ticket_num, order_data, status, issue_time, payment_session_id, last_status_updated
		 FROM tickets WHERE customer_id = $1 ORDER BY issue_time DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]model.Ticket, error) {
	var res []model.Ticket
	for rows.Next() {
		var (
			t         model.Ticket
			status    string
			orderJSON []byte
		)
		if err := rows.Scan(&t.ID, &t.ShopID, &t.CustomerID, &t.TicketNum, &orderJSON,
			&status, &t.IssueTime, &t.PaymentSessionID, &t.LastStatusUpdated); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.Status = model.TicketStatus(status)
		if err := json.Unmarshal(orderJSON, &t.OrderData); err != nil {
			return nil, fmt.Errorf("unmarshal ticket order: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateTicketStatus меняет статус билета и в той же транзакции кладёт
// уведомление покупателю в outbox: смена статуса не ждёт и не зависит от доставки.
func (r *PostgresRepository) UpdateTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus, n *model.Notification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE tickets SET status = $2, last_status_updated = now() WHERE id = $1`,
		ticketID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperr.Newf(apperr.CodeTicketNotFound, "ticket %s not found", ticketID)
	}

	if n != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO notifications (recipient_uid, title, body, click_url) VALUES ($1, $2, $3, $4)`,
			n.RecipientUID, n.Title, n.Body, n.ClickURL,
		)
		if err != nil {
			return fmt.Errorf("enqueue notification: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListBarcodeInfo возвращает зарегистрированные префиксы штрихкодов всех лавок.
func (r *PostgresRepository) ListBarcodeInfo(ctx context.Context) ([]model.BarcodeInfo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT shop_id, barcode_starts_with FROM barcode_info ORDER BY shop_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select barcode info: %w", err)
	}
	defer rows.Close()

	var res []model.BarcodeInfo
	for rows.Next() {
		var info model.BarcodeInfo
		if err := rows.Scan(&info.ShopID, &info.BarcodeStartsWith); err != nil {
			return nil, fmt.Errorf("scan barcode info: %w", err)
		}
		res = append(res, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetBarcodeBinding возвращает закреплённое соответствие штрихкода билету.
func (r *PostgresRepository) GetBarcodeBinding(ctx context.Context, barcode string) (*model.TicketBarcodeBind, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT barcode, uid, ticket_id FROM barcode_bindings WHERE barcode = $1`,
		barcode,
	)

	var b model.TicketBarcodeBind
	err := row.Scan(&b.Barcode, &b.UID, &b.TicketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("get barcode binding: %w", err)
	}

	return &b, nil
}

// CreateBarcodeBinding закрепляет штрихкод за билетом и возвращает
// авторитетный ticket_id. При гонке двух касс побеждает первая запись:
// проигравший получает её билет, а не свой локально подобранный.
func (r *PostgresRepository) CreateBarcodeBinding(ctx context.Context, b *model.TicketBarcodeBind) (string, error) {
	var ticketID string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO barcode_bindings (barcode, uid, ticket_id) VALUES ($1, $2, $3)
		 ON CONFLICT (barcode) DO UPDATE SET barcode = EXCLUDED.barcode
		 RETURNING ticket_id`,
		b.Barcode, b.UID, b.TicketID,
	).Scan(&ticketID)
	if err != nil {
		return "", fmt.Errorf("create barcode binding: %w", err)
	}
	return ticketID, nil
}

// GetAuthEntry возвращает роль пользователя по внешнему идентификатору.
func (r *PostgresRepository) GetAuthEntry(ctx context.Context, uid string) (*model.AuthEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT uid, auth_type, COALESCE(shop_id, '') FROM auth_entries WHERE uid = $1`,
		uid,
	)

	var (
		e        model.AuthEntry
		authType string
	)
	err := row.Scan(&e.UID, &authType, &e.ShopID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAuthEntryNotFound
		}
		return nil, fmt.Errorf("get auth entry: %w", err)
	}

	e.AuthType = model.AuthType(authType)
	return &e, nil
}

// UpsertAuthEntry создаёт или заменяет роль пользователя.
func (r *PostgresRepository) UpsertAuthEntry(ctx context.Context, e *model.AuthEntry) error {
	var shopID *string
	if e.ShopID != "" {
		shopID = &e.ShopID
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_entries (uid, auth_type, shop_id) VALUES ($1, $2, $3)
		 ON CONFLICT (uid) DO UPDATE SET auth_type = EXCLUDED.auth_type, shop_id = EXCLUDED.shop_id`,
		e.UID, string(e.AuthType), shopID,
	)
	if err != nil {
		return fmt.Errorf("upsert auth entry: %w", err)
	}
	return nil
}

// GetPendingNotifications возвращает неотправленные уведомления, старые первыми.
func (r *PostgresRepository) GetPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, recipient_uid, title, body, click_url, sent, created_at
		 FROM notifications WHERE NOT sent ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientUID, &n.Title, &n.Body, &n.ClickURL, &n.Sent, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationSent помечает уведомление доставленным.
func (r *PostgresRepository) MarkNotificationSent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET sent = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}
