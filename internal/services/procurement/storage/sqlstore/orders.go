package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

const orderColumns = `
	id,
	order_number,
	rfq_id,
	quote_id,
	buyer_user_id,
	vendor_user_id,
	vendor_company,
	port,
	currency,
	items_json,
	shipping_cost,
	discount_pct,
	tax_pct,
	subtotal,
	tax_amount,
	grand_total,
	delivery_time_days,
	notes,
	status,
	created_at,
	updated_at`

const orderEventColumns = `
	id,
	order_id,
	actor_user_id,
	actor_role,
	status,
	location,
	hub_name,
	note,
	delay_reason,
	delay_hours,
	eta,
	created_at`

func (s *Store) insertOrder(ctx context.Context, q queryer, order storage.Order) error {
	items, err := encodeJSON(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	_, err = q.ExecContext(ctx, s.q(`
INSERT INTO orders (`+orderColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`),
		order.ID,
		order.OrderNumber,
		order.RFQID,
		order.QuoteID,
		order.BuyerUserID,
		order.VendorUserID,
		order.VendorCompany,
		order.Port,
		order.Currency,
		items,
		money(order.ShippingCost),
		money(order.DiscountPct),
		money(order.TaxPct),
		money(order.Subtotal),
		money(order.TaxAmount),
		money(order.GrandTotal),
		nullInt(order.DeliveryTimeDays),
		order.Notes,
		string(order.Status),
		toMicros(order.CreatedAt),
		toMicros(order.UpdatedAt),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder returns one order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Order{}, err
	}
	return s.getOrder(ctx, s.sqlDB, id, "")
}

func (s *Store) getOrder(ctx context.Context, q queryer, id string, suffix string) (storage.Order, error) {
	row := q.QueryRowContext(ctx, s.q(`SELECT `+orderColumns+` FROM orders WHERE id = ?`+suffix), id)
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Order{}, storage.ErrNotFound
		}
		return storage.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListOrders lists orders newest first. Scope fields and the filter
// condition are combined with AND.
func (s *Store) ListOrders(ctx context.Context, query storage.OrderQuery) ([]storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if buyer := strings.TrimSpace(query.BuyerUserID); buyer != "" {
		where = append(where, "buyer_user_id = ?")
		args = append(args, buyer)
	}
	if vendor := strings.TrimSpace(query.VendorUserID); vendor != "" {
		where = append(where, "vendor_user_id = ?")
		args = append(args, vendor)
	}
	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	if !query.Filter.Empty() {
		where = append(where, query.Filter.Clause)
		args = append(args, query.Filter.Params...)
	}

	stmt := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at DESC, id DESC"

	rows, err := s.sqlDB.QueryContext(ctx, s.q(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]storage.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus overrides the coarse order status. The tracking timeline
// is not touched.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, now time.Time, outbox storage.OrderEventFunc) (storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Order{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Order{}, fmt.Errorf("start order status transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, s.q(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), toMicros(now), id)
	if err != nil {
		return storage.Order{}, fmt.Errorf("update order status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storage.Order{}, fmt.Errorf("update order status rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.Order{}, storage.ErrNotFound
	}

	order, err := s.getOrder(ctx, tx, id, "")
	if err != nil {
		return storage.Order{}, err
	}

	if outbox != nil {
		event, err := outbox(order)
		if err != nil {
			return storage.Order{}, fmt.Errorf("build order outbox event: %w", err)
		}
		if err := s.enqueueOutbox(ctx, tx, event); err != nil {
			return storage.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Order{}, fmt.Errorf("commit order status transaction: %w", err)
	}
	return order, nil
}

// AppendOrderEvent appends a tracking event and applies the coarse status it
// maps to. The mapping is applied whatever the current status is.
func (s *Store) AppendOrderEvent(ctx context.Context, event storage.OrderEvent, outbox storage.TrackingEventFunc) (storage.OrderEvent, storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OrderEvent{}, storage.Order{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.OrderEvent{}, storage.Order{}, fmt.Errorf("start order event transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	order, err := s.getOrder(ctx, tx, event.OrderID, s.dialect.LockSuffix)
	if err != nil {
		return storage.OrderEvent{}, storage.Order{}, err
	}

	createdAt := toMicros(event.CreatedAt)
	err = tx.QueryRowContext(ctx, s.q(`
INSERT INTO order_events (
	order_id,
	actor_user_id,
	actor_role,
	status,
	location,
	hub_name,
	note,
	delay_reason,
	delay_hours,
	eta,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`),
		event.OrderID,
		event.ActorUserID,
		string(event.ActorRole),
		string(event.Status),
		event.Location,
		event.HubName,
		event.Note,
		event.DelayReason,
		nullInt(event.DelayHours),
		nullMicros(event.ETA),
		createdAt,
	).Scan(&event.ID)
	if err != nil {
		return storage.OrderEvent{}, storage.Order{}, fmt.Errorf("insert order event: %w", err)
	}
	event.CreatedAt = fromMicros(createdAt)

	if mapped := event.Status.OrderStatus(); mapped != "" && mapped != order.Status {
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`),
			string(mapped), createdAt, order.ID); err != nil {
			return storage.OrderEvent{}, storage.Order{}, fmt.Errorf("promote order status: %w", err)
		}
		order.Status = mapped
		order.UpdatedAt = event.CreatedAt
	}

	if outbox != nil {
		outboxEvent, err := outbox(order, event)
		if err != nil {
			return storage.OrderEvent{}, storage.Order{}, fmt.Errorf("build tracking outbox event: %w", err)
		}
		if err := s.enqueueOutbox(ctx, tx, outboxEvent); err != nil {
			return storage.OrderEvent{}, storage.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.OrderEvent{}, storage.Order{}, fmt.Errorf("commit order event transaction: %w", err)
	}
	return event, order, nil
}

// ListOrderEvents returns the tracking timeline ordered by (created_at, id).
func (s *Store) ListOrderEvents(ctx context.Context, orderID string) ([]storage.OrderEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, s.q(`
SELECT `+orderEventColumns+`
FROM order_events
WHERE order_id = ?
ORDER BY created_at ASC, id ASC
`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	events := make([]storage.OrderEvent, 0)
	for rows.Next() {
		var (
			event      storage.OrderEvent
			actorRole  string
			status     string
			delayHours sql.NullInt64
			eta        sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(
			&event.ID,
			&event.OrderID,
			&event.ActorUserID,
			&actorRole,
			&status,
			&event.Location,
			&event.HubName,
			&event.Note,
			&event.DelayReason,
			&delayHours,
			&eta,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		event.ActorRole = domain.Role(actorRole)
		event.Status = domain.TrackingStatus(status)
		event.DelayHours = intPtr(delayHours)
		event.ETA = timePtr(eta)
		event.CreatedAt = fromMicros(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}
	return events, nil
}

func scanOrder(scan rowScanner) (storage.Order, error) {
	var (
		order            storage.Order
		itemsJSON        []byte
		deliveryTimeDays sql.NullInt64
		status           string
		createdAt        int64
		updatedAt        int64
	)
	if err := scan(
		&order.ID,
		&order.OrderNumber,
		&order.RFQID,
		&order.QuoteID,
		&order.BuyerUserID,
		&order.VendorUserID,
		&order.VendorCompany,
		&order.Port,
		&order.Currency,
		&itemsJSON,
		&order.ShippingCost,
		&order.DiscountPct,
		&order.TaxPct,
		&order.Subtotal,
		&order.TaxAmount,
		&order.GrandTotal,
		&deliveryTimeDays,
		&order.Notes,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Order{}, err
	}
	if err := decodeJSON(itemsJSON, &order.Items); err != nil {
		return storage.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.DeliveryTimeDays = intPtr(deliveryTimeDays)
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = fromMicros(createdAt)
	order.UpdatedAt = fromMicros(updatedAt)
	return order, nil
}
