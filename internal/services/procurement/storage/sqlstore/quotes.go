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

const quoteColumns = `
	id,
	rfq_id,
	vendor_user_id,
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

// UpsertQuote inserts the quote or replaces the one the vendor already holds
// on the RFQ. The existing id and created_at survive a replacement.
func (s *Store) UpsertQuote(ctx context.Context, quote storage.Quote, outbox storage.QuoteEventFunc) (storage.Quote, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Quote{}, err
	}
	if strings.TrimSpace(quote.ID) == "" {
		return storage.Quote{}, fmt.Errorf("quote id is required")
	}
	items, err := encodeJSON(quote.Items)
	if err != nil {
		return storage.Quote{}, fmt.Errorf("encode quote items: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Quote{}, fmt.Errorf("start quote transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		storedID  string
		createdAt int64
	)
	err = tx.QueryRowContext(ctx, s.q(`
INSERT INTO quotes (`+quoteColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (rfq_id, vendor_user_id) DO UPDATE SET
	currency = excluded.currency,
	items_json = excluded.items_json,
	shipping_cost = excluded.shipping_cost,
	discount_pct = excluded.discount_pct,
	tax_pct = excluded.tax_pct,
	subtotal = excluded.subtotal,
	tax_amount = excluded.tax_amount,
	grand_total = excluded.grand_total,
	delivery_time_days = excluded.delivery_time_days,
	notes = excluded.notes,
	status = excluded.status,
	updated_at = excluded.updated_at
WHERE quotes.status IN ('submitted', 'withdrawn')
RETURNING id, created_at
`),
		quote.ID,
		quote.RFQID,
		quote.VendorUserID,
		quote.Currency,
		items,
		money(quote.ShippingCost),
		money(quote.DiscountPct),
		money(quote.TaxPct),
		money(quote.Subtotal),
		money(quote.TaxAmount),
		money(quote.GrandTotal),
		nullInt(quote.DeliveryTimeDays),
		quote.Notes,
		string(domain.QuoteSubmitted),
		toMicros(quote.CreatedAt),
		toMicros(quote.UpdatedAt),
	).Scan(&storedID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Quote{}, storage.ErrQuoteLocked
		}
		if s.dialect.IsUniqueViolation(err) {
			return storage.Quote{}, storage.ErrAlreadyExists
		}
		return storage.Quote{}, fmt.Errorf("upsert quote: %w", err)
	}

	quote.ID = storedID
	quote.Status = domain.QuoteSubmitted
	quote.CreatedAt = fromMicros(createdAt)
	quote.UpdatedAt = fromMicros(toMicros(quote.UpdatedAt))

	if outbox != nil {
		event, err := outbox(quote)
		if err != nil {
			return storage.Quote{}, fmt.Errorf("build quote outbox event: %w", err)
		}
		if err := s.enqueueOutbox(ctx, tx, event); err != nil {
			return storage.Quote{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Quote{}, fmt.Errorf("commit quote transaction: %w", err)
	}
	return quote, nil
}

// GetQuote returns one quote by id.
func (s *Store) GetQuote(ctx context.Context, id string) (storage.Quote, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Quote{}, err
	}
	return s.getQuote(ctx, s.sqlDB, id, "")
}

func (s *Store) getQuote(ctx context.Context, q queryer, id string, suffix string) (storage.Quote, error) {
	row := q.QueryRowContext(ctx, s.q(`SELECT `+quoteColumns+` FROM quotes WHERE id = ?`+suffix), id)
	quote, err := scanQuote(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Quote{}, storage.ErrNotFound
		}
		return storage.Quote{}, fmt.Errorf("get quote: %w", err)
	}
	return quote, nil
}

// ListQuotesForRFQ lists every quote on an RFQ, newest first.
func (s *Store) ListQuotesForRFQ(ctx context.Context, rfqID string) ([]storage.Quote, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listQuotes(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE rfq_id = ? ORDER BY created_at DESC, id DESC`, rfqID)
}

// ListQuotesByVendor lists a vendor's quotes, newest first, optionally for one RFQ.
func (s *Store) ListQuotesByVendor(ctx context.Context, vendorUserID string, rfqID string) ([]storage.Quote, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rfqID = strings.TrimSpace(rfqID)
	if rfqID == "" {
		return s.listQuotes(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE vendor_user_id = ? ORDER BY created_at DESC, id DESC`, vendorUserID)
	}
	return s.listQuotes(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE vendor_user_id = ? AND rfq_id = ? ORDER BY created_at DESC, id DESC`, vendorUserID, rfqID)
}

func (s *Store) listQuotes(ctx context.Context, query string, args ...any) ([]storage.Quote, error) {
	rows, err := s.sqlDB.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]storage.Quote, 0)
	for rows.Next() {
		quote, err := scanQuote(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	return quotes, nil
}

// WithdrawQuote moves the vendor's submitted quote to withdrawn.
func (s *Store) WithdrawQuote(ctx context.Context, quoteID string, vendorUserID string, now time.Time, outbox storage.QuoteEventFunc) (storage.Quote, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Quote{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Quote{}, fmt.Errorf("start withdraw transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	quote, err := s.getQuote(ctx, tx, quoteID, s.dialect.LockSuffix)
	if err != nil {
		return storage.Quote{}, err
	}
	if quote.VendorUserID != vendorUserID {
		return storage.Quote{}, storage.ErrNotFound
	}
	if quote.Status != domain.QuoteSubmitted {
		return storage.Quote{}, storage.ErrQuoteLocked
	}

	if _, err := tx.ExecContext(ctx, s.q(`
UPDATE quotes SET status = ?, updated_at = ? WHERE id = ? AND status = ?
`), string(domain.QuoteWithdrawn), toMicros(now), quote.ID, string(domain.QuoteSubmitted)); err != nil {
		return storage.Quote{}, fmt.Errorf("withdraw quote: %w", err)
	}
	quote.Status = domain.QuoteWithdrawn
	quote.UpdatedAt = fromMicros(toMicros(now))

	if outbox != nil {
		event, err := outbox(quote)
		if err != nil {
			return storage.Quote{}, fmt.Errorf("build quote outbox event: %w", err)
		}
		if err := s.enqueueOutbox(ctx, tx, event); err != nil {
			return storage.Quote{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Quote{}, fmt.Errorf("commit withdraw transaction: %w", err)
	}
	return quote, nil
}

// AcceptQuote runs the acceptance transaction. The checks run inside the
// transaction, and the unique index on orders.rfq_id decides any race that
// slips past them.
func (s *Store) AcceptQuote(ctx context.Context, params storage.AcceptQuoteParams) (storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Order{}, err
	}
	if strings.TrimSpace(params.OrderID) == "" || strings.TrimSpace(params.OrderNumber) == "" {
		return storage.Order{}, fmt.Errorf("order id and number are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Order{}, fmt.Errorf("start accept transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize acceptances per RFQ where the engine supports row locks.
	if s.dialect.LockSuffix != "" {
		var locked string
		err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM rfqs WHERE id = ?`+s.dialect.LockSuffix), params.RFQID).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.Order{}, storage.ErrNotFound
			}
			return storage.Order{}, fmt.Errorf("lock rfq: %w", err)
		}
	}

	quote, err := s.getQuote(ctx, tx, params.QuoteID, "")
	if err != nil {
		return storage.Order{}, err
	}
	if quote.RFQID != params.RFQID {
		return storage.Order{}, storage.ErrNotFound
	}

	var otherAccepted int
	if err := tx.QueryRowContext(ctx, s.q(`
SELECT COUNT(*) FROM quotes WHERE rfq_id = ? AND id <> ? AND status = ?
`), params.RFQID, params.QuoteID, string(domain.QuoteAccepted)).Scan(&otherAccepted); err != nil {
		return storage.Order{}, fmt.Errorf("count accepted quotes: %w", err)
	}
	if otherAccepted > 0 {
		return storage.Order{}, storage.ErrQuoteAlreadyAccepted
	}

	var existingOrders int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM orders WHERE rfq_id = ?`), params.RFQID).Scan(&existingOrders); err != nil {
		return storage.Order{}, fmt.Errorf("count orders: %w", err)
	}
	if existingOrders > 0 {
		return storage.Order{}, storage.ErrOrderExists
	}
	if quote.Status != domain.QuoteSubmitted {
		return storage.Order{}, storage.ErrQuoteNotSubmitted
	}

	now := toMicros(params.Now)
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE quotes SET status = ?, updated_at = ? WHERE id = ?`),
		string(domain.QuoteAccepted), now, quote.ID); err != nil {
		return storage.Order{}, fmt.Errorf("accept quote: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`
UPDATE quotes SET status = ?, updated_at = ? WHERE rfq_id = ? AND id <> ? AND status = ?
`), string(domain.QuoteRejected), now, params.RFQID, quote.ID, string(domain.QuoteSubmitted)); err != nil {
		return storage.Order{}, fmt.Errorf("reject sibling quotes: %w", err)
	}

	order := storage.Order{
		ID:               params.OrderID,
		OrderNumber:      params.OrderNumber,
		RFQID:            quote.RFQID,
		QuoteID:          quote.ID,
		BuyerUserID:      params.BuyerUserID,
		VendorUserID:     quote.VendorUserID,
		VendorCompany:    params.VendorCompany,
		Port:             params.Port,
		Currency:         quote.Currency,
		Items:            quote.Items,
		ShippingCost:     quote.ShippingCost,
		DiscountPct:      quote.DiscountPct,
		TaxPct:           quote.TaxPct,
		Subtotal:         quote.Subtotal,
		TaxAmount:        quote.TaxAmount,
		GrandTotal:       quote.GrandTotal,
		DeliveryTimeDays: quote.DeliveryTimeDays,
		Notes:            quote.Notes,
		Status:           domain.OrderConfirmed,
		CreatedAt:        fromMicros(now),
		UpdatedAt:        fromMicros(now),
	}
	if err := s.insertOrder(ctx, tx, order); err != nil {
		return storage.Order{}, err
	}

	if params.Outbox != nil {
		event, err := params.Outbox(order)
		if err != nil {
			return storage.Order{}, fmt.Errorf("build order outbox event: %w", err)
		}
		if err := s.enqueueOutbox(ctx, tx, event); err != nil {
			return storage.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return storage.Order{}, storage.ErrAlreadyExists
		}
		return storage.Order{}, fmt.Errorf("commit accept transaction: %w", err)
	}
	return order, nil
}

func scanQuote(scan rowScanner) (storage.Quote, error) {
	var (
		quote            storage.Quote
		itemsJSON        []byte
		deliveryTimeDays sql.NullInt64
		status           string
		createdAt        int64
		updatedAt        int64
	)
	if err := scan(
		&quote.ID,
		&quote.RFQID,
		&quote.VendorUserID,
		&quote.Currency,
		&itemsJSON,
		&quote.ShippingCost,
		&quote.DiscountPct,
		&quote.TaxPct,
		&quote.Subtotal,
		&quote.TaxAmount,
		&quote.GrandTotal,
		&deliveryTimeDays,
		&quote.Notes,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Quote{}, err
	}
	if err := decodeJSON(itemsJSON, &quote.Items); err != nil {
		return storage.Quote{}, fmt.Errorf("decode quote items: %w", err)
	}
	quote.DeliveryTimeDays = intPtr(deliveryTimeDays)
	parsed, err := domain.ParseQuoteStatus(status)
	if err != nil {
		return storage.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	quote.Status = parsed
	quote.CreatedAt = fromMicros(createdAt)
	quote.UpdatedAt = fromMicros(updatedAt)
	return quote, nil
}
