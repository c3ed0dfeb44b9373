package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

const rfqColumns = `
	id,
	buyer_user_id,
	title,
	buyer_company,
	port,
	deadline_days,
	budget_min,
	budget_max,
	items_json,
	tags_json,
	terms_json,
	created_at`

// CreateRFQ persists a new RFQ.
func (s *Store) CreateRFQ(ctx context.Context, rfq storage.RFQ) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(rfq.ID) == "" {
		return fmt.Errorf("rfq id is required")
	}

	items, err := encodeJSON(rfq.Items)
	if err != nil {
		return fmt.Errorf("encode rfq items: %w", err)
	}
	tags := rfq.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return fmt.Errorf("encode rfq tags: %w", err)
	}
	terms, err := encodeJSON(rfq.Terms)
	if err != nil {
		return fmt.Errorf("encode rfq terms: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, s.q(`
INSERT INTO rfqs (`+rfqColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`),
		rfq.ID,
		rfq.BuyerUserID,
		rfq.Title,
		rfq.BuyerCompany,
		rfq.Port,
		nullInt(rfq.DeadlineDays),
		nullMoney(rfq.BudgetMin),
		nullMoney(rfq.BudgetMax),
		items,
		tagsJSON,
		terms,
		toMicros(rfq.CreatedAt),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert rfq: %w", err)
	}
	return nil
}

// GetRFQ returns one RFQ by id.
func (s *Store) GetRFQ(ctx context.Context, id string) (storage.RFQ, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RFQ{}, err
	}
	return getRFQ(ctx, s.sqlDB, s.q(`SELECT `+rfqColumns+` FROM rfqs WHERE id = ?`), id)
}

func getRFQ(ctx context.Context, q queryer, query string, id string) (storage.RFQ, error) {
	rfq, err := scanRFQ(q.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RFQ{}, storage.ErrNotFound
		}
		return storage.RFQ{}, fmt.Errorf("get rfq: %w", err)
	}
	return rfq, nil
}

// ListRFQs lists RFQs newest first.
func (s *Store) ListRFQs(ctx context.Context, query storage.RFQQuery) ([]storage.RFQ, error) {
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
	if len(query.Ports) > 0 {
		where = append(where, "LOWER(port) IN ("+placeholders(len(query.Ports))+")")
		for _, port := range query.Ports {
			args = append(args, strings.ToLower(strings.TrimSpace(port)))
		}
	}

	stmt := `SELECT ` + rfqColumns + ` FROM rfqs`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at DESC, id DESC"

	rows, err := s.sqlDB.QueryContext(ctx, s.q(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("list rfqs: %w", err)
	}
	defer rows.Close()

	rfqs := make([]storage.RFQ, 0)
	for rows.Next() {
		rfq, err := scanRFQ(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rfq: %w", err)
		}
		rfqs = append(rfqs, rfq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rfqs: %w", err)
	}
	return rfqs, nil
}

type rowScanner func(dest ...any) error

func scanRFQ(scan rowScanner) (storage.RFQ, error) {
	var (
		rfq          storage.RFQ
		deadlineDays sql.NullInt64
		budgetMin    decimal.NullDecimal
		budgetMax    decimal.NullDecimal
		itemsJSON    []byte
		tagsJSON     []byte
		termsJSON    []byte
		createdAt    int64
	)
	if err := scan(
		&rfq.ID,
		&rfq.BuyerUserID,
		&rfq.Title,
		&rfq.BuyerCompany,
		&rfq.Port,
		&deadlineDays,
		&budgetMin,
		&budgetMax,
		&itemsJSON,
		&tagsJSON,
		&termsJSON,
		&createdAt,
	); err != nil {
		return storage.RFQ{}, err
	}
	if err := decodeJSON(itemsJSON, &rfq.Items); err != nil {
		return storage.RFQ{}, fmt.Errorf("decode rfq items: %w", err)
	}
	if err := decodeJSON(tagsJSON, &rfq.Tags); err != nil {
		return storage.RFQ{}, fmt.Errorf("decode rfq tags: %w", err)
	}
	if err := decodeJSON(termsJSON, &rfq.Terms); err != nil {
		return storage.RFQ{}, fmt.Errorf("decode rfq terms: %w", err)
	}
	rfq.DeadlineDays = intPtr(deadlineDays)
	rfq.BudgetMin = budgetMin
	rfq.BudgetMax = budgetMax
	rfq.CreatedAt = fromMicros(createdAt)
	return rfq, nil
}
