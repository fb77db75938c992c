package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoice statuses. Overdue is derived from the due date, not stored.
const (
	InvoiceStatusOpen = "open"
	InvoiceStatusPaid = "paid"
)

// ErrInvoiceAlreadyPaid is returned when marking a paid invoice paid again.
var ErrInvoiceAlreadyPaid = errors.New("sqlite: invoice already paid")

// Invoice is one billing period charge against an apartment. Amounts are
// stored in minor currency units.
type Invoice struct {
	ID          string        `json:"id"`
	ApartmentID string        `json:"apartment_id"`
	ResidentID  string        `json:"resident_id"`
	Period      string        `json:"period"`
	Status      string        `json:"status"`
	TotalCents  int64         `json:"total_cents"`
	DueAt       time.Time     `json:"due_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	Items       []InvoiceItem `json:"items,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// InvoiceItem is one labelled line on an invoice.
type InvoiceItem struct {
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
}

// Overdue reports whether the invoice is unpaid past its due date.
func (i Invoice) Overdue(now time.Time) bool {
	return i.Status == InvoiceStatusOpen && now.After(i.DueAt)
}

// InvoiceFilter narrows ListInvoices. Zero values match everything.
type InvoiceFilter struct {
	ResidentID string
	Status     string
	Period     string
}

// CreateInvoice inserts an invoice with its line items in one transaction.
// The total is computed from the items.
func (s *Store) CreateInvoice(ctx context.Context, apartmentID, residentID, period string, dueAt time.Time, items []InvoiceItem) (Invoice, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return Invoice{}, fmt.Errorf("sqlite: invoice period is required")
	}
	if len(items) == 0 {
		return Invoice{}, fmt.Errorf("sqlite: invoice needs at least one item")
	}
	var total int64
	for _, item := range items {
		if strings.TrimSpace(item.Label) == "" {
			return Invoice{}, fmt.Errorf("sqlite: invoice item label is required")
		}
		if item.AmountCents < 0 {
			return Invoice{}, fmt.Errorf("sqlite: invoice item amount must not be negative")
		}
		total += item.AmountCents
	}

	now := time.Now().UTC()
	invoice := Invoice{
		ID:          uuid.NewString(),
		ApartmentID: apartmentID,
		ResidentID:  residentID,
		Period:      period,
		Status:      InvoiceStatusOpen,
		TotalCents:  total,
		DueAt:       dueAt.UTC().Truncate(time.Millisecond),
		Items:       items,
		CreatedAt:   now.Truncate(time.Millisecond),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Invoice{}, fmt.Errorf("sqlite: begin invoice write: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO invoices (id, apartment_id, resident_id, period, status, total_cents, due_at, paid_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		invoice.ID, invoice.ApartmentID, invoice.ResidentID, invoice.Period,
		invoice.Status, invoice.TotalCents, toMillis(invoice.DueAt),
		toMillis(now), toMillis(now),
	); err != nil {
		_ = tx.Rollback()
		return Invoice{}, fmt.Errorf("sqlite: insert invoice: %w", err)
	}
	for position, item := range items {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO invoice_items (invoice_id, position, label, amount_cents)
VALUES (?, ?, ?, ?)`,
			invoice.ID, position, item.Label, item.AmountCents,
		); err != nil {
			_ = tx.Rollback()
			return Invoice{}, fmt.Errorf("sqlite: insert invoice item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Invoice{}, fmt.Errorf("sqlite: commit invoice write: %w", err)
	}
	return invoice, nil
}

// GetInvoice loads one invoice with its line items.
func (s *Store) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, apartment_id, resident_id, period, status, total_cents, due_at, paid_at, created_at
FROM invoices WHERE id = ?`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT label, amount_cents FROM invoice_items WHERE invoice_id = ? ORDER BY position`, id)
	if err != nil {
		return Invoice{}, fmt.Errorf("sqlite: load invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.Label, &item.AmountCents); err != nil {
			return Invoice{}, fmt.Errorf("sqlite: scan invoice item: %w", err)
		}
		invoice.Items = append(invoice.Items, item)
	}
	return invoice, rows.Err()
}

// ListInvoices returns invoices matching the filter, newest first. Line items
// are not loaded; use GetInvoice for the full record.
func (s *Store) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	query := `
SELECT id, apartment_id, resident_id, period, status, total_cents, due_at, paid_at, created_at
FROM invoices WHERE 1=1`
	var args []any
	if filter.ResidentID != "" {
		query += " AND resident_id = ?"
		args = append(args, filter.ResidentID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Period != "" {
		query += " AND period = ?"
		args = append(args, filter.Period)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// MarkInvoicePaid transitions an open invoice to paid and records the time.
func (s *Store) MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) (Invoice, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE invoices SET status = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status = ?",
		InvoiceStatusPaid, toMillis(paidAt), time.Now().UTC().UnixMilli(), id, InvoiceStatusOpen)
	if err != nil {
		return Invoice{}, fmt.Errorf("sqlite: mark invoice paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Invoice{}, err
	}
	if affected == 0 {
		invoice, getErr := s.GetInvoice(ctx, id)
		if getErr != nil {
			return Invoice{}, getErr
		}
		if invoice.Status == InvoiceStatusPaid {
			return Invoice{}, ErrInvoiceAlreadyPaid
		}
		return Invoice{}, ErrNotFound
	}
	return s.GetInvoice(ctx, id)
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var invoice Invoice
	var dueAt, createdAt int64
	var paidAt sql.NullInt64
	err := row.Scan(&invoice.ID, &invoice.ApartmentID, &invoice.ResidentID,
		&invoice.Period, &invoice.Status, &invoice.TotalCents, &dueAt, &paidAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("sqlite: scan invoice: %w", err)
	}
	invoice.DueAt = fromMillis(dueAt)
	invoice.CreatedAt = fromMillis(createdAt)
	if paidAt.Valid {
		value := fromMillis(paidAt.Int64)
		invoice.PaidAt = &value
	}
	return invoice, nil
}
