package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/db"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// Repository persists payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type lockedInvoice struct {
	total     money.Money
	dueDate   time.Time
	cancelled bool
}

// lockInvoice takes the row lock that serializes concurrent payment
// mutations against the same invoice.
func lockInvoice(ctx context.Context, tx pgx.Tx, invoiceID int64) (lockedInvoice, error) {
	var (
		totalStr string
		li       lockedInvoice
		status   string
	)
	err := tx.QueryRow(ctx, `
		SELECT total_with_vat::text, due_date, status
		FROM invoices
		WHERE id = $1
		FOR UPDATE`, invoiceID).Scan(&totalStr, &li.dueDate, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return li, fmt.Errorf("payments: invoice %d: %w", invoiceID, shared.ErrUnknownInvoice)
	}
	if err != nil {
		return li, fmt.Errorf("payments: lock invoice: %w (%v)", shared.ErrStorage, err)
	}
	if li.total, err = money.FromString(totalStr); err != nil {
		return li, fmt.Errorf("payments: lock invoice: %w", err)
	}
	li.cancelled = invoicing.Status(status) == invoicing.StatusCancelled
	return li, nil
}

func paidTotal(ctx context.Context, tx pgx.Tx, invoiceID int64) (money.Money, error) {
	var paidStr string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM payments
		WHERE invoice_id = $1`, invoiceID).Scan(&paidStr)
	if err != nil {
		return money.Zero(), fmt.Errorf("payments: sum payments: %w (%v)", shared.ErrStorage, err)
	}
	return money.FromString(paidStr)
}

func persistInvoiceState(ctx context.Context, tx pgx.Tx, invoiceID int64, paid money.Money, status invoicing.Status) error {
	_, err := tx.Exec(ctx, `
		UPDATE invoices
		SET paid_amount = $2, status = $3, updated_at = now()
		WHERE id = $1`, invoiceID, paid, string(status))
	if err != nil {
		return fmt.Errorf("payments: persist invoice state: %w (%v)", shared.ErrStorage, err)
	}
	return nil
}

// Record inserts a payment and rebuilds the invoice paid state in one
// transaction. Cancelled invoices reject new payments.
func (r *Repository) Record(ctx context.Context, p *Payment, derive StatusFn) (money.Money, invoicing.Status, error) {
	var (
		paid   money.Money
		status invoicing.Status
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		inv, err := lockInvoice(ctx, tx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.cancelled {
			return fmt.Errorf("payments: invoice %d: %w", p.InvoiceID, shared.ErrInvoiceCancelled)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO payments (invoice_id, amount, payment_date, method, note, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			p.InvoiceID, p.Amount, p.PaymentDate, nullStr(p.Method), nullStr(p.Note), p.CreatedBy,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("payments: insert payment: %w (%v)", shared.ErrStorage, err)
		}

		if paid, err = paidTotal(ctx, tx, p.InvoiceID); err != nil {
			return err
		}
		status = derive(paid, inv.total, inv.dueDate, false)
		return persistInvoiceState(ctx, tx, p.InvoiceID, paid, status)
	})
	if err != nil {
		return money.Zero(), "", err
	}
	return paid, status, nil
}

// Delete removes a payment and rebuilds the invoice paid state in the same
// transaction, restoring unpaid or overdue when the last payment goes.
func (r *Repository) Delete(ctx context.Context, paymentID int64, derive StatusFn) (int64, money.Money, invoicing.Status, error) {
	var (
		invoiceID int64
		paid      money.Money
		status    invoicing.Status
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT invoice_id FROM payments WHERE id = $1`, paymentID).Scan(&invoiceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payments: payment %d: %w", paymentID, shared.ErrUnknownPayment)
		}
		if err != nil {
			return fmt.Errorf("payments: load payment: %w (%v)", shared.ErrStorage, err)
		}

		inv, err := lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, paymentID); err != nil {
			return fmt.Errorf("payments: delete payment: %w (%v)", shared.ErrStorage, err)
		}

		if paid, err = paidTotal(ctx, tx, invoiceID); err != nil {
			return err
		}
		status = derive(paid, inv.total, inv.dueDate, inv.cancelled)
		return persistInvoiceState(ctx, tx, invoiceID, paid, status)
	})
	if err != nil {
		return 0, money.Zero(), "", err
	}
	return invoiceID, paid, status, nil
}

// Recalculate rebuilds paid_amount and status of one invoice from the
// payment sum, without touching payments.
func (r *Repository) Recalculate(ctx context.Context, invoiceID int64, derive StatusFn) (money.Money, invoicing.Status, error) {
	var (
		paid   money.Money
		status invoicing.Status
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		inv, err := lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if paid, err = paidTotal(ctx, tx, invoiceID); err != nil {
			return err
		}
		status = derive(paid, inv.total, inv.dueDate, inv.cancelled)
		return persistInvoiceState(ctx, tx, invoiceID, paid, status)
	})
	if err != nil {
		return money.Zero(), "", err
	}
	return paid, status, nil
}

// ListForInvoice returns the payments of one invoice, oldest first.
func (r *Repository) ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount::text, payment_date, COALESCE(method, ''), COALESCE(note, ''), created_by, created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY payment_date, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p         Payment
			amountStr string
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &amountStr, &p.PaymentDate, &p.Method, &p.Note, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("payments: scan: %w (%v)", shared.ErrStorage, err)
		}
		if p.Amount, err = money.FromString(amountStr); err != nil {
			return nil, fmt.Errorf("payments: scan amount: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
