package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// Repository runs the aggregate queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OpenInvoiceRow is one not-yet-settled invoice of a document side.
type OpenInvoiceRow struct {
	ID           int64
	Number       string
	CustomerID   *int64
	Counterparty string
	DueDate      time.Time
	Total        money.Money
	Paid         money.Money
}

// OpenInvoices returns non-cancelled, non-paid invoices of the given type.
func (r *Repository) OpenInvoices(ctx context.Context, invoiceType string) ([]OpenInvoiceRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, customer_id, COALESCE(supplier_name, ''), due_date,
		       total_with_vat::text, paid_amount::text
		FROM invoices
		WHERE type = $1 AND status NOT IN ('cancelled', 'paid')
		ORDER BY due_date, number`, invoiceType)
	if err != nil {
		return nil, fmt.Errorf("reporting: open invoices: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []OpenInvoiceRow
	for rows.Next() {
		var (
			row      OpenInvoiceRow
			totalStr string
			paidStr  string
		)
		if err := rows.Scan(&row.ID, &row.Number, &row.CustomerID, &row.Counterparty, &row.DueDate, &totalStr, &paidStr); err != nil {
			return nil, fmt.Errorf("reporting: scan open invoice: %w (%v)", shared.ErrStorage, err)
		}
		if row.Total, err = money.FromString(totalStr); err != nil {
			return nil, err
		}
		if row.Paid, err = money.FromString(paidStr); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DueRow is one open invoice keyed by its due date, feeding the cash-flow
// projection.
type DueRow struct {
	InvoiceType string
	DueDate     time.Time
	Total       money.Money
	Paid        money.Money
}

// OpenByDueDate returns open issued and received invoices falling due inside
// the window.
func (r *Repository) OpenByDueDate(ctx context.Context, from, to time.Time) ([]DueRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT type, due_date, total_with_vat::text, paid_amount::text
		FROM invoices
		WHERE type IN ('issued', 'received')
		  AND status IN ('unpaid', 'partial', 'overdue')
		  AND due_date BETWEEN $1 AND $2
		ORDER BY due_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("reporting: open by due date: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []DueRow
	for rows.Next() {
		var (
			row      DueRow
			totalStr string
			paidStr  string
		)
		if err := rows.Scan(&row.InvoiceType, &row.DueDate, &totalStr, &paidStr); err != nil {
			return nil, fmt.Errorf("reporting: scan due row: %w (%v)", shared.ErrStorage, err)
		}
		if row.Total, err = money.FromString(totalStr); err != nil {
			return nil, err
		}
		if row.Paid, err = money.FromString(paidStr); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeclarationLines aggregates non-cancelled invoice lines by document side
// and rate over the tax period.
func (r *Repository) DeclarationLines(ctx context.Context, p Period) ([]DeclarationLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.type, it.vat_rate::text,
		       COALESCE(SUM(it.total_without_vat), 0)::text,
		       COALESCE(SUM(it.total_vat), 0)::text
		FROM invoices i
		JOIN invoice_items it ON it.invoice_id = i.id
		WHERE i.tax_date BETWEEN $1 AND $2 AND i.status <> 'cancelled'
		GROUP BY i.type, it.vat_rate
		ORDER BY i.type, it.vat_rate`, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("reporting: declaration lines: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []DeclarationLine
	for rows.Next() {
		var (
			line    DeclarationLine
			rateStr string
			baseStr string
			vatStr  string
		)
		if err := rows.Scan(&line.InvoiceType, &rateStr, &baseStr, &vatStr); err != nil {
			return nil, fmt.Errorf("reporting: scan declaration line: %w (%v)", shared.ErrStorage, err)
		}
		if line.Rate, err = decimal.NewFromString(rateStr); err != nil {
			return nil, err
		}
		if line.Base, err = money.FromString(baseStr); err != nil {
			return nil, err
		}
		if line.VAT, err = money.FromString(vatStr); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// NumberRow pairs an invoice id with its document number.
type NumberRow struct {
	ID     int64
	Number string
}

// NumbersInWindow lists non-cancelled invoice numbers inside the issue-date
// window. The duplicate grouping happens in the service.
func (r *Repository) NumbersInWindow(ctx context.Context, p Period) ([]NumberRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number
		FROM invoices
		WHERE issue_date BETWEEN $1 AND $2 AND status <> 'cancelled'
		ORDER BY number, id`, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("reporting: numbers in window: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []NumberRow
	for rows.Next() {
		var row NumberRow
		if err := rows.Scan(&row.ID, &row.Number); err != nil {
			return nil, fmt.Errorf("reporting: scan number row: %w (%v)", shared.ErrStorage, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveDeclaration stores the computed declaration as a draft snapshot. A
// committed declaration for the same period rejects the overwrite.
func (r *Repository) SaveDeclaration(ctx context.Context, d *VATDeclaration) error {
	lines, err := json.Marshal(d.Lines)
	if err != nil {
		return fmt.Errorf("reporting: marshal declaration lines: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO vat_declarations (period_start, period_end, output_vat, input_vat, result, lines, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'draft')
		ON CONFLICT (period_start, period_end) DO UPDATE
		SET output_vat = EXCLUDED.output_vat,
		    input_vat = EXCLUDED.input_vat,
		    result = EXCLUDED.result,
		    lines = EXCLUDED.lines
		WHERE vat_declarations.status = 'draft'
		RETURNING id, status, created_at`,
		d.PeriodStart, d.PeriodEnd, d.OutputVAT, d.InputVAT, d.Result, lines,
	).Scan(&d.ID, &d.Status, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reporting: period %s already committed: %w", d.PeriodStart.Format("2006-01-02"), shared.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("reporting: save declaration: %w (%v)", shared.ErrStorage, err)
	}
	return nil
}

// CommitDeclaration finalizes a draft declaration.
func (r *Repository) CommitDeclaration(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vat_declarations SET status = 'committed' WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("reporting: commit declaration: %w (%v)", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reporting: declaration %d missing or already committed: %w", id, shared.ErrConflict)
	}
	return nil
}

// ListDeclarations returns stored declarations, newest period first.
func (r *Repository) ListDeclarations(ctx context.Context) ([]VATDeclaration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, period_start, period_end, output_vat::text, input_vat::text, result::text, lines, status, created_at
		FROM vat_declarations
		ORDER BY period_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("reporting: list declarations: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []VATDeclaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDeclaration(row pgx.Row) (*VATDeclaration, error) {
	var (
		d         VATDeclaration
		outputStr string
		inputStr  string
		resultStr string
		lines     []byte
	)
	err := row.Scan(&d.ID, &d.PeriodStart, &d.PeriodEnd, &outputStr, &inputStr, &resultStr, &lines, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("reporting: scan declaration: %w (%v)", shared.ErrStorage, err)
	}
	if d.OutputVAT, err = money.FromString(outputStr); err != nil {
		return nil, err
	}
	if d.InputVAT, err = money.FromString(inputStr); err != nil {
		return nil, err
	}
	if d.Result, err = money.FromString(resultStr); err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &d.Lines); err != nil {
			return nil, fmt.Errorf("reporting: unmarshal declaration lines: %w", err)
		}
	}
	return &d, nil
}
