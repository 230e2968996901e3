package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/numbering"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/db"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// AllocatorPort issues document numbers inside the repository's transaction
// so a failed insert rolls the reservation back with it.
type AllocatorPort interface {
	AllocateTx(ctx context.Context, tx pgx.Tx, docType numbering.DocType, date time.Time) (string, error)
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool      *pgxpool.Pool
	allocator AllocatorPort
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, allocator AllocatorPort) *Repository {
	return &Repository{pool: pool, allocator: allocator}
}

const invoiceColumns = `
	id, number, type, customer_id, supplier_name, order_id, credit_note_for,
	issue_date, due_date, tax_date, payment_method,
	variable_symbol, constant_symbol, specific_symbol, note,
	total_without_vat::text, total_vat::text, total_with_vat::text, paid_amount::text,
	status, created_by, created_at, updated_at`

// Create persists an invoice with its lines in one transaction, allocating
// the document number when the caller left it empty.
func (r *Repository) Create(ctx context.Context, inv *Invoice) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if inv.Number == "" {
			number, err := r.allocator.AllocateTx(ctx, tx, inv.Type.DocType(), inv.IssueDate)
			if err != nil {
				return err
			}
			inv.Number = number
		}

		const insert = `
			INSERT INTO invoices (
				number, type, customer_id, supplier_name, order_id, credit_note_for,
				issue_date, due_date, tax_date, payment_method,
				variable_symbol, constant_symbol, specific_symbol, note,
				total_without_vat, total_vat, total_with_vat, paid_amount,
				status, created_by, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW()
			)
			RETURNING id, created_at, updated_at`

		err := tx.QueryRow(ctx, insert,
			inv.Number, string(inv.Type), inv.CustomerID, nullStr(inv.SupplierName),
			inv.OrderID, inv.CreditNoteFor,
			inv.IssueDate, inv.DueDate, inv.TaxDate, inv.PaymentMethod,
			nullStr(inv.VariableSymbol), nullStr(inv.ConstantSymbol), nullStr(inv.SpecificSymbol), nullStr(inv.Note),
			inv.TotalWithoutVAT, inv.TotalVAT, inv.TotalWithVAT, inv.PaidAmount,
			string(inv.Status), inv.CreatedBy,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("invoicing: number %s already taken: %w", inv.Number, shared.ErrConflict)
			}
			return fmt.Errorf("invoicing: insert invoice: %w (%v)", shared.ErrStorage, err)
		}

		return r.insertLines(ctx, tx, inv.ID, inv.Lines)
	})
	if err != nil {
		return err
	}
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
	}
	return nil
}

func (r *Repository) insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []Line) error {
	const insert = `
		INSERT INTO invoice_items (
			invoice_id, item_name, quantity, unit, price_per_unit, vat_rate,
			total_without_vat, total_vat, total_with_vat, warehouse_item_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	for i := range lines {
		line := &lines[i]
		err := tx.QueryRow(ctx, insert,
			invoiceID, line.Name, line.Quantity, nullStr(line.Unit),
			line.UnitPrice, line.VATRate,
			line.TotalWithoutVAT, line.TotalVAT, line.TotalWithVAT,
			line.WarehouseItemID,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("invoicing: insert line %d: %w (%v)", i+1, shared.ErrStorage, err)
		}
	}
	return nil
}

// Get loads an invoice with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("invoicing: invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	if err != nil {
		return nil, err
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (r *Repository) listLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	const query = `
		SELECT id, invoice_id, item_name, quantity::text, unit,
			price_per_unit::text, vat_rate::text,
			total_without_vat::text, total_vat::text, total_with_vat::text,
			warehouse_item_id
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list lines: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			line             Line
			unit             pgtype.Text
			quantity, rate   string
			base, tax, gross string
			unitPrice        string
			warehouseItemID  pgtype.Int8
		)
		err := rows.Scan(
			&line.ID, &line.InvoiceID, &line.Name, &quantity, &unit,
			&unitPrice, &rate, &base, &tax, &gross, &warehouseItemID,
		)
		if err != nil {
			return nil, fmt.Errorf("invoicing: scan line: %w (%v)", shared.ErrStorage, err)
		}
		if line.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invoicing: line %d quantity: %w", line.ID, shared.ErrInvalidAmount)
		}
		if line.VATRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("invoicing: line %d vat rate: %w", line.ID, shared.ErrInvalidVatRate)
		}
		if line.UnitPrice, err = money.FromString(unitPrice); err != nil {
			return nil, err
		}
		if line.TotalWithoutVAT, err = money.FromString(base); err != nil {
			return nil, err
		}
		if line.TotalVAT, err = money.FromString(tax); err != nil {
			return nil, err
		}
		if line.TotalWithVAT, err = money.FromString(gross); err != nil {
			return nil, err
		}
		line.Unit = unit.String
		if warehouseItemID.Valid {
			line.WarehouseItemID = &warehouseItemID.Int64
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns invoices matching the filter plus the unpaginated match count.
// Lines are not loaded. Ordering: issue_date desc, number desc.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Invoice, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Type != "" {
		where += " AND type = " + arg(string(f.Type))
	}
	if f.Status != "" {
		where += " AND status = " + arg(string(f.Status))
	}
	if f.CustomerID > 0 {
		where += " AND customer_id = " + arg(f.CustomerID)
	}
	if f.Counterparty != "" {
		where += " AND supplier_name ILIKE " + arg("%"+f.Counterparty+"%")
	}
	if !f.IssuedFrom.IsZero() {
		where += " AND issue_date >= " + arg(f.IssuedFrom)
	}
	if !f.IssuedTo.IsZero() {
		where += " AND issue_date <= " + arg(f.IssuedTo)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoicing: count: %w (%v)", shared.ErrStorage, err)
	}

	query := `SELECT` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY issue_date DESC, number DESC`
	if f.PerPage > 0 {
		query += " LIMIT " + arg(f.PerPage)
		if f.Page > 1 {
			query += " OFFSET " + arg((f.Page-1)*f.PerPage)
		}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoicing: list: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

// Update rewrites the header and derived totals; when replaceLines is true
// the line set is replaced wholesale within the same transaction.
func (r *Repository) Update(ctx context.Context, inv *Invoice, replaceLines bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const update = `
			UPDATE invoices SET
				customer_id = $2, supplier_name = $3, order_id = $4,
				issue_date = $5, due_date = $6, tax_date = $7, payment_method = $8,
				variable_symbol = $9, constant_symbol = $10, specific_symbol = $11, note = $12,
				total_without_vat = $13, total_vat = $14, total_with_vat = $15,
				paid_amount = $16, status = $17, updated_at = NOW()
			WHERE id = $1`

		tag, err := tx.Exec(ctx, update,
			inv.ID, inv.CustomerID, nullStr(inv.SupplierName), inv.OrderID,
			inv.IssueDate, inv.DueDate, inv.TaxDate, inv.PaymentMethod,
			nullStr(inv.VariableSymbol), nullStr(inv.ConstantSymbol), nullStr(inv.SpecificSymbol), nullStr(inv.Note),
			inv.TotalWithoutVAT, inv.TotalVAT, inv.TotalWithVAT,
			inv.PaidAmount, string(inv.Status),
		)
		if err != nil {
			return fmt.Errorf("invoicing: update invoice %d: %w (%v)", inv.ID, shared.ErrStorage, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("invoicing: invoice %d: %w", inv.ID, shared.ErrUnknownInvoice)
		}

		if !replaceLines {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return fmt.Errorf("invoicing: clear lines: %w (%v)", shared.ErrStorage, err)
		}
		return r.insertLines(ctx, tx, inv.ID, inv.Lines)
	})
}

// SetStatus persists a derived status value.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("invoicing: set status: %w (%v)", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoicing: invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	return nil
}

// Delete removes an invoice; lines cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("invoicing: delete invoice %d: %w (%v)", id, shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoicing: invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	return nil
}

// PaymentCount counts payments attached to the invoice.
func (r *Repository) PaymentCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE invoice_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("invoicing: count payments: %w (%v)", shared.ErrStorage, err)
	}
	return count, nil
}

// PaymentsTotal sums committed payments for the invoice.
func (r *Repository) PaymentsTotal(ctx context.Context, id int64) (money.Money, error) {
	var raw string
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM payments WHERE invoice_id = $1`, id).Scan(&raw)
	if err != nil {
		return money.Zero(), fmt.Errorf("invoicing: sum payments: %w (%v)", shared.ErrStorage, err)
	}
	return money.FromString(raw)
}

// ListIDs returns every invoice id, oldest first. Used by the recompute
// sweep.
func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM invoices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list ids: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("invoicing: scan id: %w (%v)", shared.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CommittedDeclarationCovers reports whether a committed VAT declaration
// period contains the given tax date.
func (r *Repository) CommittedDeclarationCovers(ctx context.Context, taxDate time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vat_declarations
			WHERE status = 'committed' AND $1 BETWEEN period_start AND period_end
		)`, taxDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("invoicing: declaration lookup: %w (%v)", shared.ErrStorage, err)
	}
	return exists, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var (
		inv                                 Invoice
		invType, status                     string
		customerID, orderID, creditNoteFor  pgtype.Int8
		createdBy                           pgtype.Int8
		supplierName, varSym, conSym, spSym pgtype.Text
		note                                pgtype.Text
		base, tax, gross, paid              string
	)
	err := row.Scan(
		&inv.ID, &inv.Number, &invType, &customerID, &supplierName, &orderID, &creditNoteFor,
		&inv.IssueDate, &inv.DueDate, &inv.TaxDate, &inv.PaymentMethod,
		&varSym, &conSym, &spSym, &note,
		&base, &tax, &gross, &paid,
		&status, &createdBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("invoicing: scan invoice: %w (%v)", shared.ErrStorage, err)
	}

	inv.Type = InvoiceType(invType)
	inv.Status = Status(status)
	if customerID.Valid {
		inv.CustomerID = &customerID.Int64
	}
	if orderID.Valid {
		inv.OrderID = &orderID.Int64
	}
	if creditNoteFor.Valid {
		inv.CreditNoteFor = &creditNoteFor.Int64
	}
	if createdBy.Valid {
		inv.CreatedBy = &createdBy.Int64
	}
	inv.SupplierName = supplierName.String
	inv.VariableSymbol = varSym.String
	inv.ConstantSymbol = conSym.String
	inv.SpecificSymbol = spSym.String
	inv.Note = note.String

	if inv.TotalWithoutVAT, err = money.FromString(base); err != nil {
		return nil, err
	}
	if inv.TotalVAT, err = money.FromString(tax); err != nil {
		return nil, err
	}
	if inv.TotalWithVAT, err = money.FromString(gross); err != nil {
		return nil, err
	}
	if inv.PaidAmount, err = money.FromString(paid); err != nil {
		return nil, err
	}
	return &inv, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
