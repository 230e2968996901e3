package numbering

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// Repository persists per-bucket sequences in the invoice_sequences table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextNumberTx reserves the next sequence value for a bucket inside the
// caller's transaction. The upsert keeps the bucket row locked for the rest
// of the transaction, so concurrent allocators serialize on it and a rollback
// releases the value for reuse.
func (r *Repository) NextNumberTx(ctx context.Context, tx pgx.Tx, docType DocType, year *int, start int64) (int64, error) {
	const query = `
		INSERT INTO invoice_sequences (doc_type, year, last_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (doc_type, (COALESCE(year, -1)))
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number`

	var last int64
	if err := tx.QueryRow(ctx, query, string(docType), year, start).Scan(&last); err != nil {
		return 0, fmt.Errorf("numbering: next number for %s: %w (%v)", docType, shared.ErrStorage, err)
	}
	if last < start {
		return 0, fmt.Errorf("numbering: bucket for %s regressed below start %d: %w", docType, start, shared.ErrInvalidSequence)
	}
	return last, nil
}

// LastNumber reads the current high-water mark of a bucket, zero when the
// bucket does not exist yet.
func (r *Repository) LastNumber(ctx context.Context, docType DocType, year *int) (int64, error) {
	const query = `
		SELECT last_number FROM invoice_sequences
		WHERE doc_type = $1 AND COALESCE(year, -1) = COALESCE($2, -1)`

	var last int64
	err := r.pool.QueryRow(ctx, query, string(docType), year).Scan(&last)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("numbering: read bucket for %s: %w (%v)", docType, shared.ErrStorage, err)
	}
	return last, nil
}
