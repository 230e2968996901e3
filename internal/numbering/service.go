package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motoservis-erp/motoservis-erp/internal/platform/db"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// ProfileSource resolves the numbering configuration per document family.
// The settings store implements it.
type ProfileSource interface {
	NumberingProfile(ctx context.Context, docType DocType) (Profile, error)
}

// SequencePort reserves sequence values. Satisfied by Repository; tests
// substitute an in-memory counter.
type SequencePort interface {
	NextNumberTx(ctx context.Context, tx pgx.Tx, docType DocType, year *int, start int64) (int64, error)
	LastNumber(ctx context.Context, docType DocType, year *int) (int64, error)
}

// Service allocates rendered document numbers.
type Service struct {
	pool     *pgxpool.Pool
	seq      SequencePort
	profiles ProfileSource
}

// NewService builds a Service instance.
func NewService(pool *pgxpool.Pool, seq SequencePort, profiles ProfileSource) *Service {
	return &Service{pool: pool, seq: seq, profiles: profiles}
}

// AllocateTx allocates the next number for a document inside the caller's
// transaction. The invoice create path is the only regular caller; external
// imports may call it too.
func (s *Service) AllocateTx(ctx context.Context, tx pgx.Tx, docType DocType, date time.Time) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("numbering: doc type %q: %w", docType, shared.ErrValidation)
	}
	profile, err := s.profiles.NumberingProfile(ctx, docType)
	if err != nil {
		return "", err
	}
	number, err := s.seq.NextNumberTx(ctx, tx, docType, profile.BucketYear(date), profile.Start)
	if err != nil {
		return "", err
	}
	return Render(profile.Format, profile.Prefix, date, number)
}

// Preview renders the number the next allocation would produce without
// consuming a slot. Racy by nature; display use only.
func (s *Service) Preview(ctx context.Context, docType DocType, date time.Time) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("numbering: doc type %q: %w", docType, shared.ErrValidation)
	}
	profile, err := s.profiles.NumberingProfile(ctx, docType)
	if err != nil {
		return "", err
	}
	last, err := s.seq.LastNumber(ctx, docType, profile.BucketYear(date))
	if err != nil {
		return "", err
	}
	next := last + 1
	if next < profile.Start {
		next = profile.Start
	}
	return Render(profile.Format, profile.Prefix, date, next)
}

// Allocate allocates a number under its own transaction. Gaps arise when the
// surrounding document insert later fails; callers that need gap-free
// allocation must use AllocateTx inside the insert transaction.
func (s *Service) Allocate(ctx context.Context, docType DocType, date time.Time) (string, error) {
	var rendered string
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var txErr error
		rendered, txErr = s.AllocateTx(ctx, tx, docType, date)
		return txErr
	})
	if err != nil {
		return "", err
	}
	return rendered, nil
}
