package reporting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
)

type countingRepo struct {
	*memoryReportRepo
	declarationCalls int
}

func (r *countingRepo) DeclarationLines(ctx context.Context, p Period) ([]DeclarationLine, error) {
	r.declarationCalls++
	return r.memoryReportRepo.DeclarationLines(ctx, p)
}

func newCachedService(t *testing.T, repo RepositoryPort) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, cache, monthlyFrequency{})
	svc.WithNow(func() time.Time { return day(2025, time.June, 15) })
	return svc, cache
}

func TestDeclarationIsCached(t *testing.T) {
	inner := newMemoryReportRepo()
	inner.lines = []DeclarationLine{
		{InvoiceType: "issued", Rate: decimal.NewFromInt(21), Base: money.MustParse("1000.00"), VAT: money.MustParse("210.00")},
	}
	repo := &countingRepo{memoryReportRepo: inner}
	svc, _ := newCachedService(t, repo)
	ctx := context.Background()
	period := MonthlyPeriod(day(2025, time.June, 15))

	first, err := svc.Declaration(ctx, period)
	require.NoError(t, err)
	second, err := svc.Declaration(ctx, period)
	require.NoError(t, err)

	require.Equal(t, 1, repo.declarationCalls)
	require.Equal(t, first.OutputVAT.String(), second.OutputVAT.String())
}

func TestBumpInvalidatesCachedReads(t *testing.T) {
	inner := newMemoryReportRepo()
	inner.lines = []DeclarationLine{
		{InvoiceType: "issued", Rate: decimal.NewFromInt(21), Base: money.MustParse("1000.00"), VAT: money.MustParse("210.00")},
	}
	repo := &countingRepo{memoryReportRepo: inner}
	svc, cache := newCachedService(t, repo)
	ctx := context.Background()
	period := MonthlyPeriod(day(2025, time.June, 15))

	_, err := svc.Declaration(ctx, period)
	require.NoError(t, err)

	// A new invoice lands in the period; the write path bumps the version.
	inner.lines = append(inner.lines, DeclarationLine{
		InvoiceType: "issued", Rate: decimal.NewFromInt(12),
		Base: money.MustParse("300.00"), VAT: money.MustParse("36.00"),
	})
	require.NoError(t, cache.Bump(ctx))

	refreshed, err := svc.Declaration(ctx, period)
	require.NoError(t, err)
	require.Equal(t, 2, repo.declarationCalls)
	require.Equal(t, "246.00", refreshed.OutputVAT.String())
}
