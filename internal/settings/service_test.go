package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/numbering"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

type memorySettingsRepo struct {
	values map[string]string
	reads  int
}

func newMemorySettingsRepo() *memorySettingsRepo {
	return &memorySettingsRepo{values: make(map[string]string)}
}

func (r *memorySettingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	r.reads++
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *memorySettingsRepo) All(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for k, v := range r.values {
		out = append(out, Entry{Key: k, Value: v})
	}
	return out, nil
}

func (r *memorySettingsRepo) Set(ctx context.Context, key, value string) error {
	r.values[key] = value
	return nil
}

func TestGetFallsBackToDefaults(t *testing.T) {
	svc := NewService(newMemorySettingsRepo())
	ctx := context.Background()

	rate, err := svc.StandardVATRate(ctx)
	require.NoError(t, err)
	require.Equal(t, "21", rate.String())

	days, err := svc.DefaultDueDays(ctx)
	require.NoError(t, err)
	require.Equal(t, 14, days)

	freq, err := svc.VATFrequency(ctx)
	require.NoError(t, err)
	require.Equal(t, FrequencyMonthly, freq)
}

func TestGetCachesRepositoryReads(t *testing.T) {
	repo := newMemorySettingsRepo()
	repo.values[KeyDefaultDueDays] = "30"
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		days, err := svc.DefaultDueDays(ctx)
		require.NoError(t, err)
		require.Equal(t, 30, days)
	}
	require.Equal(t, 1, repo.reads)
}

func TestSetRefreshesCacheAndNotifies(t *testing.T) {
	repo := newMemorySettingsRepo()
	svc := NewService(repo)
	ctx := context.Background()

	var notified []string
	svc.Subscribe(func(key string) { notified = append(notified, key) })

	_, err := svc.Get(ctx, KeyDefaultDueDays)
	require.NoError(t, err)

	require.NoError(t, svc.Set(ctx, KeyDefaultDueDays, "7"))
	require.Equal(t, []string{KeyDefaultDueDays}, notified)

	days, err := svc.DefaultDueDays(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, days)
	require.Equal(t, "7", repo.values[KeyDefaultDueDays])
}

func TestSetValidatesValues(t *testing.T) {
	svc := NewService(newMemorySettingsRepo())
	ctx := context.Background()

	require.ErrorIs(t, svc.Set(ctx, KeyVATRateStandard, "150"), shared.ErrValidation)
	require.ErrorIs(t, svc.Set(ctx, KeyVATRateStandard, "-1"), shared.ErrValidation)
	require.ErrorIs(t, svc.Set(ctx, KeyDefaultDueDays, "-3"), shared.ErrValidation)
	require.ErrorIs(t, svc.Set(ctx, KeyIssuedInvoiceStart, "0"), shared.ErrValidation)
	require.ErrorIs(t, svc.Set(ctx, KeyVATFrequency, "weekly"), shared.ErrValidation)
	require.ErrorIs(t, svc.Set(ctx, "", "x"), shared.ErrValidation)

	require.NoError(t, svc.Set(ctx, KeyVATFrequency, "quarterly"))
	require.NoError(t, svc.Set(ctx, KeyPenaltyEnabled, "true"))
}

func TestNumberingProfile(t *testing.T) {
	repo := newMemorySettingsRepo()
	repo.values[KeyIssuedInvoiceFormat] = "INV-{YYYY}-{NUMBER:04d}"
	repo.values[KeyIssuedInvoiceStart] = "100"
	repo.values[KeyIssuedInvoiceResetYearly] = "false"
	svc := NewService(repo)
	ctx := context.Background()

	profile, err := svc.NumberingProfile(ctx, numbering.DocTypeIssued)
	require.NoError(t, err)
	require.Equal(t, "FV", profile.Prefix)
	require.Equal(t, "INV-{YYYY}-{NUMBER:04d}", profile.Format)
	require.Equal(t, int64(100), profile.Start)
	require.False(t, profile.ResetYearly)

	_, err = svc.NumberingProfile(ctx, numbering.DocType("quote"))
	require.ErrorIs(t, err, shared.ErrValidation)

	// defaults for the credit-note family
	profile, err = svc.NumberingProfile(ctx, numbering.DocTypeCreditNote)
	require.NoError(t, err)
	require.Equal(t, "DB{YYYY}{NUMBER:05d}", profile.Format)
	require.True(t, profile.ResetYearly)
}
