package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/numbering"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// RepositoryPort defines data access for settings.
type RepositoryPort interface {
	Get(ctx context.Context, key string) (string, bool, error)
	All(ctx context.Context) ([]Entry, error)
	Set(ctx context.Context, key, value string) error
}

// Listener is notified after a key changes. Consumers use it to invalidate
// derived data (report caches, recompute triggers).
type Listener func(key string)

// Service serves cached settings reads and notifies listeners on writes.
type Service struct {
	repo RepositoryPort

	mu        sync.RWMutex
	cache     map[string]string
	listeners []Listener
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, cache: make(map[string]string)}
}

// Subscribe registers a change listener. Not safe to call after the service
// starts serving writes from multiple goroutines.
func (s *Service) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Get returns the effective value of a key: cached value, stored value, or
// the documented default.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	if v, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	v, found, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		v = defaults[key]
	}

	s.mu.Lock()
	s.cache[key] = v
	s.mu.Unlock()
	return v, nil
}

// All merges stored entries over the defaults.
func (s *Service) All(ctx context.Context) ([]Entry, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(defaults)+len(stored))
	for k, v := range defaults {
		merged[k] = v
	}
	for _, e := range stored {
		merged[e.Key] = e.Value
	}
	entries := make([]Entry, 0, len(merged))
	for k, v := range merged {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return entries, nil
}

// Set persists a value, refreshes the cache, and fans out to listeners.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("settings: empty key: %w", shared.ErrValidation)
	}
	if err := validateValue(key, value); err != nil {
		return err
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	for _, l := range s.listeners {
		l(key)
	}
	return nil
}

func validateValue(key, value string) error {
	switch key {
	case KeyVATRateStandard, KeyVATRateReduced, KeyDefaultVATRate, KeyPenaltyRate:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("settings: %s must be a percent between 0 and 100: %w", key, shared.ErrValidation)
		}
	case KeyDefaultDueDays:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("settings: %s must be a non-negative integer: %w", key, shared.ErrValidation)
		}
	case KeyIssuedInvoiceStart, KeyReceivedInvoiceStart, KeyCreditNoteStart:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 1 {
			return fmt.Errorf("settings: %s must be a positive integer: %w", key, shared.ErrValidation)
		}
	case KeyIssuedInvoiceResetYearly, KeyReceivedInvoiceResetYearly, KeyCreditNoteResetYearly, KeyPenaltyEnabled:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("settings: %s must be a boolean: %w", key, shared.ErrValidation)
		}
	case KeyVATFrequency:
		switch strings.ToLower(value) {
		case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		default:
			return fmt.Errorf("settings: %s must be monthly, quarterly or yearly: %w", key, shared.ErrValidation)
		}
	}
	return nil
}

// --- Typed getters ---

func (s *Service) percent(ctx context.Context, key string) (decimal.Decimal, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settings: %s holds %q: %w", key, v, shared.ErrInvalidVatRate)
	}
	return d, nil
}

// StandardVATRate returns the primary VAT rate in percent units.
func (s *Service) StandardVATRate(ctx context.Context) (decimal.Decimal, error) {
	return s.percent(ctx, KeyVATRateStandard)
}

// ReducedVATRate returns the secondary VAT rate in percent units.
func (s *Service) ReducedVATRate(ctx context.Context) (decimal.Decimal, error) {
	return s.percent(ctx, KeyVATRateReduced)
}

// DefaultVATRate returns the default rate applied to new invoice lines.
func (s *Service) DefaultVATRate(ctx context.Context) (decimal.Decimal, error) {
	return s.percent(ctx, KeyDefaultVATRate)
}

// DefaultDueDays returns the offset added to issue_date when due_date is
// absent.
func (s *Service) DefaultDueDays(ctx context.Context) (int, error) {
	v, err := s.Get(ctx, KeyDefaultDueDays)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("settings: %s holds %q: %w", KeyDefaultDueDays, v, shared.ErrValidation)
	}
	return n, nil
}

// DefaultPaymentMethod returns the payment method preset for new invoices.
func (s *Service) DefaultPaymentMethod(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyDefaultPaymentMethod)
}

// PenaltyInfo exposes the informational late-payment penalty configuration.
// The core never accrues penalties.
func (s *Service) PenaltyInfo(ctx context.Context) (enabled bool, rate decimal.Decimal, err error) {
	v, err := s.Get(ctx, KeyPenaltyEnabled)
	if err != nil {
		return false, decimal.Zero, err
	}
	enabled, _ = strconv.ParseBool(v)
	rate, err = s.percent(ctx, KeyPenaltyRate)
	return enabled, rate, err
}

// VATFrequency returns the configured declaration frequency.
func (s *Service) VATFrequency(ctx context.Context) (string, error) {
	v, err := s.Get(ctx, KeyVATFrequency)
	if err != nil {
		return "", err
	}
	return strings.ToLower(v), nil
}

// NumberingProfile resolves the numbering configuration of a document family.
// Implements numbering.ProfileSource.
func (s *Service) NumberingProfile(ctx context.Context, docType numbering.DocType) (numbering.Profile, error) {
	keys, ok := numberingKeys[docType]
	if !ok {
		return numbering.Profile{}, fmt.Errorf("settings: no numbering profile for %q: %w", docType, shared.ErrValidation)
	}
	prefix, err := s.Get(ctx, keys[0])
	if err != nil {
		return numbering.Profile{}, err
	}
	format, err := s.Get(ctx, keys[1])
	if err != nil {
		return numbering.Profile{}, err
	}
	startRaw, err := s.Get(ctx, keys[2])
	if err != nil {
		return numbering.Profile{}, err
	}
	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 1 {
		return numbering.Profile{}, fmt.Errorf("settings: %s holds %q: %w", keys[2], startRaw, shared.ErrInvalidSequence)
	}
	resetRaw, err := s.Get(ctx, keys[3])
	if err != nil {
		return numbering.Profile{}, err
	}
	reset, err := strconv.ParseBool(resetRaw)
	if err != nil {
		return numbering.Profile{}, fmt.Errorf("settings: %s holds %q: %w", keys[3], resetRaw, shared.ErrValidation)
	}
	return numbering.Profile{Prefix: prefix, Format: format, Start: start, ResetYearly: reset}, nil
}
