package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

func TestFromString(t *testing.T) {
	m, err := FromString("1210.00")
	require.NoError(t, err)
	require.Equal(t, "1210.00", m.String())
	require.Equal(t, int64(121000), m.MinorUnits())

	m, err = FromString("-50.5")
	require.NoError(t, err)
	require.Equal(t, "-50.50", m.String())

	// half-up to cent
	m, err = FromString("0.005")
	require.NoError(t, err)
	require.Equal(t, "0.01", m.String())

	_, err = FromString("not-a-number")
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestFromFloatRejectsNonFinite(t *testing.T) {
	_, err := FromFloat(math.NaN())
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
	_, err = FromFloat(math.Inf(1))
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	m, err := FromFloat(199.999)
	require.NoError(t, err)
	require.Equal(t, "200.00", m.String())
}

func TestArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 drifts under binary floats; must be exact here.
	a := MustParse("0.10")
	b := MustParse("0.20")
	require.Equal(t, "0.30", a.Add(b).String())

	total := Zero()
	for i := 0; i < 1000; i++ {
		total = total.Add(MustParse("0.01"))
	}
	require.Equal(t, "10.00", total.String())

	require.Equal(t, "-10.00", total.Neg().String())
	require.Equal(t, "9.99", total.Sub(MustParse("0.01")).String())
}

func TestMulPercent(t *testing.T) {
	base := MustParse("1000.00")
	vat := base.MulPercent(decimal.NewFromInt(21))
	require.Equal(t, "210.00", vat.String())

	// rounding on the product, half-up
	vat = MustParse("0.10").MulPercent(decimal.NewFromInt(21))
	require.Equal(t, "0.02", vat.String())
}

func TestDiv(t *testing.T) {
	base, err := MustParse("1210.00").Div(decimal.NewFromFloat(1.21))
	require.NoError(t, err)
	require.Equal(t, "1000.00", base.String())

	_, err = MustParse("1.00").Div(decimal.Zero)
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestWithinCentOf(t *testing.T) {
	require.True(t, MustParse("10.00").WithinCentOf(MustParse("10.01")))
	require.True(t, MustParse("10.00").WithinCentOf(MustParse("9.99")))
	require.False(t, MustParse("10.00").WithinCentOf(MustParse("10.02")))
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Amount Money `json:"amount"`
	}
	out, err := json.Marshal(payload{Amount: MustParse("1796.00")})
	require.NoError(t, err)
	require.JSONEq(t, `{"amount":"1796.00"}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"246.00"}`), &in))
	require.Equal(t, "246.00", in.Amount.String())

	// bare numbers are tolerated on input
	require.NoError(t, json.Unmarshal([]byte(`{"amount":36}`), &in))
	require.Equal(t, "36.00", in.Amount.String())

	err = json.Unmarshal([]byte(`{"amount":"oops"}`), &in)
	require.True(t, errors.Is(err, shared.ErrInvalidAmount))
}

func TestScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("150.75"))
	require.Equal(t, "150.75", m.String())

	require.NoError(t, m.Scan([]byte("0")))
	require.True(t, m.IsZero())

	require.NoError(t, m.Scan(nil))
	require.True(t, m.IsZero())

	require.Error(t, m.Scan(struct{}{}))
}

func TestSum(t *testing.T) {
	got := Sum(MustParse("1000.00"), MustParse("300.00"), MustParse("250.00"))
	require.Equal(t, "1550.00", got.String())
	require.True(t, Sum().IsZero())
}
