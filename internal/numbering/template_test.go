package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

func TestRender(t *testing.T) {
	date := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		tmpl     string
		prefix   string
		number   int64
		expected string
	}{
		{"padded", "FV{YYYY}{NUMBER:05d}", "", 42, "FV202500042"},
		{"prefix", "{PREFIX}{YY}{MM}-{NUMBER}", "PF", 7, "PF2503-7"},
		{"unpadded", "{NUMBER}", "", 123, "123"},
		{"wider than pad", "{NUMBER:03d}", "", 12345, "12345"},
		{"no placeholders", "STATIC", "", 1, "STATIC"},
		{"first allocation", "FV{YYYY}{NUMBER:05d}", "", 1, "FV202500001"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.tmpl, tc.prefix, date, tc.number)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	date := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := Render("FV{WAT}", "", date, 1)
	require.ErrorIs(t, err, shared.ErrTemplate)

	_, err = Render("FV{NUMBER:5d}", "", date, 1)
	require.ErrorIs(t, err, shared.ErrTemplate)

	_, err = Render("FV{NUMBER:0xd}", "", date, 1)
	require.ErrorIs(t, err, shared.ErrTemplate)

	_, err = Render("FV{YYYY", "", date, 1)
	require.ErrorIs(t, err, shared.ErrTemplate)

	_, err = Render("FV{NUMBER}", "", date, -1)
	require.ErrorIs(t, err, shared.ErrInvalidSequence)
}

func TestBucketYear(t *testing.T) {
	date := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	yearly := Profile{ResetYearly: true}
	year := yearly.BucketYear(date)
	require.NotNil(t, year)
	require.Equal(t, 2025, *year)

	global := Profile{ResetYearly: false}
	require.Nil(t, global.BucketYear(date))
}
