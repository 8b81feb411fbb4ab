package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestTotalMinorUnits(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		want    int64
		wantErr error
	}{
		{
			name:  "single line",
			lines: []Line{{UnitPrice: d("50.00"), Quantity: 2}},
			want:  10000,
		},
		{
			name: "several lines",
			lines: []Line{
				{UnitPrice: d("6.50"), Quantity: 1},
				{UnitPrice: d("7"), Quantity: 3},
			},
			want: 2750,
		},
		{
			name:  "rounds per item before multiplying",
			lines: []Line{{UnitPrice: d("0.005"), Quantity: 3}},
			// round(0.5) = 1 cent, times 3.
			want: 3,
		},
		{
			name:  "float drift prone price",
			lines: []Line{{UnitPrice: d("19.99"), Quantity: 3}},
			want:  5997,
		},
		{
			name:  "free item",
			lines: []Line{{UnitPrice: d("0"), Quantity: 1}},
			want:  0,
		},
		{
			name:    "empty",
			lines:   nil,
			wantErr: ErrEmptyLines,
		},
		{
			name:    "zero quantity",
			lines:   []Line{{UnitPrice: d("1"), Quantity: 0}},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "negative price",
			lines:   []Line{{UnitPrice: d("-1"), Quantity: 1}},
			wantErr: ErrInvalidLine,
		},
		{
			name:  "largest unit amount",
			lines: []Line{{UnitPrice: d("999999.99"), Quantity: 2}},
			want:  199_999_998,
		},
		{
			name:    "unit amount above provider limit",
			lines:   []Line{{UnitPrice: d("1000000.00"), Quantity: 1}},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "huge unit price",
			lines:   []Line{{UnitPrice: d("1e17"), Quantity: 1000}},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "subtotal overflow",
			lines:   []Line{{UnitPrice: d("999999.99"), Quantity: math.MaxInt64 / 1000}},
			wantErr: ErrInvalidLine,
		},
		{
			name: "total overflow",
			lines: []Line{
				{UnitPrice: d("0.01"), Quantity: math.MaxInt64},
				{UnitPrice: d("0.01"), Quantity: 1},
			},
			wantErr: ErrAmountTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TotalMinorUnits(tt.lines)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(5000), ToMinorUnits(d("50")))
	assert.Equal(t, int64(1001), ToMinorUnits(d("10.005")))
	assert.True(t, d("100.00").Equal(FromMinorUnits(10000)))
	assert.Equal(t, "90.00", FromMinorUnits(9000).StringFixed(2))
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, int64(1000), PercentOf(10000, d("10")))
	assert.Equal(t, int64(0), PercentOf(10000, d("0")))
	assert.Equal(t, int64(10000), PercentOf(10000, d("100")))
	// 333 * 15% = 49.95 -> 50
	assert.Equal(t, int64(50), PercentOf(333, d("15")))
}

func genLine(t *rapid.T, label string) Line {
	cents := rapid.Int64Range(0, 1_000_000).Draw(t, label+"-cents")
	scale := rapid.Int32Range(2, 4).Draw(t, label+"-scale")
	// Prices with up to four decimal places exercise per-item rounding.
	price := decimal.New(cents, -scale)
	return Line{
		UnitPrice: price,
		Quantity:  rapid.IntRange(1, 50).Draw(t, label+"-qty"),
	}
}

func TestTotalMinorUnits_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n")
		lines := make([]Line, n)
		var want int64
		for i := range lines {
			lines[i] = genLine(t, "line")
			want += ToMinorUnits(lines[i].UnitPrice) * int64(lines[i].Quantity)
		}

		got, err := TotalMinorUnits(lines)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("total %d, want sum of rounded subtotals %d", got, want)
		}

		shuffled := rapid.Permutation(lines).Draw(t, "perm")
		again, err := TotalMinorUnits(shuffled)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != got {
			t.Fatalf("total depends on item order: %d vs %d", again, got)
		}
	})
}
