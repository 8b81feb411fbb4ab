package checkout

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

func TestPendingCheckout_Metadata(t *testing.T) {
	p := newPendingCheckout("u1", "SAVE10", []cart.LineItem{
		{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("50.00")},
		{ProductID: "p\"2", Quantity: 1, Price: decimal.RequireFromString("0.99")},
	})

	md, err := p.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "2", md["v"])
	assert.Equal(t, "u1", md["userId"])
	assert.Equal(t, "SAVE10", md["couponCode"])
	assert.JSONEq(t, `[{"id":"p1","quantity":2,"price":50},{"id":"p\"2","quantity":1,"price":0.99}]`, md["products_0"])
	assert.NotContains(t, md, "products_1")

	got, err := ParsePendingCheckout(md)
	require.NoError(t, err)
	assert.Equal(t, PendingVersion, got.Version)
	require.Len(t, got.Products, 2)
	assert.Equal(t, `p"2`, got.Products[1].ID)
	assert.True(t, decimal.RequireFromString("0.99").Equal(got.Products[1].Price))

	items := got.OrderItems()
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestParsePendingCheckout(t *testing.T) {
	tests := []struct {
		name        string
		md          map[string]string
		wantErr     bool
		wantUser    string
		wantVersion int
	}{
		{
			name:        "legacy without version",
			md:          map[string]string{"userId": "u1", "products": `[{"id":"p1","quantity":2,"price":50.00}]`},
			wantUser:    "u1",
			wantVersion: 1,
		},
		{
			name:        "chunked products",
			md:          map[string]string{"v": "2", "userId": "u3", "products_0": `[{"id":"p1","qua`, "products_1": `ntity":1,"price":1}]`},
			wantUser:    "u3",
			wantVersion: 2,
		},
		{
			name:        "string price and unknown fields",
			md:          map[string]string{"v": "1", "userId": "u2", "products": `[{"id":"p1","quantity":1,"price":"12.30","name":"x"}]`, "extra": "y"},
			wantUser:    "u2",
			wantVersion: 1,
		},
		{name: "missing chunk", md: map[string]string{"v": "2", "userId": "u1", "products_0": `[{"id":"p1",`, "products_2": `"quantity":1,"price":1}]`}, wantErr: true},
		{name: "newer version", md: map[string]string{"v": "3", "userId": "u1", "products": `[{"id":"p1","quantity":1,"price":1}]`}, wantErr: true},
		{name: "bad version", md: map[string]string{"v": "x", "userId": "u1", "products": `[{"id":"p1","quantity":1,"price":1}]`}, wantErr: true},
		{name: "no user", md: map[string]string{"products": `[{"id":"p1","quantity":1,"price":1}]`}, wantErr: true},
		{name: "no products", md: map[string]string{"userId": "u1"}, wantErr: true},
		{name: "empty products", md: map[string]string{"userId": "u1", "products": `[]`}, wantErr: true},
		{name: "corrupt products", md: map[string]string{"userId": "u1", "products": `[{"id":`}, wantErr: true},
		{name: "zero quantity", md: map[string]string{"userId": "u1", "products": `[{"id":"p1","quantity":0,"price":1}]`}, wantErr: true},
		{name: "bool price", md: map[string]string{"userId": "u1", "products": `[{"id":"p1","quantity":1,"price":true}]`}, wantErr: true},
		{name: "nil metadata", md: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePendingCheckout(tt.md)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSession)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, got.UserID)
			assert.Equal(t, tt.wantVersion, got.Version)
			assert.NotEmpty(t, got.Products)
		})
	}
}

func TestPendingCheckout_MetadataChunks(t *testing.T) {
	items := make([]cart.LineItem, 30)
	for i := range items {
		items[i] = cart.LineItem{
			ProductID: "6651f0c2a8e4b9d3c7f1" + strconv.Itoa(1000+i),
			Quantity:  i + 1,
			Price:     decimal.RequireFromString("49.99"),
		}
	}
	// Multi-byte ids must not be split inside a rune.
	items[7].ProductID = strings.Repeat("żółć", 40)

	p := newPendingCheckout("u1", "", items)
	md, err := p.Metadata()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(md), 50)
	assert.Contains(t, md, "products_1")
	for k, v := range md {
		assert.LessOrEqual(t, len([]rune(v)), 500, k)
		assert.True(t, utf8.ValidString(v), k)
	}

	got, err := ParsePendingCheckout(md)
	require.NoError(t, err)
	assert.Equal(t, p.Products, got.Products)
}

func TestPendingCheckout_MetadataTooLarge(t *testing.T) {
	items := make([]cart.LineItem, 2000)
	for i := range items {
		items[i] = cart.LineItem{ProductID: "product-" + strconv.Itoa(i), Quantity: 1, Price: decimal.NewFromInt(1)}
	}

	_, err := newPendingCheckout("u1", "", items).Metadata()
	require.ErrorIs(t, err, ErrInvalidCart)
}
