package checkout

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// PendingVersion is the current PendingCheckout schema version. Version 1
// stored the whole product list under a single "products" key; version 2
// splits it across "products_0".."products_N".
const PendingVersion = 2

// Metadata keys of the serialized PendingCheckout.
const (
	metaVersion     = "v"
	metaUserID      = "userId"
	metaCouponCode  = "couponCode"
	metaProducts    = "products"
	metaProductsPfx = "products_"
)

// Provider metadata limits: 50 keys per session and 500 characters per
// value.
const (
	maxMetadataKeys  = 50
	maxMetadataValue = 500
	maxProductChunks = maxMetadataKeys - 3
)

// PendingCheckout is everything needed to create an order once the session
// is paid. It travels with the provider session as metadata.
type PendingCheckout struct {
	Version    int
	UserID     string
	CouponCode string
	Products   []PendingProduct
}

// PendingProduct is a product snapshot taken when the session was built.
type PendingProduct struct {
	ID       string
	Quantity int
	Price    decimal.Decimal
}

func newPendingCheckout(userID, couponCode string, items []cart.LineItem) *PendingCheckout {
	products := make([]PendingProduct, len(items))
	for i, it := range items {
		products[i] = PendingProduct{ID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	return &PendingCheckout{
		Version:    PendingVersion,
		UserID:     userID,
		CouponCode: couponCode,
		Products:   products,
	}
}

// Metadata encodes p as provider metadata. The product list is split into
// chunks that fit the per-value limit. A cart that needs more chunks than
// the provider accepts is rejected with ErrInvalidCart.
func (p *PendingCheckout) Metadata() (map[string]string, error) {
	var e jx.Encoder
	e.ArrStart()
	for _, pr := range p.Products {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(pr.ID)
		e.FieldStart("quantity")
		e.Int(pr.Quantity)
		e.FieldStart("price")
		e.Num(jx.Num(pr.Price.String()))
		e.ObjEnd()
	}
	e.ArrEnd()

	chunks := splitRunes(e.String(), maxMetadataValue)
	if len(chunks) > maxProductChunks {
		return nil, errors.Wrapf(ErrInvalidCart, "cart needs %d metadata chunks, limit is %d", len(chunks), maxProductChunks)
	}

	md := map[string]string{
		metaVersion:    strconv.Itoa(p.Version),
		metaUserID:     p.UserID,
		metaCouponCode: p.CouponCode,
	}
	for i, c := range chunks {
		md[metaProductsPfx+strconv.Itoa(i)] = c
	}
	return md, nil
}

// splitRunes cuts s into pieces of at most n runes.
func splitRunes(s string, n int) []string {
	var out []string
	for s != "" {
		count, cut := 0, len(s)
		for i := range s {
			if count == n {
				cut = i
				break
			}
			count++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

// joinProducts reassembles the product list from numbered chunks, falling
// back to the single version 1 key.
func joinProducts(md map[string]string) string {
	var b strings.Builder
	for i := 0; i < maxMetadataKeys; i++ {
		c, ok := md[metaProductsPfx+strconv.Itoa(i)]
		if !ok {
			break
		}
		b.WriteString(c)
	}
	if b.Len() == 0 {
		return md[metaProducts]
	}
	return b.String()
}

// OrderItems converts the snapshot into order items.
func (p *PendingCheckout) OrderItems() []order.Item {
	items := make([]order.Item, len(p.Products))
	for i, pr := range p.Products {
		items[i] = order.Item{ProductID: pr.ID, Quantity: pr.Quantity, Price: pr.Price}
	}
	return items
}

// ParsePendingCheckout decodes metadata written by Metadata or by earlier
// versions of it. A missing version is read as version 1; newer versions are
// rejected. All failures
// wrap ErrInvalidSession.
func ParsePendingCheckout(md map[string]string) (*PendingCheckout, error) {
	p := &PendingCheckout{Version: 1}

	if v, ok := md[metaVersion]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, errors.Wrapf(ErrInvalidSession, "bad metadata version %q", v)
		}
		if n > PendingVersion {
			return nil, errors.Wrapf(ErrInvalidSession, "unsupported metadata version %d", n)
		}
		p.Version = n
	}

	p.UserID = md[metaUserID]
	if p.UserID == "" {
		return nil, errors.Wrap(ErrInvalidSession, "metadata has no user")
	}
	p.CouponCode = md[metaCouponCode]

	products, err := decodeProducts(joinProducts(md))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSession, "decode products: %s", err)
	}
	if len(products) == 0 {
		return nil, errors.Wrap(ErrInvalidSession, "metadata has no products")
	}
	p.Products = products
	return p, nil
}

func decodeProducts(raw string) ([]PendingProduct, error) {
	if raw == "" {
		return nil, nil
	}

	var out []PendingProduct
	d := jx.DecodeStr(raw)
	err := d.Arr(func(d *jx.Decoder) error {
		var pr PendingProduct
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				if err != nil {
					return errors.Wrap(err, "id")
				}
				pr.ID = v
			case "quantity":
				v, err := d.Int()
				if err != nil {
					return errors.Wrap(err, "quantity")
				}
				pr.Quantity = v
			case "price":
				v, err := decodeDecimal(d)
				if err != nil {
					return errors.Wrap(err, "price")
				}
				pr.Price = v
			default:
				return d.Skip()
			}
			return nil
		}); err != nil {
			return err
		}
		if pr.ID == "" || pr.Quantity <= 0 {
			return errors.Errorf("malformed product %q", pr.ID)
		}
		out = append(out, pr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.New("not a number")
	}
}
