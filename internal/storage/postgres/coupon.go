package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

const couponColumns = `user_id, code, discount, active, expires_at, created_at`

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Codes are stored upper-cased. Lookups compare upper(code) so rows written
// before normalization still match.

// FindActive returns coupon.ErrNotFound when no active coupon with the code
// belongs to userID. Expiration is checked by the caller.
func (r *CouponRepository) FindActive(ctx context.Context, code, userID string) (*coupon.Coupon, error) {
	code = coupon.NormalizeCode(code)
	row := r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 AND upper(code) = $2 AND active`,
		userID, code)

	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return c, nil
}

// Create normalizes c.Code, inserts the coupon and fills CreatedAt. A zero
// ExpiresAt is stored as NULL.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)

	var expires *time.Time
	if !c.ExpiresAt.IsZero() {
		expires = &c.ExpiresAt
	}
	var created *time.Time
	if !c.CreatedAt.IsZero() {
		created = &c.CreatedAt
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (user_id, code, discount, active, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		 RETURNING created_at`,
		c.UserID, c.Code, c.Discount, c.Active, expires, created,
	).Scan(&c.CreatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Deactivate flips an active coupon in a single conditional update.
func (r *CouponRepository) Deactivate(ctx context.Context, code, userID string) (bool, error) {
	code = coupon.NormalizeCode(code)
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET active = FALSE WHERE user_id = $1 AND upper(code) = $2 AND active`,
		userID, code)
	if err != nil {
		return false, fmt.Errorf("deactivating coupon %q: %w", code, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListActive returns active coupons of the user, newest first.
func (r *CouponRepository) ListActive(ctx context.Context, userID string) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 AND active ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return out, nil
}

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var (
		c       coupon.Coupon
		expires *time.Time
	)
	if err := row.Scan(&c.UserID, &c.Code, &c.Discount, &c.Active, &expires, &c.CreatedAt); err != nil {
		return nil, err
	}
	if expires != nil {
		c.ExpiresAt = *expires
	}
	return &c, nil
}
