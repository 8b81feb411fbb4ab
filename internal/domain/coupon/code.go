package coupon

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/go-faster/errors"
)

const (
	// RewardPrefix marks coupons issued by the loyalty reward.
	RewardPrefix = "DSC"

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateRewardCode returns RewardPrefix followed by six random uppercase
// alphanumeric characters read from r.
func GenerateRewardCode(r io.Reader) (string, error) {
	var b strings.Builder
	b.Grow(len(RewardPrefix) + codeLength)
	b.WriteString(RewardPrefix)

	limit := big.NewInt(int64(len(codeAlphabet)))
	for range codeLength {
		n, err := rand.Int(r, limit)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func randomRewardCode() (string, error) {
	return GenerateRewardCode(rand.Reader)
}
