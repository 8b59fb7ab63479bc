// Package totp verifies the six-digit codes the customer's payment app derives
// from the device secret and the order id.
package totp

import (
	"encoding/base32"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/yuguanpei/vending-machine/internal/domain/payment"
)

const (
	period = 30
	digits = otp.DigitsSix
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Verifier accepts only the code of the current time step.
type Verifier struct {
	secret string
}

var _ payment.Verifier = (*Verifier)(nil)

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// OrderSecret is the key shared between the kiosk and the payer for one order,
// in the canonical base32 form the otp package expects. The payer reads
// "<secret>-<orderID>" as base32 text; OrderKey gives the bytes that yields.
func OrderSecret(secret, orderID string) string {
	return encoding.EncodeToString(OrderKey(secret + "-" + orderID))
}

// OrderKey decodes base32 text the way the payer's generator does: case is
// ignored, '=' is skipped, '0' and '1' read as 'O' and 'I', and any other
// symbol outside the alphabet counts as zero. A trailing partial byte is kept
// only when it has bits set.
func OrderKey(text string) []byte {
	var (
		out   = make([]byte, 0, len(text)*5/8+1)
		shift = 8
		carry = 0
	)
	for _, r := range strings.ToUpper(text) {
		if r == '=' {
			continue
		}
		sym := symbol(r)
		// Symbols outside the BMP are two UTF-16 units, each read as zero.
		for n := utf16.RuneLen(r); n > 0; n-- {
			shift -= 5
			switch {
			case shift > 0:
				carry |= sym << shift
			case shift < 0:
				out = append(out, byte(carry|sym>>-shift))
				shift += 8
				carry = (sym << shift) & 0xff
			default:
				out = append(out, byte(carry|sym))
				shift, carry = 8, 0
			}
			sym = 0
		}
	}
	if shift != 8 && carry != 0 {
		out = append(out, byte(carry))
	}
	return out
}

func symbol(r rune) int {
	switch r {
	case '0':
		return 14
	case '1':
		return 8
	}
	if i := strings.IndexRune(alphabet, r); i >= 0 {
		return i
	}
	return 0
}

func (v *Verifier) Verify(orderID, code string, at time.Time) (bool, error) {
	if v.secret == "" {
		return false, payment.ErrNoSecret
	}
	if len(code) != digits.Length() {
		return false, nil
	}
	return totp.ValidateCustom(code, OrderSecret(v.secret, orderID), at, totp.ValidateOpts{
		Period:    period,
		Skew:      0,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// Code computes the code for an order at a given instant, for tests and the test-channel tool.
func Code(secret, orderID string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(OrderSecret(secret, orderID), at, totp.ValidateOpts{
		Period:    period,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
