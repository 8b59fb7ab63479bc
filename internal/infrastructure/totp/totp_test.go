package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuguanpei/vending-machine/internal/domain/payment"
)

func TestVerifyCurrentStepOnly(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 15, 0, time.UTC)
	code, err := Code("secret", "order-1", at)
	require.NoError(t, err)
	require.Len(t, code, 6)

	v := NewVerifier("secret")

	ok, err := v.Verify("order-1", code, at.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("order-1", code, at.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "previous step is not accepted")

	ok, err = v.Verify("order-2", code, at)
	require.NoError(t, err)
	assert.False(t, ok, "code is bound to the order")

	ok, err = NewVerifier("other").Verify("order-1", code, at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	v := NewVerifier("secret")
	for _, code := range []string{"", "12345", "1234567"} {
		ok, err := v.Verify("order-1", code, time.Now())
		require.NoError(t, err)
		assert.False(t, ok, code)
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	ok, err := NewVerifier("").Verify("order-1", "123456", time.Now())
	require.ErrorIs(t, err, payment.ErrNoSecret)
	assert.False(t, ok)
}

func TestOrderKeyDecodesLikeThePayer(t *testing.T) {
	assert.Equal(t, []byte("12345678901234567890"), OrderKey("GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"))
	assert.Equal(t, []byte("foo"), OrderKey("mzxw6==="))
	assert.Equal(t, []byte("foo"), OrderKey("MZXW6"))
	// '0' reads as 'O', '1' as 'I'.
	assert.Equal(t, []byte("r"), OrderKey("0I"))
	// Symbols outside the alphabet count as zero bits.
	assert.Equal(t, []byte("p"), OrderKey("O8"))
	assert.Empty(t, OrderKey("A"))
}

func TestOrderSecretIsUnpaddedBase32OfTheKey(t *testing.T) {
	s := OrderSecret("JBSWY3DPEHPK3PXP", "a1b2c3d4e5123456")
	assert.Equal(t, "JBSWY3DPEHPK3PXPAAIB2C3D4E5I23456A", s)
	assert.NotContains(t, s, "=")
}

func TestVerifyKnownAnswer(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 10, 0, time.UTC)
	v := NewVerifier("JBSWY3DPEHPK3PXP")

	ok, err := v.Verify("a1b2c3d4e5123456", "607191", at)
	require.NoError(t, err)
	assert.True(t, ok)

	code, err := Code("JBSWY3DPEHPK3PXP", "a1b2c3d4e5123456", at)
	require.NoError(t, err)
	assert.Equal(t, "607191", code)
}
