// Package token seals order summaries into opaque strings carried by the payment QR code.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yuguanpei/vending-machine/internal/domain/order"
)

const nonceSize = 12

var (
	ErrNoKey     = errors.New("token: empty secret")
	ErrMalformed = errors.New("token: malformed")
)

type Item struct {
	ID    int64           `json:"id"`
	Price decimal.Decimal `json:"price"`
	Count int             `json:"count"`
}

type Payload struct {
	ID    string          `json:"id"`
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Sealer encrypts payloads with AES-256-GCM keyed by SHA-256 of the device secret.
// The token is base64(nonce || ciphertext || tag).
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrNoKey
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(p Payload) (string, error) {
	plain, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("token: encode payload: %w", err)
	}
	nonce := make([]byte, nonceSize, nonceSize+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("token: nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(token string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil || len(raw) < nonceSize+s.aead.Overhead() {
		return Payload{}, ErrMalformed
	}
	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	var p Payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return Payload{}, ErrMalformed
	}
	return p, nil
}

// SealOrder seals the summary of an order the payment page needs.
func (s *Sealer) SealOrder(o *order.Order) (string, error) {
	p := Payload{ID: o.ID, Items: make([]Item, len(o.Items)), Total: o.Total}
	for i, it := range o.Items {
		p.Items[i] = Item{ID: it.ProductID, Price: it.Price, Count: it.Quantity}
	}
	return s.Seal(p)
}
