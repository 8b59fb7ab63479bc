// Package id derives order identifiers from the order content and its creation instant.
package id

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yuguanpei/vending-machine/internal/domain/order"
)

const (
	hashPrefixLen = 10
	// SuffixLen is the number of trailing digits customers read back to look an order up.
	SuffixLen = 6
)

// Line is the part of an order item that feeds the digest.
type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type digestInput struct {
	Items []Line `json:"items"`
	VID   string `json:"vid"`
	TS    int64  `json:"ts"`
}

// Generator builds ids as the first ten hex digits of a SHA-256 over the order
// content followed by the last six digits of the millisecond timestamp.
type Generator struct{}

func NewGenerator() Generator { return Generator{} }

func (Generator) NewOrderID(items []order.Item, vid string, at time.Time) (string, error) {
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	ms := at.UnixMilli()
	raw, err := json.Marshal(digestInput{Items: lines, VID: vid, TS: ms})
	if err != nil {
		return "", fmt.Errorf("id: encode digest input: %w", err)
	}
	sum := sha256.Sum256(raw)
	digits := fmt.Sprintf("%0*d", SuffixLen, ms)
	return hex.EncodeToString(sum[:])[:hashPrefixLen] + digits[len(digits)-SuffixLen:], nil
}
