// Package deviceconfig loads the device document (cfg.json) produced by the
// configuration import tool.
package deviceconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yuguanpei/vending-machine/internal/domain/catalog"
)

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Filename string          `json:"filename,omitempty"`
}

type Device struct {
	VID      string    `json:"vid"`
	Secret   string    `json:"secret"`
	Password Password  `json:"password"`
	Base     string    `json:"base"`
	Products []Product `json:"products"`
}

// Password accepts both the string and the numeric form the import tool emits.
type Password string

func (p *Password) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*p = Password(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("deviceconfig: password: %w", err)
	}
	*p = Password(s)
	return nil
}

// Load reads the device document. A missing file yields an empty configuration.
func Load(path string) (*Device, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Device{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deviceconfig: read %s: %w", path, err)
	}
	var d Device
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("deviceconfig: decode %s: %w", path, err)
	}
	return &d, nil
}

func (d *Device) Catalog() *catalog.Catalog {
	products := make([]catalog.Product, 0, len(d.Products))
	for _, p := range d.Products {
		products = append(products, catalog.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Filename: p.Filename,
		})
	}
	return catalog.New(products)
}

// PaymentURL is the address encoded in the payment QR code for a sealed order token.
func (d *Device) PaymentURL(token string) string {
	if d.Base == "" || token == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(d.Base, "?") {
		sep = "&"
	}
	return d.Base + sep + "vid=" + url.QueryEscape(d.VID) + "&token=" + url.QueryEscape(token)
}

func (d *Device) AdminPassword() string { return string(d.Password) }
