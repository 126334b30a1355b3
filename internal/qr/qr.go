package qr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Generator renders PNG QR codes.
type Generator interface {
	TableQR(tableID uuid.UUID) ([]byte, error)
	PNG(content string) ([]byte, error)
}

// DefaultGenerator points table QR codes at the customer ordering page.
type DefaultGenerator struct {
	BaseURL string
	Size    int
}

func (g DefaultGenerator) size() int {
	if g.Size <= 0 {
		return DefaultSize
	}
	return g.Size
}

// TableURL is the address a customer lands on after scanning a table code.
func (g DefaultGenerator) TableURL(tableID uuid.UUID) string {
	return fmt.Sprintf("%s/table/%s", strings.TrimRight(g.BaseURL, "/"), tableID)
}

func (g DefaultGenerator) TableQR(tableID uuid.UUID) ([]byte, error) {
	return g.PNG(g.TableURL(tableID))
}

func (g DefaultGenerator) PNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, g.size())
}
