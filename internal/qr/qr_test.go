package qr

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestTableURL(t *testing.T) {
	id := uuid.MustParse("6f1c2b7e-3d4a-4c8b-9e2f-1a2b3c4d5e6f")
	g := DefaultGenerator{BaseURL: "https://order.example.vn/"}
	assert.Equal(t, "https://order.example.vn/table/6f1c2b7e-3d4a-4c8b-9e2f-1a2b3c4d5e6f", g.TableURL(id))
}

func TestTableQR_ReturnsPNG(t *testing.T) {
	g := DefaultGenerator{BaseURL: "http://localhost:5173"}
	png, err := g.TableQR(uuid.New())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}
