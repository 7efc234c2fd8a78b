package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "0x1234...5678", Truncate("0x1234567890abcdef1234567890abcdef12345678"))
	assert.Equal(t, "0xabc", Truncate("0xabc"))
}

func TestTruncateResolver(t *testing.T) {
	r := TruncateResolver{}
	addr := "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"
	assert.Equal(t, "0x71c7...976f", r.DisplayName(context.Background(), addr))
}
