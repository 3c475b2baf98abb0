package shared

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "original context must be unchanged")
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestNewTraceIDUnique(t *testing.T) {
	seen := make(map[string]bool, 500)
	for i := 0; i < 500; i++ {
		id := NewTraceID()
		assert.False(t, seen[id], "duplicate trace ID %s", id)
		seen[id] = true
	}
}

func TestValidTraceID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "hex", id: "0123456789abcdef", want: true},
		{name: "uuid", id: "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", want: true},
		{name: "underscore", id: "req_42", want: true},
		{name: "empty", id: "", want: false},
		{name: "too long", id: strings.Repeat("a", MaxTraceIDLength+1), want: false},
		{name: "header injection", id: "abc\r\nX-Evil: 1", want: false},
		{name: "spaces", id: "a b", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidTraceID(tc.id))
		})
	}
}
