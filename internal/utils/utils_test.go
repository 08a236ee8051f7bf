package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAuthContext(t *testing.T) {
	t.Run("SetAuthContext and getters", func(t *testing.T) {
		ctx := SetAuthContext(context.Background(), "admin@dapur.id", RoleAdmin)

		sub, ok := GetSubjectFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, "admin@dapur.id", sub)
		assert.Equal(t, RoleAdmin, GetRoleFromContext(ctx))
		assert.True(t, IsAdmin(ctx))
	})

	t.Run("empty context", func(t *testing.T) {
		ctx := context.Background()
		_, ok := GetSubjectFromContext(ctx)
		assert.False(t, ok)
		assert.Empty(t, GetRoleFromContext(ctx))
		assert.False(t, IsAdmin(ctx))
	})
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"081234567890", "+6281234567890", false},
		{"0812-3456-7890", "+6281234567890", false},
		{"+62 812 3456 7890", "+6281234567890", false},
		{"6281234567890", "+6281234567890", false},
		{"+1 650-253-0000", "+16502530000", false},
		{"(021) 5550 1234", "+622155501234", false},
		{"", "", true},
		{"   ", "", true},
		{"0812abc", "", true},
		{"12+345678", "", true},
		{"0812", "", true},
		{"+1234567890123456", "", true},
		{"+0812345678", "", true},
		// Plausible lengths, but no such numbering range.
		{"+6211234567890", "", true},
		{"+999 1234 5678", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatIDR(t *testing.T) {
	tests := []struct {
		amount   string
		expected string
	}{
		{"0", "Rp 0"},
		{"100", "Rp 100"},
		{"1000", "Rp 1.000"},
		{"105000", "Rp 105.000"},
		{"1000000", "Rp 1.000.000"},
		{"123456789.6", "Rp 123.456.790"},
		{"-2500", "-Rp 2.500"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatIDR(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, "error message", http.StatusBadRequest)

	resp := w.Result()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "error message", body["error"])
}
