package pii

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"long number keeps prefix and suffix", "11987654321", "1198*****21"},
		{"exactly nine chars", "119876543", "1198***43", },
		{"eight chars fully masked", "11987654", "********"},
		{"short number fully masked", "190", "***"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhone(tt.phone))
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"regular address", "john.doe@example.com", "j*****e@example.com"},
		{"long local part masks at fixed width", "verylongaddress@example.com", "v*****s@example.com"},
		{"three char local", "ana@example.com", "a*****a@example.com"},
		{"two char local fully masked", "jo@example.com", "**@example.com"},
		{"one char local fully masked", "j@example.com", "*@example.com"},
		{"not an email passes through", "not-an-email", "not-an-email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskEmail(tt.email)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("domain always preserved, local never fully revealed", func(t *testing.T) {
		got := MaskEmail("joao.pereira@social.gov.br")
		assert.True(t, strings.HasSuffix(got, "@social.gov.br"))
		assert.NotContains(t, got, "joao.pereira")
	})
}

func TestMaskFullName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"two tokens", "Maria Silva", "Maria S."},
		{"many tokens keep first and abbreviate last", "Maria da Silva santos", "Maria S."},
		{"single token unmasked", "Maria", "Maria"},
		{"lowercase last token uppercased", "joao souza", "joao S."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskFullName(tt.in))
		})
	}
}

func TestMaskDocument(t *testing.T) {
	assert.Equal(t, "*******8901", MaskDocument("12345678901"))
	assert.Equal(t, "****", MaskDocument("1234"))
	assert.Equal(t, "***", MaskDocument("123"))
}

func TestMaskExceptLast(t *testing.T) {
	assert.Equal(t, "******7890", MaskExceptLast("1234567890", 4))
	assert.Equal(t, "********90", MaskExceptLast("1234567890", 2))
	assert.Equal(t, "**********", MaskExceptLast("1234567890", 0))
	assert.Equal(t, "**", MaskExceptLast("12", 4))
	assert.Equal(t, "**********", MaskExceptLast("1234567890", -1))
}
