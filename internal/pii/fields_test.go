package pii

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldRegistry(t *testing.T) {
	r := NewFieldRegistry()
	r.Register("person", "full_name", "email", "phone", "document_number")
	r.Register("case_note", "full_name", "", "full_name")

	t.Run("registered entity has pii", func(t *testing.T) {
		assert.True(t, r.HasPII("person"))
		assert.Equal(t, []string{"full_name", "email", "phone", "document_number"}, r.FieldsFor("person"))
	})

	t.Run("registration dedupes and drops blanks", func(t *testing.T) {
		assert.Equal(t, []string{"full_name"}, r.FieldsFor("case_note"))
	})

	t.Run("unknown entity has none", func(t *testing.T) {
		assert.False(t, r.HasPII("benefit"))
		assert.Nil(t, r.FieldsFor("benefit"))
	})

	t.Run("intersect keeps only protected fields in changed order", func(t *testing.T) {
		got := r.Intersect("person", []string{"updated_at", "email", "notes", "full_name"})
		assert.Equal(t, []string{"email", "full_name"}, got)
	})

	t.Run("intersect with no protected overlap is nil", func(t *testing.T) {
		assert.Nil(t, r.Intersect("person", []string{"updated_at", "notes"}))
		assert.Nil(t, r.Intersect("benefit", []string{"email"}))
	})
}
