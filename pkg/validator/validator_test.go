package validator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habets/authkit/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("nil when all rules pass", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.Required("email", "a@x.com"),
			validator.MinLen("password", "secret1", 6),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.Required("email", ""),
			validator.MinLen("password", "abc", 6),
		)
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Len(t, verrs, 2)
		assert.True(t, verrs.Has("email"))
		assert.True(t, verrs.Has("password"))
	})
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	valid := []string{"a@x.com", "ann.b@sub.example.org", "a+tag@x.co"}
	for _, email := range valid {
		assert.NoError(t, validator.Apply(validator.ValidEmail("email", email)), email)
	}

	invalid := []string{"", "not-an-email", "a@", "@x.com", "a@x", "Ann <a@x.com>", "a@x..com"}
	for _, email := range invalid {
		assert.Error(t, validator.Apply(validator.ValidEmail("email", email)), email)
	}
}

func TestMinLen(t *testing.T) {
	t.Parallel()

	assert.Error(t, validator.Apply(validator.MinLen("password", "12345", 6)))
	assert.NoError(t, validator.Apply(validator.MinLen("password", "123456", 6)))
}
