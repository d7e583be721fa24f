package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeDependency, cause, "fetch cart")

	require.NotNil(t, err)
	assert.Equal(t, CodeDependency, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: fetch cart", err.Error())
}

func TestAsUnwrapsNestedError(t *testing.T) {
	t.Parallel()

	inner := New(CodeNotFoundYet, "transaction pending creation")
	outer := fmt.Errorf("probe: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodeNotFoundYet, typed.Code())
	assert.True(t, HasCode(outer, CodeNotFoundYet))
	assert.False(t, HasCode(outer, CodeTimeout))
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestNotFoundYetIsRetryable(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(CodeNotFoundYet)
	assert.True(t, meta.Retryable)
	assert.Equal(t, http.StatusNotFound, meta.HTTPStatus)
}
