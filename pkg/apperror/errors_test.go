package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		kind Kind
		code int
	}{
		{"validation", NewFieldError("amount", "amount must be positive"), KindValidation, http.StatusUnprocessableEntity},
		{"not found", NewNotFoundError("Installment"), KindNotFound, http.StatusNotFound},
		{"integrity", NewIntegrityError("transaction belongs to another installment"), KindIntegrity, http.StatusConflict},
		{"io", NewIOError("load sale", errors.New("disk I/O error")), KindIO, http.StatusInternalServerError},
		{"bad request", NewBadRequestError("bad"), KindBadRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.True(t, IsKind(tt.err, tt.kind))
		})
	}
}

func TestIOErrorUnwraps(t *testing.T) {
	cause := errors.New("database is locked")
	err := NewIOError("record payment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Contains(t, err.Error(), "record payment")
}

func TestWrapIO(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WrapIO("op", nil))
	})

	t.Run("app errors pass through", func(t *testing.T) {
		notFound := NewNotFoundError("Sale")
		wrapped := fmt.Errorf("outer: %w", notFound)
		assert.Same(t, wrapped, WrapIO("op", wrapped))
		assert.True(t, IsKind(WrapIO("op", wrapped), KindNotFound))
	})

	t.Run("raw errors become io", func(t *testing.T) {
		err := WrapIO("load installment", errors.New("boom"))
		require.Error(t, err)
		assert.True(t, IsKind(err, KindIO))
	})
}

func TestGetAppError(t *testing.T) {
	appErr := GetAppError(errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, KindInternal, appErr.Kind)
	assert.Equal(t, "unexpected", appErr.Message)

	assert.False(t, IsKind(errors.New("plain"), KindValidation))
}
