package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrTabNotFound, "tab tab-1 not found")
	assert.Equal(t, "[TAB_NOT_FOUND] tab tab-1 not found", err.Error())

	wrapped := NewError(ErrPersistFailed, "failed to persist drafts").WithCause(errors.New("disk full"))
	assert.Equal(t, "[PERSIST_FAILED] failed to persist drafts: disk full", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrStoreUnavailable, "failed to load drafts").WithCause(cause)

	assert.ErrorIs(t, err, cause)

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, ErrStoreUnavailable, typed.Code)
}

func TestDecodePendingDeliveryRecord_MalformedCode(t *testing.T) {
	cases := map[string]string{
		"not json":     "{broken",
		"missing tab":  `{"agents":[],"timestamp":123}`,
		"missing time": `{"tabId":"t","agents":[]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePendingDeliveryRecord(raw)
			var typed *Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, ErrRecordMalformed, typed.Code)
		})
	}
}
