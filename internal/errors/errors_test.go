package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppError_CreatesErrorWithCorrectFields(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "custom message", CodeNotFound)

	assert.Equal(t, baseErr, appErr.Err)
	assert.Equal(t, "custom message", appErr.Message)
	assert.Equal(t, CodeNotFound, appErr.Code)
}

func TestAppError_Error_ReturnsBaseErrorWhenNoMessage(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "", CodeNotFound)

	assert.Equal(t, "base error", appErr.Error())
}

func TestAppError_Unwrap_ReturnsWrappedError(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "custom message", CodeNotFound)

	assert.Equal(t, baseErr, appErr.Unwrap())
}

func TestInvalidInput_FormatsMessageAndWrapsSentinel(t *testing.T) {
	err := InvalidInput("rule %q has no conditions", "spam")

	assert.Equal(t, `rule "spam" has no conditions`, err.Error())
	assert.True(t, IsInvalidInput(err))
	assert.Equal(t, CodeInvalidInput, GetErrorCode(err))
}

func TestIntegrity_WrapsSentinel(t *testing.T) {
	err := Integrity("chain %s has no messages", "abc")

	assert.True(t, IsIntegrity(err))
	assert.Contains(t, err.Error(), "chain abc has no messages")
}

func TestWrap_ReturnsNilForNilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}

func TestIsNotFound_ReturnsTrueForNotFoundErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrNotFound", ErrNotFound, true},
		{"ErrMailboxNotFound", ErrMailboxNotFound, true},
		{"ErrMessageNotFound", ErrMessageNotFound, true},
		{"ErrAttachmentNotFound", ErrAttachmentNotFound, true},
		{"ErrUserFolderNotFound", ErrUserFolderNotFound, true},
		{"ErrTagNotFound", ErrTagNotFound, true},
		{"ErrRuleNotFound", ErrRuleNotFound, true},
		{"wrapped ErrNotFound", Wrap(ErrNotFound, "context"), true},
		{"other error", errors.New("other"), false},
		{"ErrDuplicateEntry", ErrDuplicateEntry, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestGetErrorCode_ReturnsCorrectCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", ErrNotFound, CodeNotFound},
		{"tag not found", fmt.Errorf("lookup: %w", ErrTagNotFound), CodeNotFound},
		{"duplicate", ErrDuplicateEntry, CodeDuplicateEntry},
		{"invalid input", ErrInvalidInput, CodeInvalidInput},
		{"integrity", Integrity("counter"), CodeIntegrity},
		{"transient", fmt.Errorf("after 3 attempts: %w", ErrTransient), CodeTransient},
		{"rule target", ErrRuleTargetMissing, CodeRuleTargetMissing},
		{"unauthorized", ErrUnauthorized, CodeUnauthorized},
		{"forbidden", ErrForbidden, CodeForbidden},
		{"app error code wins", NewAppError(ErrInternal, "x", CodeForbidden), CodeForbidden},
		{"unknown", errors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCode(tt.err))
		})
	}
}
