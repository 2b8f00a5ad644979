package errors

import (
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heartbeatForm struct {
	AttemptID string `validate:"required"`
	Note      string `validate:"max=3"`
	TimeUsed  int    `validate:"min=0"`
}

func TestToValidationErrors(t *testing.T) {
	err := validator.New().Struct(heartbeatForm{Note: "too long", TimeUsed: -1})
	require.Error(t, err)

	errs := ToValidationErrors(fmt.Errorf("bind: %w", err))
	require.Len(t, errs, 3)
	assert.Equal(t, []string{"AttemptID", "Note", "TimeUsed"}, errs.Fields())

	assert.Equal(t, "is required", errs[0].Message)
	assert.Equal(t, "must be at most 3 characters", errs[1].Message)
	assert.Equal(t, "max", errs[1].Rule)
	assert.Equal(t, "must be at least 0", errs[2].Message)
	assert.Equal(t, -1, errs[2].Value)
}

func TestToValidationErrors_OtherErrors(t *testing.T) {
	assert.Nil(t, ToValidationErrors(fmt.Errorf("boom")))
	assert.Nil(t, ToValidationErrors(nil))
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, FieldError("selected_index", "answer_xor", "or text_answer is required", nil))
	assert.Equal(t, "validation failed: selected_index or text_answer is required", errs.Error())
	assert.True(t, errs.Has("selected_index"))
	assert.False(t, errs.Has("text_answer"))

	errs = append(errs, *NewValidationError("text_answer", "is too long", 12000))
	assert.Equal(t, "validation failed: selected_index, text_answer", errs.Error())
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("paper_id", "is required", "")
	assert.Equal(t, "paper_id is required", err.Error())
	assert.Empty(t, err.Rule)
}
