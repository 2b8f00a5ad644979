package validator

import (
	"strings"

	"github.com/ask4sham/letsrevise-attempts/internal/errors"
	"github.com/ask4sham/letsrevise-attempts/internal/models"
)

// AnswerValidator checks an answer payload against the item it answers.
type AnswerValidator struct{}

func NewAnswerValidator() *AnswerValidator {
	return &AnswerValidator{}
}

// Validate enforces the xor between selected_index and text_answer and that the
// populated field suits the item type. A nil text with nil index is rejected;
// an empty string is accepted and clears the answer.
func (v *AnswerValidator) Validate(item *models.AssessmentItem, selectedIndex *int, textAnswer *string) error {
	var errs ValidationErrors

	switch {
	case selectedIndex != nil && textAnswer != nil:
		errs = append(errs, errors.FieldError("selected_index", "answer_xor", "cannot be combined with text_answer", *selectedIndex))
	case selectedIndex == nil && textAnswer == nil:
		errs = append(errs, errors.FieldError("selected_index", "answer_xor", "or text_answer is required", nil))
	}
	if len(errs) > 0 {
		return errs
	}

	switch item.Type {
	case models.ItemMCQ:
		if selectedIndex == nil {
			errs = append(errs, errors.FieldError("selected_index", "answer_type", "is required for multiple choice questions", nil))
			break
		}
		if *selectedIndex < 0 || *selectedIndex >= len(item.Options) {
			errs = append(errs, errors.FieldError("selected_index", "option_range", "is out of range for this question", *selectedIndex))
		}
	default:
		if textAnswer == nil {
			errs = append(errs, errors.FieldError("text_answer", "answer_type", "is required for written questions", nil))
			break
		}
		if len(strings.TrimSpace(*textAnswer)) > MaxTextAnswerLength {
			errs = append(errs, errors.FieldError("text_answer", "max", "is too long", len(*textAnswer)))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

const MaxTextAnswerLength = 10000
