package validator

import (
	"reflect"
	"strings"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct-tag validation with the answer rules that need item context.
type Validator struct {
	structValidator *validator.Validate
	answerValidator *AnswerValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		answerValidator: NewAnswerValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func (v *Validator) Answer() *AnswerValidator {
	return v.answerValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("item_type", validateItemType)
	validate.RegisterValidation("attempt_status", validateAttemptStatus)
	validate.RegisterValidation("sort_order", validateSortOrder)

	// Report json field names so errors line up with request bodies.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateItemType(fl validator.FieldLevel) bool {
	switch models.ItemType(fl.Field().String()) {
	case models.ItemMCQ, models.ItemShort, models.ItemOther:
		return true
	}
	return false
}

// Empty status means "any" in list filters.
func validateAttemptStatus(fl validator.FieldLevel) bool {
	switch models.AttemptStatus(fl.Field().String()) {
	case "", models.AttemptInProgress, models.AttemptSubmitted:
		return true
	}
	return false
}

func validateSortOrder(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "asc", "desc":
		return true
	}
	return false
}
