package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/scio-practice/session-service/internal/models"
)

// Validator wraps struct-tag validation plus the question-set checks that
// cannot be expressed as tags.
type Validator struct {
	structValidator *validator.Validate
}

// New creates the shared validator instance with all custom rules
// registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)
	return &Validator{structValidator: structValidator}
}

// ValidateStruct validates struct tags only.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateParams checks a session parameter set.
func (v *Validator) ValidateParams(p models.RouterParams) error {
	return v.ValidateStruct(p)
}

// ValidateQuestions checks that every question in a set is gradeable. The
// returned error names the first offending index.
func (v *Validator) ValidateQuestions(qs []models.Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("question set is empty")
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d has no text", i)
		}
		if !q.HasAnswerKey() {
			return fmt.Errorf("question %d has a missing or empty answer key", i)
		}
		if q.IsMultipleChoice() && len(q.CorrectOptionTexts()) == 0 {
			return fmt.Errorf("question %d has an answer key that matches no option", i)
		}
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("id_percentage", validateIDPercentage)

	// Report json field names in error messages instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateIDPercentage(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	return value >= 0 && value <= 100
}
