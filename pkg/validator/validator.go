package validator

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

// Validator checks request structs tagged with `validate`.
type Validator struct {
	v *playground.Validate
}

func New() *Validator {
	v := playground.New()
	v.RegisterTagNameFunc(jsonName)
	for tag, fn := range Rules() {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return &Validator{v: v}
}

// Rules are the portal's custom tags.
func Rules() map[string]playground.Func {
	return map[string]playground.Func{
		"medcategory": oneOf(model.MedicineCategories),
		"medform":     oneOf(model.MedicineForms),
		"rxstatus": func(fl playground.FieldLevel) bool {
			return model.PrescriptionStatus(fl.Field().String()).Valid()
		},
		"stockop": func(fl playground.FieldLevel) bool {
			op := model.StockOperation(fl.Field().String())
			return op == model.StockAdd || op == model.StockSubtract
		},
	}
}

func oneOf(allowed []string) playground.Func {
	return func(fl playground.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	}
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// Struct validates s and returns an ErrValidation AppError listing every
// failed field.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Internal(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, Message(fe))
	}
	return apperrors.Validation(strings.Join(msgs, "; "))
}

// Message renders one field error for people.
func Message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s is too short", fe.Field())
	case "medcategory":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(model.MedicineCategories, ", "))
	case "medform":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(model.MedicineForms, ", "))
	case "rxstatus":
		return fmt.Sprintf("%s must be Pending, Dispensed, PartiallyDispensed or Cancelled", fe.Field())
	case "stockop":
		return fmt.Sprintf("%s must be add or subtract", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
