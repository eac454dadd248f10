package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/attendly/attendly/core"
)

var (
	statusTag  = "att_status"
	statusText = "status must be one of PRESENT, ABSENT or LATE"
)

// InitValidators registers the attendance validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	_, ok := ParseStatus(fl.Field().String())
	return ok
}
