package validation

import (
	"regexp"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

var slotTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// New returns a configured validator with the custom tags used by the
// lifecycle request payloads registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// slot_date accepts calendar dates in YYYY-MM-DD form.
	_ = v.RegisterValidation("slot_date", func(fl validatorv10.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})

	// slot_time accepts 24h wall clock times in HH:MM form.
	_ = v.RegisterValidation("slot_time", func(fl validatorv10.FieldLevel) bool {
		return slotTimePattern.MatchString(fl.Field().String())
	})

	return v
}
