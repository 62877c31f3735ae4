// Package validation registers the identifier field rules as
// go-playground/validator tags, for request bodies and queue messages alike.
package validation

import (
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"

	"example.com/backstage/services/identifier/internal/identifier"
)

var validate = New()

// New returns a validator with the identifier tags registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the site_id, batch_type, strain_code, pack_size and
// batch_number tags to v.
func Register(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"site_id": func(fl validator.FieldLevel) bool {
			n, ok := intValue(fl.Field())
			return ok && identifier.SiteID(n).Valid()
		},
		"batch_type": func(fl validator.FieldLevel) bool {
			n, ok := intValue(fl.Field())
			return ok && identifier.BatchType(n).Valid()
		},
		"strain_code": func(fl validator.FieldLevel) bool {
			n, ok := intValue(fl.Field())
			return ok && identifier.StrainCode(n).Valid()
		},
		"pack_size": func(fl validator.FieldLevel) bool {
			n, ok := intValue(fl.Field())
			return ok && identifier.PackSize(n).Valid()
		},
		"batch_number": func(fl validator.FieldLevel) bool {
			_, err := identifier.DecodeBatch(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// Struct validates s with the shared validator.
func Struct(s interface{}) error {
	return validate.Struct(s)
}

func intValue(f reflect.Value) (int, bool) {
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(f.Int()), true
	case reflect.String:
		n, err := strconv.Atoi(f.String())
		return n, err == nil
	}
	return 0, false
}
