package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		fe := errs[0]
		return fmt.Errorf("field %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return err
}

func errUnknownScada(name string) error {
	return fmt.Errorf("default_scada %q has no entry in scadas", name)
}
