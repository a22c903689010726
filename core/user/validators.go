package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/jorgead/ritmatiza/core"
)

var (
	oneOfRolesTag  = "oneofroles"
	oneOfRolesText = "invalid role"
)

func init() {
	_ = core.Validate.RegisterValidation(oneOfRolesTag, oneOfRolesValidation)
	core.RegisterCustomTranslation(oneOfRolesTag, oneOfRolesText)
}

// oneOfRolesValidation only allows canonical role values.
func oneOfRolesValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}
