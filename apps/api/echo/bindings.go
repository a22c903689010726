package echoapi

import (
	"github.com/jorgead/ritmatiza/core"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	ContactRequest struct {
		Name    string `json:"name" validate:"required,max=100"`
		Email   string `json:"email" validate:"required,email"`
		Subject string `json:"subject" validate:"required,max=255"`
		Message string `json:"message" validate:"required,max=2000"`
	}

	ConnectResponse struct {
		AuthURL string `json:"auth_url"`
	}

	CallbackRequest struct {
		State string `query:"state" json:"state" validate:"required"`
		Code  string `query:"code" json:"code" validate:"required"`
	}

	ConnectedResponse struct {
		ProfileID string `json:"profile_id"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (cr *ContactRequest) Validate() error {
	cr.Name = core.CleanString(cr.Name)
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	cr.Subject = core.CleanString(cr.Subject)
	cr.Message = core.CleanString(cr.Message)
	return core.Validate.Struct(cr)
}

func (cr *CallbackRequest) Validate() error {
	return core.Validate.Struct(cr)
}
