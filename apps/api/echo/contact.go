package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core"
)

type contactApi struct {
	conf    *core.Config
	mailSvc core.EmailService
	logger  core.Logger
}

func registerContactAPI(g *echo.Group, conf *core.Config, mailSvc core.EmailService, logger core.Logger) {
	api := contactApi{conf: conf, mailSvc: mailSvc, logger: logger}
	g.POST("/contact", api.send)
}

func (api *contactApi) send(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	api.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{api.conf.ContactAddr()},
		ReplyTo: &mail.Address{Name: data.Name, Address: data.Email},
		Subject: "Contact: " + data.Subject,
		BodyStr: fmt.Sprintf("From: %s <%s>\n\n%s", data.Name, data.Email, data.Message),
	})
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Your message has been sent. We will get back to you shortly."})
}
