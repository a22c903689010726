package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/music"
	"github.com/jorgead/ritmatiza/core/user"
	"github.com/jorgead/ritmatiza/services/spotify"
)

type musicApi struct {
	svc       *music.Service
	usrSvc    *user.Service
	connector *spotify.Connector
}

func registerMusicAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *music.Service, usrSvc *user.Service, connector *spotify.Connector) {
	api := musicApi{svc: svc, usrSvc: usrSvc, connector: connector}

	mg := g.Group("/music", jwt)
	mg.GET("/playlist", api.playlist)
	mg.POST("/playlist", api.approve)
	mg.DELETE("/playlist/:trackRef", api.removeEntry)
	mg.GET("/suggestions", api.querySuggestions)
	mg.POST("/suggestions", api.suggest)
	mg.POST("/suggestions/:trackRef/reject", api.reject)
	mg.GET("/search", api.search)

	sg := g.Group("/spotify", jwt)
	sg.POST("/connect", api.connect)
	sg.GET("/callback", api.callback)
}

// Handlers

func (api *musicApi) playlist(ctx echo.Context) error {
	entries, err := api.svc.Playlist(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying playlist")
	}
	if entries == nil {
		entries = []music.PlaylistEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *musicApi) suggest(ctx echo.Context) error {
	var data music.NewSuggestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSuggestion")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sug, err := api.svc.Suggest(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "suggesting track")
	}
	return ctx.JSON(http.StatusCreated, sug)
}

func (api *musicApi) querySuggestions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sugs, err := api.svc.List(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying suggestions")
	}
	if sugs == nil {
		sugs = []music.SuggestionInfo{}
	}
	return ctx.JSON(http.StatusOK, sugs)
}

func (api *musicApi) approve(ctx echo.Context) error {
	var data music.ApproveSuggestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApproveSuggestion")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	entry, err := api.svc.Approve(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "approving suggestion")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *musicApi) reject(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Reject(ctx.Request().Context(), ctxUsr, ctx.Param("trackRef")); err != nil {
		return errors.Wrap(err, "rejecting suggestion")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *musicApi) removeEntry(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.RemoveEntry(ctx.Request().Context(), ctxUsr, ctx.Param("trackRef")); err != nil {
		return errors.Wrap(err, "removing playlist entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *musicApi) search(ctx echo.Context) error {
	data := music.SearchQuery{Query: ctx.QueryParam("q")}
	if err := data.Validate(); err != nil {
		return err
	}

	tracks, err := api.svc.Search(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "searching catalog")
	}
	if tracks == nil {
		tracks = []music.Track{}
	}
	return ctx.JSON(http.StatusOK, tracks)
}

func (api *musicApi) connect(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !user.Allows(ctxUsr.Role, user.CapAdminOnly) {
		return core.ErrPermissionDenied
	}

	authURL, err := api.connector.BeginAuth()
	if err != nil {
		return errors.Wrap(err, "starting catalog authorization")
	}
	return ctx.JSON(http.StatusOK, ConnectResponse{AuthURL: authURL})
}

func (api *musicApi) callback(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !user.Allows(ctxUsr.Role, user.CapAdminOnly) {
		return core.ErrPermissionDenied
	}

	var data CallbackRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CallbackRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	acct, err := api.connector.CompleteAuth(ctx.Request().Context(), ctxUsr.ID, data.State, data.Code)
	if err != nil {
		if errors.Cause(err) == spotify.ErrStateMismatch {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		// the remote catalog is the only other failure mode here
		return core.ErrServiceUnavailable
	}
	return ctx.JSON(http.StatusOK, ConnectedResponse{ProfileID: acct.ProfileID})
}
