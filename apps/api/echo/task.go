package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core/task"
	"github.com/jorgead/ritmatiza/core/user"
)

type taskApi struct {
	svc    *task.Service
	usrSvc *user.Service
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *task.Service, usrSvc *user.Service) {
	api := taskApi{svc: svc, usrSvc: usrSvc}

	tg := g.Group("/tasks")

	// un-authed endpoints
	tg.GET("/latest", api.latest)

	// authed endpoints
	ag := tg.Group("", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/mine", api.forStudent)
	ag.GET("/submissions/mine", api.mySubmissions)
	ag.POST("/:id/submissions", api.submit)
	ag.GET("/:id/submissions", api.querySubmissions)

	sg := g.Group("/submissions", jwt)
	sg.POST("/:id/grade", api.grade)
}

// Handlers

func (api *taskApi) latest(ctx echo.Context) error {
	tasks, err := api.svc.Latest(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying latest tasks")
	}
	if tasks == nil {
		tasks = []task.TaskInfo{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) query(ctx echo.Context) error {
	tasks, err := api.svc.ListAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.TaskInfo{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// forStudent serves the student dashboard: the assigned teacher's latest tasks
// annotated with the student's own submission status.
func (api *taskApi) forStudent(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tasks, err := api.svc.ForStudent(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying student tasks")
	}
	if tasks == nil {
		tasks = []task.StudentTask{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) submit(ctx echo.Context) error {
	var data task.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting task")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *taskApi) grade(ctx echo.Context) error {
	var data task.Grade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *taskApi) querySubmissions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.Submissions(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []task.SubmissionInfo{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *taskApi) mySubmissions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.MySubmissions(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying own submissions")
	}
	if subs == nil {
		subs = []task.SubmissionInfo{}
	}
	return ctx.JSON(http.StatusOK, subs)
}
