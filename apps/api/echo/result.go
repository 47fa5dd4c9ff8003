package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/course"
	"github.com/trezcool/alama/core/result"
	"github.com/trezcool/alama/core/user"
)

type resultApi struct {
	svc       *result.Service
	usrSvc    *user.Service
	courseSvc *course.Service
}

func registerResultAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := resultApi{
		svc:       deps.ResultSvc,
		usrSvc:    deps.UserSvc,
		courseSvc: deps.CourseSvc,
	}

	rg := g.Group("/results", jwt)
	rg.GET("", api.query)
	rg.POST("", api.submit, staffMiddleware())
	rg.POST("/batch", api.submitBatch, staffMiddleware())
	rg.GET("/:id", api.retrieve)

	g.GET("/students/:id/transcript", api.transcript, jwt)
	g.GET("/me/transcript", api.myTranscript, jwt)
	g.GET("/dashboard/admin", api.dashboard, jwt, adminMiddleware())
}

func (api *resultApi) submit(ctx echo.Context) error {
	var data result.NewResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResult")
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "submitting result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resultApi) submitBatch(ctx echo.Context) error {
	var data result.BatchSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BatchSubmission")
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	results, err := api.svc.SubmitBatch(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "submitting results")
	}
	return ctx.JSON(http.StatusCreated, results)
}

// scope restricts filter to the results ctxUsr may see.
// Students see their own results. Faculty see the results they submitted,
// or every result of a course assigned to them.
func (api *resultApi) scope(ctx echo.Context, ctxUsr user.User, filter *result.QueryFilter) error {
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsFaculty():
		if filter.CourseID != "" {
			crs, err := api.courseSvc.GetByID(ctx.Request().Context(), filter.CourseID)
			if err != nil && !errors.Is(err, course.ErrNotFound) {
				return errors.Wrap(err, "finding course by ID")
			}
			if err == nil && course.IsTaughtBy(crs, ctxUsr) {
				return nil
			}
		}
		filter.SubmittedBy = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}
	return nil
}

func (api *resultApi) query(ctx echo.Context) error {
	filter := new(result.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []result.Result{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, result.Orderings)

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.scope(ctx, ctxUsr, filter); err != nil {
		return err
	}

	results, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	if results == nil {
		results = []result.Result{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *resultApi) retrieve(ctx echo.Context) error {
	res, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, result.ErrNotFound) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding result by ID")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	filter := &result.QueryFilter{CourseID: res.CourseID}
	if err := api.scope(ctx, ctxUsr, filter); err != nil {
		return err
	}
	if (filter.StudentID != "" && filter.StudentID != res.StudentID) ||
		(filter.SubmittedBy != "" && filter.SubmittedBy != res.SubmittedBy) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, res)
}

// transcript is visible to staff and to the student it belongs to.
func (api *resultApi) transcript(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if !(claims.IsAdmin || claims.IsFaculty || claims.Subject == id) {
		return errHttpNotFound
	}

	tr, err := api.svc.Transcript(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "building transcript")
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *resultApi) myTranscript(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	tr, err := api.svc.Transcript(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building transcript")
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *resultApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
