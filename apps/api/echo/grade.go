package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/result"
)

// ScaleResponse describes the grading policy.
type ScaleResponse struct {
	Scale     grade.Scale      `json:"scale"`
	Points    grade.PointTable `json:"points"`
	MaxPoints int              `json:"max_points"`
}

type gradeApi struct {
	resultSvc *result.Service
}

// registerGradeAPI registers the public grading endpoints.
func registerGradeAPI(g *echo.Group, deps *Deps) {
	api := gradeApi{resultSvc: deps.ResultSvc}

	gg := g.Group("/grades")
	gg.GET("/scale", api.scale)
	gg.POST("/calculate", api.calculate)
}

func (api *gradeApi) scale(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ScaleResponse{
		Scale:     grade.DefaultScale,
		Points:    grade.DefaultPoints,
		MaxPoints: grade.MaxPoints,
	})
}

func (api *gradeApi) calculate(ctx echo.Context) error {
	var data result.CalcRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CalcRequest")
	}

	calc, err := api.resultSvc.Calculate(data)
	if err != nil {
		return errors.Wrap(err, "calculating grades")
	}
	return ctx.JSON(http.StatusOK, calc)
}
