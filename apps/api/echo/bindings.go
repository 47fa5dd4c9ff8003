package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/alama/core"
)

const orderingParam = "ordering"

// Ordering binds "?ordering=name,-created_at" query params.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the ordering param, keeping only the fields in allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if _, ok := allowed[field]; !ok {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
