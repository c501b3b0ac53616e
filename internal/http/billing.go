package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmehdipour/billing-sandbox/internal/query"
)

var endpoints = []string{
	"/v1/customers",
	"/v1/subscriptions",
	"/v1/charges",
	"/v1/invoices",
}

// parseListParams reads limit and starting_after. An absent limit is left
// at zero so the service applies its default.
func parseListParams(c echo.Context) (query.ListParams, *model.APIError) {
	var p query.ListParams
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, invalidParam("limit", "Invalid positive integer: %s", raw)
		}
		p.Limit = n
	}
	p.StartingAfter = c.QueryParam("starting_after")
	return p, nil
}

func listResponse[T any](c echo.Context, url string, page query.Page[T], err error) error {
	if errors.Is(err, query.ErrCursorNotFound) {
		return writeError(c, http.StatusBadRequest, missingCursor(c.QueryParam("starting_after")))
	}
	if err != nil {
		return err
	}

	data := page.Data
	if data == nil {
		data = []T{}
	}
	return c.JSON(http.StatusOK, model.List[T]{
		Object:  model.ObjectList,
		Data:    data,
		HasMore: page.HasMore,
		URL:     url,
	})
}

func listCustomersHandler(svc *query.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, perr := parseListParams(c)
		if perr != nil {
			return writeError(c, http.StatusBadRequest, *perr)
		}
		page, err := svc.Customers(p)
		return listResponse(c, "/v1/customers", page, err)
	}
}

func listSubscriptionsHandler(svc *query.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, perr := parseListParams(c)
		if perr != nil {
			return writeError(c, http.StatusBadRequest, *perr)
		}
		p.Status = c.QueryParam("status")
		page, err := svc.Subscriptions(p)
		return listResponse(c, "/v1/subscriptions", page, err)
	}
}

func listChargesHandler(svc *query.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, perr := parseListParams(c)
		if perr != nil {
			return writeError(c, http.StatusBadRequest, *perr)
		}
		p.Customer = c.QueryParam("customer")
		page, err := svc.Charges(p)
		return listResponse(c, "/v1/charges", page, err)
	}
}

func listInvoicesHandler(svc *query.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, perr := parseListParams(c)
		if perr != nil {
			return writeError(c, http.StatusBadRequest, *perr)
		}
		p.Customer = c.QueryParam("customer")
		page, err := svc.Invoices(p)
		return listResponse(c, "/v1/invoices", page, err)
	}
}

func healthHandler(svc *query.Service, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, model.Health{
			Status:       "healthy",
			Version:      version,
			Endpoints:    endpoints,
			TotalRecords: svc.Totals(),
		})
	}
}
