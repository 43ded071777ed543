package retail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func parsePageArgs(c echo.Context) (PageArgs, error) {
	page := 1
	if v := strings.TrimSpace(c.QueryParam("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return PageArgs{}, &echo.HTTPError{
				Code:    http.StatusBadRequest,
				Message: fmt.Sprintf("invalid value for 'page': %s", v),
			}
		}
		page = n
	}

	size := 10
	if v := strings.TrimSpace(c.QueryParam("page_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return PageArgs{}, &echo.HTTPError{
				Code:    http.StatusBadRequest,
				Message: fmt.Sprintf("invalid value for 'page_size': %s", v),
			}
		}
		size = n
	}
	return PageArgs{Page: page, Size: size}, nil
}

func parseDateParam(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, &echo.HTTPError{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("invalid value for '%s': expected ISO date", name),
	}
}

// sourceError maps source failures to HTTP responses. Not-found sentinels
// become 404, backend failures 502, anything else 500.
func (srv *Server) sourceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrCityNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "CityNotFound", Message: err.Error()})
	case errors.Is(err, ErrNeighborhoodNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "NeighborhoodNotFound", Message: err.Error()})
	case errors.Is(err, ErrRetailerNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "RetailerNotFound", Message: err.Error()})
	case errors.Is(err, ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "RecordNotFound", Message: err.Error()})
	case errors.Is(err, ErrInvalidFilter):
		return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: err.Error()})
	case errors.Is(err, ErrQueryFailed):
		srv.logger.Warn("backend query failed", "path", c.Path(), "err", err)
		return c.JSON(http.StatusBadGateway, GenericError{Error: "BackendUnavailable", Message: err.Error()})
	default:
		srv.logger.Warn("request failed", "path", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, GenericError{Error: "InternalServerError", Message: err.Error()})
	}
}

// GET /api/v1/cities
func (srv *Server) handleGetCities(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	cities, err := srv.metrics.Cities(ctx)
	if err != nil {
		return srv.sourceError(c, err)
	}
	citiesServed.Inc()
	return c.JSON(http.StatusOK, cities)
}

// GET /api/v1/cities/:city/metrics
func (srv *Server) handleGetCityMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	city := c.Param("city")
	m, err := srv.metrics.CityMetrics(ctx, city)
	if err != nil {
		return srv.sourceError(c, err)
	}
	cityMetricsServed.Inc()
	return c.JSON(http.StatusOK, m)
}

// GET /api/v1/neighborhoods/:city/:name
func (srv *Server) handleGetNeighborhoodMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	m, err := srv.metrics.NeighborhoodMetrics(ctx, c.Param("city"), c.Param("name"))
	if err != nil {
		return srv.sourceError(c, err)
	}
	neighborhoodMetricsServed.Inc()
	return c.JSON(http.StatusOK, m)
}

// GET /api/v1/retailers/search?q=&city=
func (srv *Server) handleSearchRetailers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	q := strings.TrimSpace(c.QueryParam("q"))
	if len(q) < 2 {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: "search query must be at least 2 characters",
		})
	}
	city := strings.TrimSpace(c.QueryParam("city"))

	results, err := srv.metrics.SearchRetailers(ctx, q, city)
	if err != nil {
		return srv.sourceError(c, err)
	}
	retailerSearchesServed.Inc()
	return c.JSON(http.StatusOK, results)
}

// GET /api/v1/retailers/:sellerID
func (srv *Server) handleGetRetailerMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	sellerID, err := strconv.ParseInt(c.Param("sellerID"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "BadRequest",
			Message: fmt.Sprintf("invalid seller ID: %s", c.Param("sellerID")),
		})
	}

	m, err := srv.metrics.RetailerMetrics(ctx, sellerID)
	if err != nil {
		return srv.sourceError(c, err)
	}
	retailerMetricsServed.Inc()
	return c.JSON(http.StatusOK, m)
}

// GET /api/v1/states
func (srv *Server) handleListStates(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	p, err := parsePageArgs(c)
	if err != nil {
		return err
	}
	page, err := srv.records.States(ctx, p, strings.TrimSpace(c.QueryParam("state_code")))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GET /api/v1/states/:code
func (srv *Server) handleGetState(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	st, err := srv.records.StateByCode(ctx, c.Param("code"))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// GET /api/v1/lgas
func (srv *Server) handleListLGAs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	p, err := parsePageArgs(c)
	if err != nil {
		return err
	}
	page, err := srv.records.LGAs(ctx, p, strings.TrimSpace(c.QueryParam("state_code")))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GET /api/v1/lgas/:code
func (srv *Server) handleGetLGA(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	lga, err := srv.records.LGAByCode(ctx, c.Param("code"))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, lga)
}

// GET /api/v1/brands
func (srv *Server) handleListBrands(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	p, err := parsePageArgs(c)
	if err != nil {
		return err
	}
	page, err := srv.records.Brands(ctx, p, strings.TrimSpace(c.QueryParam("brand_name")))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GET /api/v1/brands/:name
func (srv *Server) handleGetBrand(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	b, err := srv.records.BrandByName(ctx, c.Param("name"))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// GET /api/v1/categories
func (srv *Server) handleListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	p, err := parsePageArgs(c)
	if err != nil {
		return err
	}
	page, err := srv.records.Categories(ctx, p, strings.TrimSpace(c.QueryParam("product_category")))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GET /api/v1/categories/:name
func (srv *Server) handleGetCategory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	cat, err := srv.records.CategoryByName(ctx, c.Param("name"))
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, cat)
}

// GET /api/v1/sales
func (srv *Server) handleGetSalesMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	p, err := parsePageArgs(c)
	if err != nil {
		return err
	}
	start, err := parseDateParam(c, "start_date")
	if err != nil {
		return err
	}
	end, err := parseDateParam(c, "end_date")
	if err != nil {
		return err
	}
	filter := SalesFilter{
		StartDate:       start,
		EndDate:         end,
		LGAID:           strings.TrimSpace(c.QueryParam("lga_id")),
		StateID:         strings.TrimSpace(c.QueryParam("state_id")),
		BrandID:         strings.TrimSpace(c.QueryParam("brand_id")),
		ProductCategory: strings.TrimSpace(c.QueryParam("product_category")),
	}

	page, err := srv.records.SalesMetrics(ctx, p, filter)
	if err != nil {
		return srv.sourceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}
