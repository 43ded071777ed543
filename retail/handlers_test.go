package retail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, *MockMetricsSource, *MockRecordSource) {
	t.Helper()

	metrics := NewMockMetricsSource()
	metrics.InsertCity(CityMetrics{
		City:            "Lagos",
		TotalRevenueUSD: 15000000,
		TotalRetailers:  1200,
		AvgTTVUSD:       125000,
	})
	metrics.InsertNeighborhood("Lagos", NeighborhoodMetrics{
		Name:            "Ikeja",
		AvgTTVUSD:       98000,
		RetailerDensity: 42,
	})
	metrics.InsertRetailer(RetailerMetrics{
		SellerID:   12345,
		SellerName: "John's Store",
		StoreName:  "JS Electronics",
	})

	records := NewMockRecordSource()
	records.StateList = []State{
		{StateCode: "NG025", StateName: "Lagos"},
		{StateCode: "NG015", StateName: "Kano"},
	}
	records.LGAList = []LGA{
		{LGACode: "NG025013", LGAName: "Ikeja", StateCode: "NG025", StateName: "Lagos"},
		{LGACode: "NG025020", LGAName: "Surulere", StateCode: "NG025", StateName: "Lagos"},
	}
	records.BrandList = []Brand{{BrandName: "Coca-Cola"}}
	records.CategoryList = []Category{{ProductCategory: "Beverages"}}
	records.Sales = []SalesMetric{
		{"ttv": 100.0}, {"ttv": 200.0}, {"ttv": 300.0},
	}

	srv, err := NewServer(&metrics, &records, Config{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return srv, &metrics, &records
}

func doGet(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	for _, path := range []string{"/", "/_health"} {
		rec := doGet(srv, path)
		assert.Equal(http.StatusOK, rec.Code)
		var status HealthStatus
		assert.NoError(json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal("healthy", status.Status)
	}
}

func TestGetCities(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/cities")
	assert.Equal(http.StatusOK, rec.Code)
	var cities []CityName
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &cities))
	assert.Equal([]CityName{{City: "Lagos"}}, cities)
}

func TestGetCityMetrics(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/cities/Lagos/metrics")
	assert.Equal(http.StatusOK, rec.Code)
	var m CityMetrics
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal("Lagos", m.City)
	assert.Equal(int64(1200), m.TotalRetailers)

	rec = doGet(srv, "/api/v1/cities/Atlantis/metrics")
	assert.Equal(http.StatusNotFound, rec.Code)
	var ge GenericError
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &ge))
	assert.Equal("CityNotFound", ge.Error)
}

func TestGetNeighborhoodMetrics(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/neighborhoods/Lagos/Ikeja")
	assert.Equal(http.StatusOK, rec.Code)
	var m NeighborhoodMetrics
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal("Ikeja", m.Name)

	rec = doGet(srv, "/api/v1/neighborhoods/Lagos/Nowhere")
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestSearchRetailers(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	// query too short
	rec := doGet(srv, "/api/v1/retailers/search?q=j")
	assert.Equal(http.StatusBadRequest, rec.Code)
	rec = doGet(srv, "/api/v1/retailers/search")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doGet(srv, "/api/v1/retailers/search?q=electronics")
	assert.Equal(http.StatusOK, rec.Code)
	var results []RetailerMetrics
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(results, 1)
	assert.Equal(int64(12345), results[0].SellerID)

	rec = doGet(srv, "/api/v1/retailers/search?q=zzzzz")
	assert.Equal(http.StatusOK, rec.Code)
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Empty(results)
}

func TestGetRetailerMetrics(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/retailers/12345")
	assert.Equal(http.StatusOK, rec.Code)
	var m RetailerMetrics
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal("JS Electronics", m.StoreName)

	rec = doGet(srv, "/api/v1/retailers/99999")
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doGet(srv, "/api/v1/retailers/not-a-number")
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestListStates(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/states")
	assert.Equal(http.StatusOK, rec.Code)
	var page Page[State]
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(int64(2), page.Total)
	assert.Equal(1, page.Page)
	assert.Equal(10, page.PageSize)
	assert.Len(page.Data, 2)

	rec = doGet(srv, "/api/v1/states?state_code=NG015")
	assert.Equal(http.StatusOK, rec.Code)
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(int64(1), page.Total)
	assert.Equal("Kano", page.Data[0].StateName)
}

func TestPaginationParams(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/lgas?page=2&page_size=1")
	assert.Equal(http.StatusOK, rec.Code)
	var page Page[LGA]
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(int64(2), page.Total)
	assert.Equal(2, page.Page)
	assert.Len(page.Data, 1)
	assert.Equal("Surulere", page.Data[0].LGAName)

	for _, path := range []string{
		"/api/v1/lgas?page=0",
		"/api/v1/lgas?page=abc",
		"/api/v1/lgas?page_size=0",
		"/api/v1/lgas?page_size=1001",
	} {
		rec := doGet(srv, path)
		assert.Equal(http.StatusBadRequest, rec.Code, path)
	}
}

func TestGetLGA(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/lgas/NG025013")
	assert.Equal(http.StatusOK, rec.Code)
	var lga LGA
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &lga))
	assert.Equal("Ikeja", lga.LGAName)

	rec = doGet(srv, "/api/v1/lgas/XX000000")
	assert.Equal(http.StatusNotFound, rec.Code)
	var ge GenericError
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &ge))
	assert.Equal("RecordNotFound", ge.Error)
}

func TestBrandsAndCategories(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/brands/Coca-Cola")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doGet(srv, "/api/v1/brands/Pepsi")
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doGet(srv, "/api/v1/categories?product_category=bev")
	assert.Equal(http.StatusOK, rec.Code)
	var page Page[Category]
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(int64(1), page.Total)

	rec = doGet(srv, "/api/v1/categories/Beverages")
	assert.Equal(http.StatusOK, rec.Code)
}

func TestGetSalesMetrics(t *testing.T) {
	assert := assert.New(t)
	srv, _, _ := testServer(t)

	rec := doGet(srv, "/api/v1/sales?page_size=2")
	assert.Equal(http.StatusOK, rec.Code)
	var page Page[SalesMetric]
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(int64(3), page.Total)
	assert.Len(page.Data, 2)

	rec = doGet(srv, "/api/v1/sales?start_date=2024-01-01&end_date=2024-02-01")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doGet(srv, "/api/v1/sales?start_date=January")
	assert.Equal(http.StatusBadRequest, rec.Code)

	// reference filters must be hex ObjectIDs
	rec = doGet(srv, "/api/v1/sales?lga_id=not-an-object-id")
	assert.Equal(http.StatusBadRequest, rec.Code)
	var ge GenericError
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &ge))
	assert.Equal("BadRequest", ge.Error)

	rec = doGet(srv, "/api/v1/sales?brand_id=65a1b2c3d4e5f6a7b8c9d0e1")
	assert.Equal(http.StatusOK, rec.Code)
}

// brokenMetricsSource always reports a backend failure.
type brokenMetricsSource struct {
	MockMetricsSource
}

func (s *brokenMetricsSource) Cities(ctx context.Context) ([]CityName, error) {
	return nil, fmt.Errorf("%w: connection reset", ErrQueryFailed)
}

func TestBackendFailure(t *testing.T) {
	assert := assert.New(t)

	metrics := &brokenMetricsSource{NewMockMetricsSource()}
	records := NewMockRecordSource()
	srv, err := NewServer(metrics, &records, Config{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/cities")
	assert.Equal(http.StatusBadGateway, rec.Code)
	var ge GenericError
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &ge))
	assert.Equal("BackendUnavailable", ge.Error)
}
