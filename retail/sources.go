package retail

import (
	"context"
	"errors"
)

// Sentinel errors returned by sources. Handlers translate these to HTTP
// status codes, so wrapped errors must keep them reachable via errors.Is.
var (
	ErrCityNotFound         = errors.New("city not found")
	ErrNeighborhoodNotFound = errors.New("neighborhood not found")
	ErrRetailerNotFound     = errors.New("retailer not found")
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvalidFilter        = errors.New("invalid filter")
	ErrQueryFailed          = errors.New("backend query failed")
)

// MetricsSource serves the warehouse-backed aggregates.
type MetricsSource interface {
	Cities(ctx context.Context) ([]CityName, error)
	CityMetrics(ctx context.Context, city string) (*CityMetrics, error)
	NeighborhoodMetrics(ctx context.Context, city, name string) (*NeighborhoodMetrics, error)
	RetailerMetrics(ctx context.Context, sellerID int64) (*RetailerMetrics, error)
	SearchRetailers(ctx context.Context, query, city string) ([]RetailerMetrics, error)
}

// RecordSource serves the document-store reference records.
type RecordSource interface {
	States(ctx context.Context, p PageArgs, stateCode string) (*Page[State], error)
	StateByCode(ctx context.Context, code string) (*State, error)
	LGAs(ctx context.Context, p PageArgs, stateCode string) (*Page[LGA], error)
	LGAByCode(ctx context.Context, code string) (*LGA, error)
	Brands(ctx context.Context, p PageArgs, brandName string) (*Page[Brand], error)
	BrandByName(ctx context.Context, name string) (*Brand, error)
	Categories(ctx context.Context, p PageArgs, category string) (*Page[Category], error)
	CategoryByName(ctx context.Context, name string) (*Category, error)
	SalesMetrics(ctx context.Context, p PageArgs, f SalesFilter) (*Page[SalesMetric], error)
}
