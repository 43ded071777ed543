package retail

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CityName is a single row of the distinct-cities warehouse query.
type CityName struct {
	City string `bigquery:"city" json:"city"`
}

// RetailerMetrics is the per-seller aggregate computed over the orders table.
type RetailerMetrics struct {
	SellerID          int64    `bigquery:"seller_id" json:"seller_id"`
	SellerName        string   `bigquery:"seller_name" json:"seller_name"`
	StoreName         string   `bigquery:"store_name" json:"store_name"`
	Latitude          float64  `bigquery:"internal_seller_latitude" json:"internal_seller_latitude"`
	Longitude         float64  `bigquery:"internal_seller_longitude" json:"internal_seller_longitude"`
	GrossTTVUSD       float64  `bigquery:"gross_ttv_usd" json:"gross_ttv_usd"`
	RevenueUSD        float64  `bigquery:"revenue_usd" json:"revenue_usd"`
	TotalOrders       int64    `bigquery:"total_orders" json:"total_orders"`
	ProductCategories []string `bigquery:"product_categories" json:"product_categories"`
}

// NeighborhoodMetrics aggregates retailer activity inside one neighborhood
// boundary. Boundaries is the warehouse's serialized geography value.
type NeighborhoodMetrics struct {
	Name              string            `bigquery:"name" json:"name"`
	Boundaries        string            `bigquery:"boundaries" json:"boundaries"`
	AvgTTVUSD         float64           `bigquery:"avg_ttv_usd" json:"avg_ttv_usd"`
	RetailerDensity   int64             `bigquery:"retailer_density" json:"retailer_density"`
	AvgOrderFrequency float64           `bigquery:"avg_order_frequency" json:"avg_order_frequency"`
	TotalRevenueUSD   float64           `bigquery:"total_revenue_usd" json:"total_revenue_usd"`
	Retailers         []RetailerMetrics `bigquery:"retailers" json:"retailers,omitempty"`
}

type CityMetrics struct {
	City            string                `bigquery:"city" json:"city_name"`
	TotalRevenueUSD float64               `bigquery:"total_revenue_usd" json:"total_revenue_usd"`
	TotalRetailers  int64                 `bigquery:"total_retailers" json:"total_retailers"`
	AvgTTVUSD       float64               `bigquery:"avg_ttv_usd" json:"avg_ttv_usd"`
	Neighborhoods   []NeighborhoodMetrics `bigquery:"neighborhoods" json:"neighborhoods"`
	UpdatedAt       time.Time             `bigquery:"-" json:"updated_at"`
}

// State is a document from the state_boundaries collection.
type State struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StateCode string             `bson:"state_code" json:"state_code"`
	StateName string             `bson:"state_name" json:"state_name"`
	Geometry  bson.M             `bson:"geometry,omitempty" json:"geometry,omitempty"`
}

// LGA is a Local Government Area boundary document.
type LGA struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LGACode   string             `bson:"lga_code" json:"lga_code"`
	LGAName   string             `bson:"lga_name" json:"lga_name"`
	StateCode string             `bson:"state_code" json:"state_code"`
	StateName string             `bson:"state_name" json:"state_name"`
	Geometry  bson.M             `bson:"geometry,omitempty" json:"geometry,omitempty"`
}

type Brand struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BrandName string             `bson:"brand_name" json:"brand_name"`
}

type Category struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductCategory string             `bson:"product_category" json:"product_category"`
}

// Period maps a reporting period document to its date range.
type Period struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StartDate time.Time          `bson:"start_date" json:"start_date"`
	EndDate   time.Time          `bson:"end_date" json:"end_date"`
}

// SalesMetric documents carry per-period values whose exact shape varies by
// ingest batch, so they pass through as flattened maps.
type SalesMetric = map[string]any

// Page is the pagination envelope shared by all list endpoints.
type Page[T any] struct {
	Data     []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// PageArgs is a validated page/page_size pair.
type PageArgs struct {
	Page int
	Size int
}

func (p PageArgs) Skip() int64 {
	return int64((p.Page - 1) * p.Size)
}

func (p PageArgs) Limit() int64 {
	return int64(p.Size)
}

// SalesFilter narrows the sales metrics query. Date bounds select reporting
// periods; the ID fields are hex ObjectIDs referencing other collections.
type SalesFilter struct {
	StartDate       *time.Time
	EndDate         *time.Time
	LGAID           string
	StateID         string
	BrandID         string
	ProductCategory string
}
