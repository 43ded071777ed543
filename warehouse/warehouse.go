// Package warehouse implements the BigQuery-backed retail.MetricsSource.
//
// All queries are parameterized; user input is never spliced into SQL text.
// Transient warehouse failures are retried with exponential backoff, and
// query submission is rate-limited to stay inside project quota.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"

	"github.com/whitespace-ai/oja/retail"
)

type Store struct {
	client       *bigquery.Client
	dataset      string
	limiter      *rate.Limiter
	logger       *slog.Logger
	queryTimeout time.Duration
}

type Config struct {
	ProjectID string
	Dataset   string
	// QueriesPerSecond caps query submission; zero means 10.
	QueriesPerSecond int
	QueryTimeout     time.Duration
	Logger           *slog.Logger
}

var _ retail.MetricsSource = (*Store)(nil)

func NewStore(ctx context.Context, config Config) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	qps := config.QueriesPerSecond
	if qps <= 0 {
		qps = 10
	}
	queryTimeout := config.QueryTimeout
	if queryTimeout == 0 {
		queryTimeout = 30 * time.Second
	}

	client, err := bigquery.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to set up warehouse client: %w", err)
	}
	return &Store{
		client:       client,
		dataset:      config.Dataset,
		limiter:      rate.NewLimiter(rate.Limit(qps), 1),
		logger:       logger,
		queryTimeout: queryTimeout,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping runs a trivial query to verify connectivity and credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, err := queryRows[struct {
		One int64 `bigquery:"one"`
	}](ctx, s, "SELECT 1 AS one", nil)
	return err
}

// queryRows submits a parameterized query and drains the row iterator into a
// typed slice. The whole attempt (submit plus drain) is retried on transient
// failures so a partially-read iterator is never reused.
func queryRows[T any](ctx context.Context, s *Store, sql string, params []bigquery.QueryParameter) ([]T, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rows []T
	err := withRetries(ctx, s.logger, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()

		q := s.client.Query(sql)
		q.Parameters = params
		it, err := q.Read(ctx)
		if err != nil {
			return err
		}

		out := make([]T, 0)
		for {
			var row T
			err := it.Next(&row)
			if err == iterator.Done {
				break
			}
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		rows = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retail.ErrQueryFailed, err)
	}
	return rows, nil
}

func (s *Store) Cities(ctx context.Context) ([]retail.CityName, error) {
	rows, err := queryRows[retail.CityName](ctx, s, s.citiesQuery(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching cities: %w", err)
	}
	return rows, nil
}

func (s *Store) CityMetrics(ctx context.Context, city string) (*retail.CityMetrics, error) {
	params := []bigquery.QueryParameter{
		{Name: "city", Value: city},
	}
	rows, err := queryRows[retail.CityMetrics](ctx, s, s.cityMetricsQuery(), params)
	if err != nil {
		return nil, fmt.Errorf("fetching city metrics: %w", err)
	}
	if len(rows) == 0 {
		return nil, retail.ErrCityNotFound
	}
	m := rows[0]
	m.UpdatedAt = time.Now().UTC()
	return &m, nil
}

func (s *Store) NeighborhoodMetrics(ctx context.Context, city, name string) (*retail.NeighborhoodMetrics, error) {
	params := []bigquery.QueryParameter{
		{Name: "city", Value: city},
		{Name: "neighborhood", Value: name},
	}
	rows, err := queryRows[retail.NeighborhoodMetrics](ctx, s, s.neighborhoodMetricsQuery(), params)
	if err != nil {
		return nil, fmt.Errorf("fetching neighborhood metrics: %w", err)
	}
	if len(rows) == 0 {
		return nil, retail.ErrNeighborhoodNotFound
	}
	return &rows[0], nil
}

func (s *Store) RetailerMetrics(ctx context.Context, sellerID int64) (*retail.RetailerMetrics, error) {
	params := []bigquery.QueryParameter{
		{Name: "seller_id", Value: sellerID},
	}
	rows, err := queryRows[retail.RetailerMetrics](ctx, s, s.retailerMetricsQuery(), params)
	if err != nil {
		return nil, fmt.Errorf("fetching retailer metrics: %w", err)
	}
	if len(rows) == 0 {
		return nil, retail.ErrRetailerNotFound
	}
	return &rows[0], nil
}

func (s *Store) SearchRetailers(ctx context.Context, query, city string) ([]retail.RetailerMetrics, error) {
	params := []bigquery.QueryParameter{
		{Name: "query", Value: "%" + query + "%"},
	}
	if city != "" {
		params = append(params, bigquery.QueryParameter{Name: "city", Value: city})
	}
	rows, err := queryRows[retail.RetailerMetrics](ctx, s, s.searchRetailersQuery(city != ""), params)
	if err != nil {
		return nil, fmt.Errorf("searching retailers: %w", err)
	}
	return rows, nil
}
