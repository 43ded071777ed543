// Package docstore implements the MongoDB-backed retail.RecordSource: the
// reference records (states, LGAs, brands, categories) and per-period sales
// metrics that don't belong in the warehouse.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whitespace-ai/oja/retail"
)

const (
	statesCollection     = "state_boundaries"
	lgasCollection       = "lga_boundaries"
	brandsCollection     = "brands"
	categoriesCollection = "product_categories"
	salesCollection      = "state_boundaries_unit"
	periodsCollection    = "periods"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

var _ retail.RecordSource = (*Store)(nil)

func NewStore(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not configure document store client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("could not connect to document store: %w", err)
	}
	return &Store{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// pagedFind runs a count plus a sorted, paginated find against one
// collection, returning the standard envelope.
func pagedFind[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, p retail.PageArgs) (*retail.Page[T], error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: counting %s: %v", retail.ErrQueryFailed, coll.Name(), err)
	}

	opts := options.Find().SetSkip(p.Skip()).SetLimit(p.Limit()).SetSort(sort)
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: finding %s: %v", retail.ErrQueryFailed, coll.Name(), err)
	}
	items := make([]T, 0, p.Size)
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", retail.ErrQueryFailed, coll.Name(), err)
	}

	return &retail.Page[T]{
		Data:     items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.Size,
	}, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var doc T
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, retail.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finding %s: %v", retail.ErrQueryFailed, coll.Name(), err)
	}
	return &doc, nil
}

func (s *Store) States(ctx context.Context, p retail.PageArgs, stateCode string) (*retail.Page[retail.State], error) {
	filter := bson.M{}
	if stateCode != "" {
		filter["state_code"] = stateCode
	}
	sort := bson.D{{Key: "state_name", Value: 1}}
	return pagedFind[retail.State](ctx, s.db.Collection(statesCollection), filter, sort, p)
}

func (s *Store) StateByCode(ctx context.Context, code string) (*retail.State, error) {
	return findOne[retail.State](ctx, s.db.Collection(statesCollection), bson.M{"state_code": code})
}

func (s *Store) LGAs(ctx context.Context, p retail.PageArgs, stateCode string) (*retail.Page[retail.LGA], error) {
	filter := bson.M{}
	if stateCode != "" {
		filter["state_code"] = stateCode
	}
	sort := bson.D{{Key: "state_name", Value: 1}, {Key: "lga_name", Value: 1}}
	return pagedFind[retail.LGA](ctx, s.db.Collection(lgasCollection), filter, sort, p)
}

func (s *Store) LGAByCode(ctx context.Context, code string) (*retail.LGA, error) {
	return findOne[retail.LGA](ctx, s.db.Collection(lgasCollection), bson.M{"lga_code": code})
}

func (s *Store) Brands(ctx context.Context, p retail.PageArgs, brandName string) (*retail.Page[retail.Brand], error) {
	// placeholder rows use "-" for brand_name, keep them out of listings
	filter := bson.M{"brand_name": bson.M{"$nin": bson.A{nil, "-"}}}
	if brandName != "" {
		filter["brand_name"] = brandName
	}
	sort := bson.D{{Key: "brand_name", Value: 1}}
	return pagedFind[retail.Brand](ctx, s.db.Collection(brandsCollection), filter, sort, p)
}

func (s *Store) BrandByName(ctx context.Context, name string) (*retail.Brand, error) {
	return findOne[retail.Brand](ctx, s.db.Collection(brandsCollection), bson.M{"brand_name": name})
}

func (s *Store) Categories(ctx context.Context, p retail.PageArgs, category string) (*retail.Page[retail.Category], error) {
	filter := bson.M{}
	if category != "" {
		filter["product_category"] = bson.M{"$regex": category, "$options": "i"}
	} else {
		filter["product_category"] = bson.M{"$nin": bson.A{nil, "-"}}
	}
	sort := bson.D{{Key: "product_category", Value: 1}}
	return pagedFind[retail.Category](ctx, s.db.Collection(categoriesCollection), filter, sort, p)
}

func (s *Store) CategoryByName(ctx context.Context, name string) (*retail.Category, error) {
	return findOne[retail.Category](ctx, s.db.Collection(categoriesCollection), bson.M{"product_category": name})
}

func (s *Store) SalesMetrics(ctx context.Context, p retail.PageArgs, f retail.SalesFilter) (*retail.Page[retail.SalesMetric], error) {
	filter := bson.M{}

	// date bounds select reporting periods first, then metrics by period ID
	if f.StartDate != nil || f.EndDate != nil {
		periodFilter := bson.M{}
		if f.StartDate != nil {
			periodFilter["start_date"] = bson.M{"$gte": *f.StartDate}
		}
		if f.EndDate != nil {
			periodFilter["end_date"] = bson.M{"$lte": *f.EndDate}
		}
		cur, err := s.db.Collection(periodsCollection).Find(ctx, periodFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: finding periods: %v", retail.ErrQueryFailed, err)
		}
		var periods []retail.Period
		if err := cur.All(ctx, &periods); err != nil {
			return nil, fmt.Errorf("%w: decoding periods: %v", retail.ErrQueryFailed, err)
		}
		ids := make(bson.A, 0, len(periods))
		for _, period := range periods {
			ids = append(ids, period.ID)
		}
		filter["date"] = bson.M{"$in": ids}
	}

	refs := []struct {
		field string
		hex   string
	}{
		{"lga", f.LGAID},
		{"state", f.StateID},
		{"brand", f.BrandID},
	}
	for _, ref := range refs {
		if ref.hex == "" {
			continue
		}
		oid, err := primitive.ObjectIDFromHex(ref.hex)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s filter %q", retail.ErrInvalidFilter, ref.field, ref.hex)
		}
		filter[ref.field] = oid
	}
	if f.ProductCategory != "" {
		filter["product_category"] = f.ProductCategory
	}

	coll := s.db.Collection(salesCollection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: counting sales metrics: %v", retail.ErrQueryFailed, err)
	}
	opts := options.Find().SetSkip(p.Skip()).SetLimit(p.Limit()).SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: finding sales metrics: %v", retail.ErrQueryFailed, err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decoding sales metrics: %v", retail.ErrQueryFailed, err)
	}

	items := make([]retail.SalesMetric, 0, len(docs))
	for _, doc := range docs {
		items = append(items, flattenDoc(doc))
	}
	return &retail.Page[retail.SalesMetric]{
		Data:     items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.Size,
	}, nil
}

// flattenDoc rewrites BSON-specific values into JSON-friendly ones:
// ObjectIDs become hex strings and datetimes become UTC timestamps.
func flattenDoc(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case bson.M:
		return flattenDoc(t)
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = flattenValue(e)
		}
		return out
	default:
		return v
	}
}
