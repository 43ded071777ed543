package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// geoFeatureCollection matches the admin-boundary GeoJSON distributed for
// Nigeria: admin1 is the state level, admin2 the LGA level.
type geoFeatureCollection struct {
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   bson.M         `json:"geometry"`
}

func (f geoFeature) prop(key, fallback string) string {
	if v, ok := f.Properties[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// ParseBoundaryFeatures decodes a GeoJSON FeatureCollection into LGA boundary
// documents keyed by lga_code.
func ParseBoundaryFeatures(r io.Reader) ([]bson.M, error) {
	var fc geoFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decoding GeoJSON: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("no features found in GeoJSON input")
	}

	docs := make([]bson.M, 0, len(fc.Features))
	for _, f := range fc.Features {
		docs = append(docs, bson.M{
			"lga_name":     f.prop("admin2Name", "Unknown"),
			"lga_code":     f.prop("admin2Pcod", "Unknown"),
			"state_name":   f.prop("admin1Name", "Unknown"),
			"state_code":   f.prop("admin1Pcod", "Unknown"),
			"country_name": f.prop("admin0Name", "Nigeria"),
			"geometry":     f.Geometry,
		})
	}
	return docs, nil
}

// LoadLGABoundaries upserts LGA boundary documents from a GeoJSON stream and
// ensures the geospatial index the neighborhood queries rely on. Returns the
// loaded LGA codes so callers can purge stale cache entries.
func (s *Store) LoadLGABoundaries(ctx context.Context, r io.Reader) ([]string, error) {
	docs, err := ParseBoundaryFeatures(r)
	if err != nil {
		return nil, err
	}

	coll := s.db.Collection(lgasCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "geometry", Value: "2dsphere"}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating geospatial index: %w", err)
	}

	codes := make([]string, 0, len(docs))
	for _, doc := range docs {
		code := doc["lga_code"].(string)
		_, err := coll.UpdateOne(ctx,
			bson.M{"lga_code": code},
			bson.M{"$set": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return codes, fmt.Errorf("upserting boundary %q: %w", code, err)
		}
		codes = append(codes, code)
	}
	s.logger.Info("loaded LGA boundaries", "count", len(codes))
	return codes, nil
}
