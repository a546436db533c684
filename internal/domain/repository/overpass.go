package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/serjvanilla/go-overpass"

	"beacon/internal/domain/model"
)

// OverpassRepository looks up mapped features around a coordinate via the
// Overpass API. Clusters get annotated with the kinds of features cats
// congregate around: waste disposal, parks, parking lots.
type OverpassRepository struct {
	client *overpass.Client
}

// NewOverpassRepository builds a client against the given Overpass
// endpoint. timeout bounds each request through the HTTP client; the
// Overpass client itself is not context-aware.
func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{client: &client}
}

// NearbyFeatures returns feeding-relevant OSM features within radiusM of c,
// nearest first.
func (r *OverpassRepository) NearbyFeatures(ctx context.Context, c model.Coordinate, radiusM float64) ([]model.SiteFeature, error) {
	query := fmt.Sprintf(`
		[out:json];
		(
			node["amenity"~"waste_disposal|waste_basket|recycling"](around:%.0f,%f,%f);
			node["leisure"="park"](around:%.0f,%f,%f);
			node["amenity"="parking"](around:%.0f,%f,%f);
		);
		out body;
	`,
		radiusM, c.Lat, c.Lon,
		radiusM, c.Lat, c.Lon,
		radiusM, c.Lat, c.Lon)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := r.client.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "querying nearby features")
	}

	features := convertToSiteFeatures(&result, c)
	sort.Slice(features, func(i, j int) bool {
		return features[i].DistanceM < features[j].DistanceM
	})
	return features, nil
}

func convertToSiteFeatures(result *overpass.Result, origin model.Coordinate) []model.SiteFeature {
	var features []model.SiteFeature
	for _, node := range result.Nodes {
		coord := model.Coordinate{Lat: node.Lat, Lon: node.Lon}
		features = append(features, model.SiteFeature{
			Name:       node.Tags["name"],
			Kind:       featureKind(node.Tags),
			Coordinate: coord,
			DistanceM:  origin.DistanceM(coord),
		})
	}
	return features
}

func featureKind(tags map[string]string) string {
	if v, ok := tags["amenity"]; ok {
		return v
	}
	if v, ok := tags["leisure"]; ok {
		return v
	}
	return "unknown"
}
