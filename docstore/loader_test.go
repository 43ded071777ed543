package docstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const boundaryFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {
        "admin0Name": "Nigeria",
        "admin1Name": "Lagos",
        "admin1Pcod": "NG025",
        "admin2Name": "Ikeja",
        "admin2Pcod": "NG025013"
      },
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[3.32, 6.55], [3.36, 6.55], [3.36, 6.62], [3.32, 6.62], [3.32, 6.55]]]
      }
    },
    {
      "type": "Feature",
      "properties": {
        "admin1Name": "Lagos",
        "admin1Pcod": "NG025",
        "admin2Name": "Surulere"
      },
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[3.33, 6.48], [3.37, 6.48], [3.37, 6.52], [3.33, 6.52], [3.33, 6.48]]]
      }
    }
  ]
}`

func TestParseBoundaryFeatures(t *testing.T) {
	assert := assert.New(t)

	docs, err := ParseBoundaryFeatures(strings.NewReader(boundaryFixture))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal("Ikeja", docs[0]["lga_name"])
	assert.Equal("NG025013", docs[0]["lga_code"])
	assert.Equal("Lagos", docs[0]["state_name"])
	assert.Equal("NG025", docs[0]["state_code"])
	assert.Equal("Nigeria", docs[0]["country_name"])

	geom, ok := docs[0]["geometry"].(bson.M)
	require.True(t, ok)
	assert.Equal("Polygon", geom["type"])

	// missing properties fall back to defaults
	assert.Equal("NG025013", docs[0]["lga_code"])
	assert.Equal("Unknown", docs[1]["lga_code"])
	assert.Equal("Nigeria", docs[1]["country_name"])
}

func TestParseBoundaryFeaturesEmpty(t *testing.T) {
	_, err := ParseBoundaryFeatures(strings.NewReader(`{"type":"FeatureCollection","features":[]}`))
	assert.Error(t, err)

	_, err = ParseBoundaryFeatures(strings.NewReader(`not json`))
	assert.Error(t, err)
}
