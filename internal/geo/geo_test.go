package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var toronto = Point{Latitude: 43.6532, Longitude: -79.3832}

func TestDistance_SamePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Distance(toronto, toronto))
	assert.Equal(t, 0.0, Distance(Point{}, Point{}))
}

func TestDistance_Symmetric(t *testing.T) {
	points := []Point{
		toronto,
		{Latitude: 51.5074, Longitude: -0.1278},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 89.9, Longitude: 10},
		{Latitude: 0, Longitude: 179.999},
		{Latitude: 0, Longitude: -179.999},
	}
	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6, "%v -> %v", a, b)
		}
	}
}

func TestDistance_KnownReference(t *testing.T) {
	north := Point{Latitude: toronto.Latitude + 0.001, Longitude: toronto.Longitude}
	d := Distance(toronto, north)
	assert.InEpsilon(t, 111.19, d, 0.01)
}

func TestDistance_EndToEndPairIsAboutFiveMeters(t *testing.T) {
	b := Point{Latitude: 43.6532, Longitude: -79.38326}
	d := Distance(toronto, b)
	assert.InDelta(t, 4.83, d, 0.1)
}

func TestDistance_Antipodal(t *testing.T) {
	a := Point{Latitude: 0, Longitude: 0}
	b := Point{Latitude: 0, Longitude: 180}
	d := Distance(a, b)
	assert.False(t, math.IsNaN(d))
	assert.InEpsilon(t, math.Pi*EarthRadius, d, 1e-9)
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{Latitude: 1, Longitude: 0}, 0},
		{"east", Point{Latitude: 0, Longitude: 1}, 90},
		{"south", Point{Latitude: -1, Longitude: 0}, 180},
		{"west", Point{Latitude: 0, Longitude: -1}, 270},
		{"north east", Point{Latitude: 1, Longitude: 1}, 45},
		{"same point", Point{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(Point{}, tt.to)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Point
		wantErr bool
	}{
		{"origin", Point{}, false},
		{"corners", Point{Latitude: 90, Longitude: -180}, false},
		{"lat too high", Point{Latitude: 90.0001}, true},
		{"lat too low", Point{Latitude: -91}, true},
		{"lon too high", Point{Longitude: 180.5}, true},
		{"nan", Point{Latitude: math.NaN()}, true},
		{"inf", Point{Longitude: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidLocation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBoundingBox_ContainsEverythingInRadius(t *testing.T) {
	box := BoundingBox(toronto, 100)
	assert.False(t, box.AllLongitudes)

	for _, bearing := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		rad := bearing * math.Pi / 180
		// ~99m away in the given direction
		dLat := 99 / EarthRadius * 180 / math.Pi * math.Cos(rad)
		dLon := 99 / EarthRadius * 180 / math.Pi * math.Sin(rad) / math.Cos(toronto.Latitude*math.Pi/180)
		p := Point{Latitude: toronto.Latitude + dLat, Longitude: toronto.Longitude + dLon}
		require.True(t, Distance(toronto, p) <= 100)
		assert.True(t, box.Contains(p), "bearing %v", bearing)
	}

	far := Point{Latitude: toronto.Latitude + 0.01, Longitude: toronto.Longitude}
	assert.False(t, box.Contains(far))
}

func TestBoundingBox_AntimeridianAndPoles(t *testing.T) {
	box := BoundingBox(Point{Latitude: 0, Longitude: 179.9999}, 1000)
	assert.True(t, box.AllLongitudes)
	assert.True(t, box.Contains(Point{Latitude: 0, Longitude: -179.9999}))

	polar := BoundingBox(Point{Latitude: 89.99999, Longitude: 0}, 1000)
	assert.True(t, polar.AllLongitudes)
	assert.Equal(t, 90.0, polar.MaxLat)
}

func TestWithinRadius_InclusiveBoundary(t *testing.T) {
	b := Point{Latitude: 43.6532, Longitude: -79.38326}
	d := Distance(toronto, b)
	assert.True(t, WithinRadius(toronto, b, d))
	assert.False(t, WithinRadius(toronto, b, d-0.001))
}
