package geocode

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KnownPoints(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"dak bhawan", 28.622788, 77.213033, "39J-49L-L8T4"},
		{"bengaluru", 12.9716, 77.5946, "4P3-JK8-52C9"},
		{"mumbai", 19.076, 72.8777, "4FK-595-8823"},
		{"south west corner", MinLat, MinLon, "LLL-LLL-LLLL"},
		{"north east corner", MaxLat, MaxLon, "888-888-8888"},
		{"north west corner", MaxLat, MinLon, "FFF-FFF-FFFF"},
		{"south east corner", MinLat, MaxLon, "TTT-TTT-TTTT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.lat, tc.lon)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Len(t, got, Levels+2)
		})
	}
}

func TestEncode_RejectsOutOfRange(t *testing.T) {
	points := [][2]float64{
		{MinLat - 0.0001, 80},
		{MaxLat + 0.0001, 80},
		{20, MinLon - 0.0001},
		{20, MaxLon + 0.0001},
		{math.NaN(), 80},
		{-33.86, 151.2},
	}
	for _, p := range points {
		_, err := Encode(p[0], p[1])
		assert.ErrorIs(t, err, ErrOutOfRange, "point %v", p)
	}
}

func TestDecode_KnownCode(t *testing.T) {
	lat, lon, err := Decode("39J-49L-L8T4")
	require.NoError(t, err)
	assert.InDelta(t, 28.622793, lat, 1e-6)
	assert.InDelta(t, 77.213049, lon, 1e-6)

	// separators are optional on input
	lat2, lon2, err := Decode("39J49LL8T4")
	require.NoError(t, err)
	assert.Equal(t, lat, lat2)
	assert.Equal(t, lon, lon2)
}

func TestDecode_RejectsBadInput(t *testing.T) {
	_, _, err := Decode("39J-49L-L8T")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = Decode("39J-49L-L8T44")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = Decode("")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = Decode("39J-49L-L8TA")
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	// lower case is not part of the grid
	_, _, err = Decode("39j-49l-l8t4")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestRoundTrip_StaysInCell(t *testing.T) {
	cellHeight := (MaxLat - MinLat) / math.Pow(4, Levels)
	cellWidth := (MaxLon - MinLon) / math.Pow(4, Levels)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		lat := MinLat + rng.Float64()*(MaxLat-MinLat)
		lon := MinLon + rng.Float64()*(MaxLon-MinLon)

		code, err := Encode(lat, lon)
		require.NoError(t, err)

		clat, clon, err := Decode(code)
		require.NoError(t, err)

		assert.LessOrEqual(t, math.Abs(clat-lat), cellHeight, "lat %v", lat)
		assert.LessOrEqual(t, math.Abs(clon-lon), cellWidth, "lon %v", lon)

		again, err := Encode(clat, clon)
		require.NoError(t, err)
		assert.Equal(t, code, again, "center of %s encodes elsewhere", code)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "39J-49L-L8T", Truncate("39J-49L-L8T4", StoragePrecision))
	assert.Equal(t, "39J", Truncate("39J-49L-L8T4", 3))
	assert.Equal(t, "39J-4", Truncate("39J-49L-L8T4", 4))
	assert.Equal(t, "39J-49L-L8T4", Truncate("39J-49L-L8T4", Levels))
	assert.Equal(t, "39J-49L-L8T4", Truncate("39J-49L-L8T4", 20))
	assert.Equal(t, "", Truncate("39J-49L-L8T4", 0))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("4P3-JK8-52C9"))
	assert.False(t, Valid("4P3-JK8-52C"))
}
