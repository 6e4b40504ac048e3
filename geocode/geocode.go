package geocode

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrOutOfRange    = errors.New("coordinates out of range")
	ErrInvalidFormat = errors.New("invalid geocode format")
	ErrInvalidSymbol = errors.New("invalid geocode symbol")
)

const (
	MinLat = 2.5
	MaxLat = 38.5
	MinLon = 63.5
	MaxLon = 99.5

	// Levels is the number of symbols in a full geocode.
	Levels = 10

	// StoragePrecision is how many symbols an issue keeps on write.
	StoragePrecision = Levels - 1

	separator = '-'
)

var grid = [4][4]byte{
	{'F', 'C', '9', '8'},
	{'J', '3', '2', '7'},
	{'K', '4', '5', '6'},
	{'L', 'M', 'P', 'T'},
}

type cell struct{ row, col int }

var symbols = func() map[byte]cell {
	m := make(map[byte]cell, 16)
	for r := range grid {
		for c := range grid[r] {
			m[grid[r][c]] = cell{r, c}
		}
	}
	return m
}()

// Encode maps a point inside the supported region to its full 3-3-4 geocode.
func Encode(lat, lon float64) (string, error) {
	if math.IsNaN(lat) || lat < MinLat || lat > MaxLat {
		return "", fmt.Errorf("%w: latitude %v", ErrOutOfRange, lat)
	}
	if math.IsNaN(lon) || lon < MinLon || lon > MaxLon {
		return "", fmt.Errorf("%w: longitude %v", ErrOutOfRange, lon)
	}

	minLat, maxLat := MinLat, MaxLat
	minLon, maxLon := MinLon, MaxLon

	var b strings.Builder
	b.Grow(Levels + 2)

	for level := 1; level <= Levels; level++ {
		latDiv := (maxLat - minLat) / 4
		lonDiv := (maxLon - minLon) / 4

		// rows grow southward while the grid is indexed from the top
		row := clamp(3 - int(math.Floor((lat-minLat)/latDiv)))
		col := clamp(int(math.Floor((lon - minLon) / lonDiv)))

		b.WriteByte(grid[row][col])
		if level == 3 || level == 6 {
			b.WriteByte(separator)
		}

		maxLat = minLat + latDiv*float64(4-row)
		minLat = minLat + latDiv*float64(3-row)
		minLon = minLon + lonDiv*float64(col)
		maxLon = minLon + lonDiv
	}

	return b.String(), nil
}

// Decode returns the center of the level-10 cell named by code, rounded to
// six fractional digits.
func Decode(code string) (lat, lon float64, err error) {
	pin := strings.ReplaceAll(code, string(separator), "")
	if len(pin) != Levels {
		return 0, 0, fmt.Errorf("%w: %q has %d symbols", ErrInvalidFormat, code, len(pin))
	}

	minLat, maxLat := MinLat, MaxLat
	minLon, maxLon := MinLon, MaxLon

	for i := 0; i < len(pin); i++ {
		c, ok := symbols[pin[i]]
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q at position %d", ErrInvalidSymbol, pin[i], i)
		}

		latDiv := (maxLat - minLat) / 4
		lonDiv := (maxLon - minLon) / 4

		lat1 := maxLat - latDiv*float64(c.row+1)
		lat2 := maxLat - latDiv*float64(c.row)
		lon1 := minLon + lonDiv*float64(c.col)
		lon2 := minLon + lonDiv*float64(c.col+1)

		minLat, maxLat = lat1, lat2
		minLon, maxLon = lon1, lon2
	}

	return round6((minLat + maxLat) / 2), round6((minLon + maxLon) / 2), nil
}

// Truncate keeps the first n symbols of code, preserving separators that
// precede the last kept symbol.
func Truncate(code string, n int) string {
	if n <= 0 {
		return ""
	}
	kept := 0
	for i := 0; i < len(code); i++ {
		if code[i] == separator {
			continue
		}
		kept++
		if kept == n {
			return code[:i+1]
		}
	}
	return code
}

// Valid reports whether code decodes without error.
func Valid(code string) bool {
	_, _, err := Decode(code)
	return err == nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 3 {
		return 3
	}
	return v
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
