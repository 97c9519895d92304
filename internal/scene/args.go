package scene

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/scene2video/internal/grid"
)

// Args is the parsed argument part of a reference. Items are separated by
// ',' and are either key=value pairs or a bare value, which is stored under
// the primary key of the scene ("solid:#ff8800,grid=2x2").
type Args map[string]string

// ParseArgs splits arg into an Args map.
func ParseArgs(arg, primary string) Args {
	out := Args{}
	for _, item := range strings.Split(arg, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			out[primary] = item
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// String returns the value for key or def.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok && v != "" {
		return v
	}
	return def
}

// Float returns the value for key parsed as a float, or def when missing.
func (a Args) Float(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", key, err)
	}
	return f, nil
}

// Grid returns the value for key parsed as "COLSxROWS", or the single grid.
func (a Args) Grid(key string) (grid.Grid, error) {
	v, ok := a[key]
	if !ok || v == "" {
		return grid.Single, nil
	}
	g, err := grid.Parse(v)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("argument %s: %w", key, err)
	}
	return g, nil
}
