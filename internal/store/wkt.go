package store

import (
	"fmt"
	"regexp"
	"strconv"

	"fleet-monitor/compliance/internal/domain"
)

// Geography columns are written as EWKT. Longitude comes first.

var pointPattern = regexp.MustCompile(`^(?:SRID=\d+;)?POINT\s*\(\s*([-+\d.eE]+)\s+([-+\d.eE]+)\s*\)$`)

func pointWKT(p domain.Point) string {
	return "SRID=4326;POINT(" +
		strconv.FormatFloat(p.Lng, 'f', -1, 64) + " " +
		strconv.FormatFloat(p.Lat, 'f', -1, 64) + ")"
}

func parsePointWKT(s string) (domain.Point, error) {
	m := pointPattern.FindStringSubmatch(s)
	if m == nil {
		return domain.Point{}, fmt.Errorf("not a WKT point: %q", s)
	}
	lng, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("point longitude %q: %w", m[1], err)
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return domain.Point{}, fmt.Errorf("point latitude %q: %w", m[2], err)
	}
	return domain.Point{Lat: lat, Lng: lng}, nil
}
