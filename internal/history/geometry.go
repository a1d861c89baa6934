package history

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

var errMalformedGeometry = errors.New("malformed geometry")

// coordinatePrecision is the number of decimals point coordinates keep.
const coordinatePrecision = 5

// FormatGeometry renders a stored geometry as comparable text. Points become
// "lon, lat" rounded to five decimals, other shapes become WKT.
func FormatGeometry(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	geom, err := parseGeometry(raw)
	if err != nil {
		return nil, err
	}
	if geom == nil {
		return nil, nil
	}

	if point, ok := geom.(orb.Point); ok {
		return formatPoint(point), nil
	}
	return wkt.MarshalString(geom), nil
}

func formatPoint(point orb.Point) string {
	return roundCoordinate(point.Lon()) + ", " + roundCoordinate(point.Lat())
}

// roundCoordinate rounds to five decimals and prints the shortest form of
// the rounded value, keeping a trailing ".0" on whole numbers.
func roundCoordinate(value float64) string {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(value, 'f', coordinatePrecision, 64), 64)
	text := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return text
}

func parseGeometry(raw any) (orb.Geometry, error) {
	switch typed := raw.(type) {
	case orb.Geometry:
		return typed, nil
	case map[string]any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedGeometry, err)
		}
		return parseGeoJSON(encoded)
	case json.RawMessage:
		return parseGeometryText(string(typed))
	case []byte:
		return parseBinary(typed)
	case string:
		return parseGeometryText(typed)
	case []any:
		return parsePair(typed)
	default:
		return nil, fmt.Errorf("%w: unsupported value %T", errMalformedGeometry, raw)
	}
}

func parseGeometryText(text string) (orb.Geometry, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(text, "{"):
		return parseGeoJSON([]byte(text))
	case strings.HasPrefix(text, "\""):
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedGeometry, err)
		}
		return parseGeometryText(inner)
	case strings.HasPrefix(strings.ToUpper(text), "SRID="):
		_, rest, ok := strings.Cut(text, ";")
		if !ok {
			return nil, fmt.Errorf("%w: srid without geometry", errMalformedGeometry)
		}
		return parseGeometryText(rest)
	}

	if decoded, err := hex.DecodeString(text); err == nil {
		return parseBinary(decoded)
	}

	geom, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedGeometry, err)
	}
	return geom, nil
}

func parseGeoJSON(data []byte) (orb.Geometry, error) {
	geometry, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedGeometry, err)
	}
	return geometry.Geometry(), nil
}

func parseBinary(data []byte) (orb.Geometry, error) {
	if geom, _, err := ewkb.Unmarshal(data); err == nil {
		return geom, nil
	}
	geom, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedGeometry, err)
	}
	return geom, nil
}

func parsePair(pair []any) (orb.Geometry, error) {
	if len(pair) != 2 {
		return nil, fmt.Errorf("%w: coordinate pair has %d values", errMalformedGeometry, len(pair))
	}
	lon, okLon := toFloat(pair[0])
	lat, okLat := toFloat(pair[1])
	if !okLon || !okLat {
		return nil, fmt.Errorf("%w: non numeric coordinates", errMalformedGeometry)
	}
	return orb.Point{lon, lat}, nil
}

// legacyGeometry reads the geometry out of a serialized revision payload of
// the form [{"fields": {"geom": ...}}].
func legacyGeometry(serialized json.RawMessage) (any, bool) {
	if len(serialized) == 0 {
		return nil, false
	}

	var objects []struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(serialized, &objects); err != nil || len(objects) == 0 {
		return nil, false
	}
	value, ok := objects[0].Fields["geom"]
	if !ok {
		return nil, false
	}
	return value, true
}
