package tawhiri

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lydakis/trajbridge/internal/engine"
)

// Profiles understood by the Tawhiri v1 API.
const (
	ProfileStandard = "standard_profile"
	ProfileFloat    = "float_profile"
)

const datetimeLayout = "2006-01-02T15:04:05Z"

var profileFields = map[string][]string{
	ProfileStandard: {"ascent_rate", "burst_altitude", "descent_rate"},
	ProfileFloat:    {"ascent_rate", "float_altitude", "stop_datetime"},
}

// normalize validates a prediction payload the way Tawhiri's request parser
// does and returns the canonical query parameters.
func normalize(payload engine.Payload) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid("payload is not a JSON object: %v", err)
	}
	if raw == nil {
		return nil, invalid("payload is not a JSON object")
	}

	out := make(map[string]string)

	profile := ProfileStandard
	if v, ok := raw["profile"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, invalid("profile: must be a string")
		}
		profile = s
	}
	required, ok := profileFields[profile]
	if !ok {
		return nil, invalid("profile: unknown profile %q", profile)
	}
	out["profile"] = profile

	lat, err := numberField(raw, "launch_latitude")
	if err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 {
		return nil, invalid("launch_latitude: %v out of range [-90, 90]", lat)
	}
	out["launch_latitude"] = formatFloat(lat)

	lon, err := numberField(raw, "launch_longitude")
	if err != nil {
		return nil, err
	}
	out["launch_longitude"] = formatFloat(wrapLongitude(lon))

	launch, err := timeField(raw, "launch_datetime")
	if err != nil {
		return nil, err
	}
	out["launch_datetime"] = launch.Format(datetimeLayout)

	if _, present := raw["launch_altitude"]; present {
		alt, err := numberField(raw, "launch_altitude")
		if err != nil {
			return nil, err
		}
		out["launch_altitude"] = formatFloat(alt)
	}

	if _, present := raw["dataset"]; present {
		ds, err := timeField(raw, "dataset")
		if err != nil {
			return nil, err
		}
		out["dataset"] = ds.Format(datetimeLayout)
	}

	for _, name := range required {
		if name == "stop_datetime" {
			stop, err := timeField(raw, name)
			if err != nil {
				return nil, err
			}
			if !stop.After(launch) {
				return nil, invalid("stop_datetime: must be after launch_datetime")
			}
			out[name] = stop.Format(datetimeLayout)
			continue
		}
		v, err := numberField(raw, name)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, invalid("%s: must be > 0, got %v", name, v)
		}
		out[name] = formatFloat(v)
	}

	return out, nil
}

func numberField(raw map[string]any, name string) (float64, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return 0, invalid("%s: missing", name)
	}

	var f float64
	var err error
	switch n := v.(type) {
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, invalid("%s: must be a number", name)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid("%s: must be a number", name)
	}
	return f, nil
}

func timeField(raw map[string]any, name string) (time.Time, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return time.Time{}, invalid("%s: missing", name)
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, invalid("%s: must be an RFC 3339 timestamp", name)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalid("%s: must be an RFC 3339 timestamp", name)
	}
	return t.UTC(), nil
}

// wrapLongitude maps any longitude into [0, 360), the convention Tawhiri uses.
func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", engine.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
