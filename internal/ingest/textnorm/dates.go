package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultKNHBZone is the zone KNHB local datetimes are expressed in.
const DefaultKNHBZone = "Europe/Amsterdam"

var knhbLocalLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

var tmsLayouts = []string{
	"Mon 02 Jan 2006 15:04",
	"Mon 2 Jan 2006 15:04",
	"02 Jan 2006 15:04",
	"2 Jan 2006 15:04",
	"02 January 2006 15:04",
	"2 January 2006 15:04",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

var offsetZone = regexp.MustCompile(`^(?:UTC|GMT)?\s*([+-])(\d{1,2})(?::?(\d{2}))?$`)

// KNHBToUTC converts a KNHB datetime to UTC. Values carrying an offset
// (RFC 3339) keep it; local values are read in loc.
func KNHBToUTC(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range knhbLocalLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf("unrecognised datetime %q", value)
}

// TMSToUTC converts the text of a TMS date cell, read in the zone named by
// its data-timezone attribute, to UTC. aliases maps zone abbreviations to
// zone names or offsets.
func TMSToUTC(text, zone string, aliases map[string]string) (time.Time, error) {
	text = CollapseSpace(text)
	if text == "" {
		return time.Time{}, errors.New("empty date text")
	}

	loc, err := ResolveZone(zone, aliases)
	if err != nil {
		return time.Time{}, err
	}

	for _, layout := range tmsLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf("unrecognised date %q", text)
}

// ResolveZone turns a zone designator into a location. It accepts IANA
// names, UTC/GMT, numeric offsets such as "GMT+2" or "+05:30", and any
// alias present in aliases.
func ResolveZone(zone string, aliases map[string]string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil, errors.New("empty timezone")
	}
	if alias, ok := aliases[strings.ToUpper(zone)]; ok {
		zone = alias
	}

	switch strings.ToUpper(zone) {
	case "UTC", "GMT", "Z":
		return time.UTC, nil
	}

	if m := offsetZone.FindStringSubmatch(strings.ToUpper(zone)); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, errors.Newf("offset out of range in timezone %q", zone)
		}
		seconds := hours*3600 + minutes*60
		if m[1] == "-" {
			seconds = -seconds
		}
		return time.FixedZone(zone, seconds), nil
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown timezone %q", zone)
	}
	return loc, nil
}
