package tms

import (
	"regexp"
	"strings"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/ingest/textnorm"
)

// TBC names a side that has not been decided yet.
const TBC = "TBC"

// titlePattern reads "Home v Away (Type)". Either side may be blank and the
// type suffix is optional.
var titlePattern = regexp.MustCompile(`^(?:([A-Za-z0-9/& -]+) )?v(?: ([A-Za-z0-9/& -]+))?(?: \((.+)\))?$`)

// Title is the decoded match link text.
type Title struct {
	HomeID   string
	HomeName string
	AwayID   string
	AwayName string
	Type     string
}

// ParseTitle decodes a TMS match title such as "Netherlands v Belgium (Final)".
// Diacritics are stripped before matching.
func ParseTitle(title string) (Title, error) {
	m := titlePattern.FindStringSubmatch(textnorm.StripDiacritics(title))
	if m == nil {
		return Title{}, ingest.NewParseError(matchesComponent, "unrecognised match title", title)
	}

	home := side(m[1])
	away := side(m[2])
	return Title{
		HomeID:   strings.ToLower(home),
		HomeName: home,
		AwayID:   strings.ToLower(away),
		AwayName: away,
		Type:     m[3],
	}, nil
}

func side(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return TBC
	}
	return name
}
