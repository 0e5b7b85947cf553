package lookup

import (
	"os"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/fortuna/hockeysync/internal/ingest/textnorm"
	"github.com/fortuna/hockeysync/internal/store"
)

// GenderRule assigns Gender to any text containing Keyword as whole words.
type GenderRule struct {
	Keyword string       `yaml:"keyword"`
	Gender  store.Gender `yaml:"gender"`
}

// Tables holds the read-only lookup data the fetchers depend on. Build it
// with Default, New or LoadFile; the zero value knows nothing.
type Tables struct {
	Clubs       map[string]string `yaml:"clubs"`
	GenderRules []GenderRule      `yaml:"gender_rules"`
	Timezones   map[string]string `yaml:"timezones"`

	clubIndex map[string]string
	rules     []compiledRule
	zones     map[string]string
}

type compiledRule struct {
	needle string
	gender store.Gender
}

// New builds lookup tables from raw maps.
func New(clubs map[string]string, rules []GenderRule, timezones map[string]string) *Tables {
	t := &Tables{Clubs: clubs, GenderRules: rules, Timezones: timezones}
	t.prepare()
	return t
}

// Default returns the built-in tables.
func Default() *Tables {
	return New(defaultClubs(), defaultGenderRules(), defaultTimezones())
}

// LoadFile reads tables from a YAML file. Sections missing from the file
// keep their built-in defaults.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read lookup tables")
	}

	var raw Tables
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse lookup tables")
	}

	clubs, rules, zones := raw.Clubs, raw.GenderRules, raw.Timezones
	if len(clubs) == 0 {
		clubs = defaultClubs()
	}
	if len(rules) == 0 {
		rules = defaultGenderRules()
	}
	if len(zones) == 0 {
		zones = defaultTimezones()
	}
	for _, rule := range rules {
		switch rule.Gender {
		case store.GenderMen, store.GenderWomen, store.GenderMixed:
		default:
			return nil, errors.Newf("gender rule %q has invalid gender %q", rule.Keyword, rule.Gender)
		}
	}
	return New(clubs, rules, zones), nil
}

func (t *Tables) prepare() {
	t.clubIndex = make(map[string]string, len(t.Clubs))
	for name, id := range t.Clubs {
		t.clubIndex[textnorm.Fold(name)] = id
	}

	t.rules = make([]compiledRule, 0, len(t.GenderRules))
	for _, rule := range t.GenderRules {
		needle := words(rule.Keyword)
		if needle == "" {
			continue
		}
		t.rules = append(t.rules, compiledRule{needle: " " + needle + " ", gender: rule.Gender})
	}

	t.zones = make(map[string]string, len(t.Timezones))
	for alias, zone := range t.Timezones {
		t.zones[strings.ToUpper(strings.TrimSpace(alias))] = zone
	}
}

// ClubID resolves a club display name to its canonical id. Names missing
// from the table fall back to a slug of the name.
func (t *Tables) ClubID(name string) string {
	if id, ok := t.clubIndex[textnorm.Fold(name)]; ok {
		return id
	}
	return textnorm.Slug(name)
}

// Gender derives a gender from competition metadata using the first
// matching rule.
func (t *Tables) Gender(text string) store.Gender {
	haystack := " " + words(text) + " "
	for _, rule := range t.rules {
		if strings.Contains(haystack, rule.needle) {
			return rule.gender
		}
	}
	return store.GenderUnknown
}

// TimezoneAliases returns the alias table keyed by upper-case abbreviation.
func (t *Tables) TimezoneAliases() map[string]string {
	return t.zones
}

// words folds s and keeps only letter/digit runs separated by single spaces.
func words(s string) string {
	return strings.Join(strings.FieldsFunc(textnorm.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
