package store

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

// Source identifies the upstream system a record was fetched from.
type Source string

const (
	SourceKNHB Source = "knhb"
	SourceTMS  Source = "tms"
)

// Gender classifies a match. It is always derived from competition
// metadata, never read from a source directly.
type Gender string

const (
	GenderUnknown Gender = "unknown"
	GenderMen     Gender = "men"
	GenderWomen   Gender = "women"
	GenderMixed   Gender = "mixed"
)

// ErrEmptyID is returned by setters that require a non-empty identifier.
var ErrEmptyID = errors.New("identifier must not be empty")

// Competition is a tournament or league tracked by a source.
type Competition struct {
	ID       string `json:"id" db:"competition_id"`
	Source   Source `json:"source" db:"source"`
	Name     string `json:"name" db:"name"`
	Location string `json:"location" db:"location"`
	Type     string `json:"type" db:"type"`
	Index    int    `json:"index" db:"index"`
}

// NewCompetition creates an empty competition for the given source and fetch index.
func NewCompetition(source Source, index int) *Competition {
	return &Competition{Source: source, Index: index}
}

// SetID sets the source-unique identifier.
func (c *Competition) SetID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyID
	}
	c.ID = id
	return nil
}

// Club is the club a team belongs to.
type Club struct {
	ID   string `json:"id" db:"club_id"`
	Name string `json:"name" db:"club_name"`
}

// Team is one side of a match. Club is nil for teams without a club
// affiliation (school or ad-hoc teams).
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Club *Club  `json:"club,omitempty"`
}

// Official is a match-assigned officiating person. Fetchers only attach
// officials, they never construct them.
type Official struct {
	ID      string `json:"id" db:"official_id"`
	Name    string `json:"name" db:"name"`
	Role    string `json:"role" db:"role"`
	Country string `json:"country,omitempty" db:"country"`
}

// Match is a single fixture within a competition.
type Match struct {
	ID          string       `json:"id" db:"match_id"`
	Competition *Competition `json:"-"`
	Index       int          `json:"index" db:"index"`
	MatchDate   time.Time    `json:"match_date" db:"match_date"`
	Venue       string       `json:"venue" db:"venue"`
	HomeTeam    Team         `json:"home_team"`
	AwayTeam    Team         `json:"away_team"`
	Gender      Gender       `json:"gender" db:"gender"`
	Completed   bool         `json:"completed" db:"completed"`
	Score       string       `json:"score,omitempty" db:"score"`
	Type        string       `json:"type,omitempty" db:"match_type"`
	Officials   []*Official  `json:"officials"`
}

// NewMatch creates an empty match owned by competition.
func NewMatch(competition *Competition) *Match {
	return &Match{
		Competition: competition,
		Gender:      GenderUnknown,
		Officials:   []*Official{},
	}
}

// CompetitionID returns the owning competition's id, or "" when detached.
func (m *Match) CompetitionID() string {
	if m.Competition == nil {
		return ""
	}
	return m.Competition.ID
}

// MarshalJSON flattens the competition reference to its id.
func (m *Match) MarshalJSON() ([]byte, error) {
	type plain Match
	return sonic.Marshal(struct {
		CompetitionID string `json:"competition_id"`
		plain
	}{
		CompetitionID: m.CompetitionID(),
		plain:         plain(*m),
	})
}

// SetID sets the source-unique identifier.
func (m *Match) SetID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyID
	}
	m.ID = id
	return nil
}

// SetMatchDate stores the kickoff time normalized to UTC.
func (m *Match) SetMatchDate(t time.Time) {
	m.MatchDate = t.UTC()
}

func (m *Match) SetHomeTeam(id, name string, club *Club) {
	m.HomeTeam = Team{ID: id, Name: name, Club: club}
}

func (m *Match) SetAwayTeam(id, name string, club *Club) {
	m.AwayTeam = Team{ID: id, Name: name, Club: club}
}

// SetGender falls back to GenderUnknown for an empty value.
func (m *Match) SetGender(g Gender) {
	if g == "" {
		g = GenderUnknown
	}
	m.Gender = g
}

func (m *Match) SetCompleted(completed bool) {
	m.Completed = completed
}

// SetScore records a result string. Empty text leaves the score unset.
func (m *Match) SetScore(score string) {
	score = strings.TrimSpace(score)
	if score == "" {
		return
	}
	m.Score = score
}

func (m *Match) SetType(matchType string) {
	m.Type = matchType
}

// SetOfficials replaces the officials list; nil becomes an empty list.
func (m *Match) SetOfficials(officials []*Official) {
	if officials == nil {
		officials = []*Official{}
	}
	m.Officials = officials
}
