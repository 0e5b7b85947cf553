package knhb

// MatchesPage is one page of the KNHB match listing.
type MatchesPage struct {
	Data  []MatchRow `json:"data"`
	Links Links      `json:"links"`
}

// Links carries the pagination cursors. Next is null or empty on the last page.
type Links struct {
	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

// HasNext reports whether another page follows.
func (l Links) HasNext() bool {
	return l.Next != nil && *l.Next != ""
}

// MatchRow is a single match as served by the KNHB API. Scores are pointers
// because an absent score and a score of zero mean different things.
type MatchRow struct {
	ID           string   `json:"id"`
	Location     Location `json:"location"`
	HomeScore    *int     `json:"home_score"`
	HomeShootout *int     `json:"home_shootout"`
	HomeTeam     TeamRow  `json:"home_team"`
	AwayScore    *int     `json:"away_score"`
	AwayShootout *int     `json:"away_shootout"`
	AwayTeam     TeamRow  `json:"away_team"`
	Datetime     string   `json:"datetime"`
	Status       string   `json:"status"`
}

type Location struct {
	City        string `json:"city"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Description string `json:"description"`
}

type TeamRow struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ClubName *string `json:"club_name"`
}

// statusOfficial marks a match whose result has been confirmed.
const statusOfficial = "Official"
