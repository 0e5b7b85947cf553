package tms

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/ingest/request"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
)

const (
	competitionsComponent = "TMSCompetitionFetcher"
	matchesComponent      = "TMSMatchFetcher"

	competitionRows = "#admin_list_of_competitions table tbody tr"
	matchRows       = ".tab-content table tbody tr"

	noResults = "No results"
)

// Client holds what the TMS competition and match fetchers share.
type Client struct {
	baseURL   string
	requester *request.Requester
	engine    *reconciliation.Engine
	logger    *logging.Logger
}

// NewClient creates a TMS client against baseURL.
func NewClient(baseURL string, requester *request.Requester, engine *reconciliation.Engine, logger *logging.Logger) *Client {
	if engine == nil {
		engine = reconciliation.NewEngine(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: requester,
		engine:    engine,
		logger:    logger,
	}
}

// CompetitionsURL returns one page of the competition listing. The
// in-progress listing is the site's default view and takes no view parameter.
func (c *Client) CompetitionsURL(mode ingest.Mode, page int) string {
	if mode == ingest.ModeInProgress {
		return fmt.Sprintf("%s/competitions?page=%d", c.baseURL, page)
	}
	return fmt.Sprintf("%s/competitions?view=%s&page=%d", c.baseURL, url.QueryEscape(string(mode)), page)
}

// MatchesURL returns the match listing of a competition.
func (c *Client) MatchesURL(competitionID string) string {
	return fmt.Sprintf("%s/competitions/%s/matches", c.baseURL, url.PathEscape(competitionID))
}
