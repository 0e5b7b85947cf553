package tms

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hockeysync/internal/ingest/request"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
)

func newTestClient(baseURL string) *Client {
	requester := request.New(request.Config{
		Component: "tms-test",
		Logger:    logging.NewNop(),
		Sleep:     func(context.Context, time.Duration) error { return nil },
	})
	return NewClient(baseURL, requester, reconciliation.NewEngine(nil), logging.NewNop())
}

func competitionRow(id, name, location, kind string) string {
	return fmt.Sprintf(`<tr>
  <td>logo</td>
  <td><a href="/competitions/%s">%s</a></td>
  <td>2024</td>
  <td> %s </td>
  <td> %s </td>
</tr>`, id, name, location, kind)
}

func competitionsPage(rows ...string) string {
	return `<html><body><div id="admin_list_of_competitions"><table><thead><tr><th>x</th></tr></thead><tbody>` +
		strings.Join(rows, "\n") + `</tbody></table></div></body></html>`
}

func noResultsCompetitions() string {
	return competitionsPage(`<tr><td colspan="5"> No results </td></tr>`)
}

func matchRowHTML(index, date, zone, id, title, score, status, venue string) string {
	return fmt.Sprintf(`<tr>
  <td>#%s</td>
  <td><span data-timezone="%s">%s</span></td>
  <td><a href="/competitions/c1/matches/%s">%s</a></td>
  <td> %s </td>
  <td> %s </td>
  <td> %s </td>
</tr>`, index, zone, date, id, title, score, status, venue)
}

func matchesPage(rows ...string) string {
	return `<html><body><div class="tab-content"><div class="tab-pane"><table><tbody>` +
		strings.Join(rows, "\n") + `</tbody></table></div></div></body></html>`
}

func firstRow(t *testing.T, html, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	row := doc.Find(selector).First()
	require.Equal(t, 1, row.Length())
	return row
}
