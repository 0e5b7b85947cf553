package tms

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/hockeysync/internal/ingest"
)

// Row decoders address table cells by 1-based column and fail with a
// ParseError naming the column when the expected markup is absent.

func cell(row *goquery.Selection, col int) *goquery.Selection {
	return row.ChildrenFiltered(fmt.Sprintf("td:nth-child(%d)", col)).First()
}

// cellText returns the trimmed text of column col.
func cellText(row *goquery.Selection, col int, component string) (string, error) {
	td := cell(row, col)
	if td.Length() == 0 {
		return "", ingest.NewParseError(component, fmt.Sprintf("missing column %d", col), rowText(row))
	}
	return strings.TrimSpace(td.Text()), nil
}

// cellLink returns the href and trimmed text of the first a[href] in column col.
func cellLink(row *goquery.Selection, col int, component string) (href, text string, err error) {
	link := cell(row, col).Find("a[href]").First()
	if link.Length() == 0 {
		return "", "", ingest.NewParseError(component, fmt.Sprintf("missing link in column %d", col), rowText(row))
	}
	href, _ = link.Attr("href")
	return href, strings.TrimSpace(link.Text()), nil
}

// cellTimezoneSpan returns the raw text and data-timezone attribute of the
// first span[data-timezone] in column col.
func cellTimezoneSpan(row *goquery.Selection, col int, component string) (text, zone string, err error) {
	span := cell(row, col).Find("span[data-timezone]").First()
	if span.Length() == 0 {
		return "", "", ingest.NewParseError(component, fmt.Sprintf("missing date span in column %d", col), rowText(row))
	}
	zone, _ = span.Attr("data-timezone")
	return span.Text(), zone, nil
}

// lastSegment returns the final path segment of href.
func lastSegment(href string) string {
	parts := strings.Split(href, "/")
	return parts[len(parts)-1]
}

// isEmptyListing reports whether rows is the site's "No results" placeholder.
func isEmptyListing(rows *goquery.Selection) bool {
	return rows.Length() == 1 && strings.TrimSpace(rows.First().Text()) == noResults
}

func rowText(row *goquery.Selection) string {
	return truncate(strings.Join(strings.Fields(row.Text()), " "), 120)
}

// truncate keeps the first limit runes of text.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
