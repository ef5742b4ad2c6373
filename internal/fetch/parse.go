package fetch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/danekpavel/precipitation/internal/dates"
	"github.com/danekpavel/precipitation/internal/models"
)

// Markers located in the source page. The page-count line reads
// "Celkový počet stránek: N" and the date header starts with "Datum".
var (
	trailingNumberPattern = regexp.MustCompile(`[0-9]+$`)
	dayFirstDatePattern   = regexp.MustCompile(`[0-9]+\.[0-9]+\.[0-9]{4}`)
)

// tableContainerClass wraps the precipitation table in the source markup.
const tableContainerClass = "tsrz"

// extractPageCount finds the total number of subpages for the current day.
func extractPageCount(doc *html.Node) (int, error) {
	div := findNode(doc, func(n *html.Node) bool {
		return isElement(n, "div") && strings.HasPrefix(nodeText(n), "Celkov")
	})
	if div == nil {
		return 0, &PaginationError{Marker: "page count"}
	}
	m := trailingNumberPattern.FindString(nodeText(div))
	if m == "" {
		return 0, &PaginationError{Marker: "page count"}
	}
	return strconv.Atoi(m)
}

// extractDate finds the measurement date embedded in the page, written
// day-first in a header cell starting with "Datum".
func extractDate(doc *html.Node) (time.Time, error) {
	th := findNode(doc, func(n *html.Node) bool {
		return isElement(n, "th") && strings.HasPrefix(nodeText(n), "Datum")
	})
	if th == nil {
		return time.Time{}, &PaginationError{Marker: "date"}
	}
	m := dayFirstDatePattern.FindString(nodeText(th))
	if m == "" {
		return time.Time{}, &PaginationError{Marker: "date"}
	}
	return dates.Parse(m)
}

// extractTable reads the precipitation table of one page: the header row
// (cell names) and the data rows as raw strings.
func extractTable(doc *html.Node) (header []string, rows [][]string, err error) {
	container := findNode(doc, func(n *html.Node) bool {
		return isElement(n, "div") && hasClass(n, tableContainerClass)
	})
	if container == nil {
		return nil, nil, &PaginationError{Marker: "precipitation table"}
	}
	table := findNode(container, func(n *html.Node) bool {
		return isElement(n, "table")
	})
	if table == nil {
		return nil, nil, &PaginationError{Marker: "precipitation table"}
	}

	trs := collectNodes(table, func(n *html.Node) bool {
		return isElement(n, "tr")
	})
	if len(trs) == 0 {
		return nil, nil, &PaginationError{Marker: "precipitation table"}
	}

	header = cellTexts(trs[0], func(n *html.Node) bool {
		return isElement(n, "th") || isElement(n, "td")
	})
	for _, tr := range trs[1:] {
		rows = append(rows, cellTexts(tr, func(n *html.Node) bool {
			return isElement(n, "td")
		}))
	}
	return header, rows, nil
}

// projectTable keeps only the station column and the 24 hour columns,
// dropping anything else the source may emit, and parses amounts. Cells
// that are empty or non-numeric become nil amounts.
func projectTable(header []string, rows [][]string) (*models.WideDayTable, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}

	stationIdx, ok := cols[stationColumn]
	if !ok {
		return nil, fmt.Errorf("source table is missing column %q", stationColumn)
	}
	hourIdx := make([]int, models.HoursPerDay)
	for h := 1; h <= models.HoursPerDay; h++ {
		idx, ok := cols[strconv.Itoa(h)]
		if !ok {
			return nil, fmt.Errorf("source table is missing hour column %q", strconv.Itoa(h))
		}
		hourIdx[h-1] = idx
	}

	table := &models.WideDayTable{Rows: make([]models.WideRow, 0, len(rows))}
	for _, cells := range rows {
		if stationIdx >= len(cells) || cells[stationIdx] == "" {
			continue
		}
		row := models.WideRow{Station: cells[stationIdx]}
		for h := 0; h < models.HoursPerDay; h++ {
			if hourIdx[h] >= len(cells) {
				continue
			}
			if amount, err := strconv.ParseFloat(cells[hourIdx[h]], 64); err == nil {
				v := amount
				row.Hours[h] = &v
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// findNode returns the first node in document order satisfying pred.
func findNode(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// collectNodes returns all nodes satisfying pred, in document order.
func collectNodes(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// cellTexts returns the trimmed text of every direct cell of a table row.
func cellTexts(tr *html.Node, isCell func(*html.Node) bool) []string {
	var texts []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if isCell(c) {
			texts = append(texts, nodeText(c))
		}
	}
	return texts
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// nodeText concatenates all text content below n, trimmed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
