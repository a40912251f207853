// Package orders reads a published order-status spreadsheet and answers
// "where is my order" questions from it. The sheet is fetched as published
// HTML, parsed into rows, and cached for a short TTL so bursts of questions
// do not hammer the publisher.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"flashbot-backend/internal/cache"
)

const cacheKey = "orders:report"

// Row is one order in the published report. Keys are the canonical column
// names, values are the cell text.
type Row map[string]string

// canonical column names.
const (
	ColOrder    = "pedido"
	ColCustomer = "cliente"
	ColStatus   = "estado"
	ColCarrier  = "transportista"
	ColTracking = "seguimiento"
	ColDate     = "fecha"
	ColNotes    = "notas"
)

// headerSynonyms maps folded header cell text to a canonical column. Sheets
// in the wild use a mix of Spanish and English headings.
var headerSynonyms = map[string]string{
	"pedido":          ColOrder,
	"orden":           ColOrder,
	"order":           ColOrder,
	"numero":          ColOrder,
	"numero de orden": ColOrder,
	"no":              ColOrder,
	"cliente":         ColCustomer,
	"nombre":          ColCustomer,
	"customer":        ColCustomer,
	"name":            ColCustomer,
	"estado":          ColStatus,
	"estatus":         ColStatus,
	"status":          ColStatus,
	"transportista":   ColCarrier,
	"paqueteria":      ColCarrier,
	"carrier":         ColCarrier,
	"seguimiento":     ColTracking,
	"guia":            ColTracking,
	"tracking":        ColTracking,
	"rastreo":         ColTracking,
	"fecha":           ColDate,
	"date":            ColDate,
	"fecha de envio":  ColDate,
	"notas":           ColNotes,
	"observaciones":   ColNotes,
	"notes":           ColNotes,
}

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// fold lowercases and strips accents so "Número" matches "numero".
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Reader fetches, caches and queries the published report.
type Reader struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	cache      cache.Cache
}

// NewReader creates a report reader over the published sheet URL.
func NewReader(url string, ttl time.Duration, timeout time.Duration, c cache.Cache) *Reader {
	return &Reader{
		url:        url,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		cache:      c,
	}
}

// Rows returns the current report rows, served from cache within the TTL.
func (r *Reader) Rows(ctx context.Context) ([]Row, error) {
	data, err := r.cache.GetOrSet(ctx, cacheKey, r.ttl, func() ([]byte, error) {
		rows, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	if err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return rows, nil
}

func (r *Reader) fetch(ctx context.Context) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create report request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report body: %w", err)
	}

	rows, err := ParseReport(string(body))
	if err != nil {
		return nil, err
	}

	log.Printf("[OrdersReader] Fetched report - %d rows", len(rows))
	return rows, nil
}

// ParseReport extracts order rows from the published HTML. The first table
// row whose cells match known headers becomes the column map; every later
// row with an order number becomes a Row.
func ParseReport(markup string) ([]Row, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse report html: %w", err)
	}

	var tableRows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, nodeText(c))
				}
			}
			tableRows = append(tableRows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var columns map[int]string
	var rows []Row
	for _, cells := range tableRows {
		if columns == nil {
			if mapped := matchHeader(cells); mapped != nil {
				columns = mapped
			}
			continue
		}

		row := Row{}
		for i, cell := range cells {
			name, ok := columns[i]
			if !ok {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				row[name] = cell
			}
		}
		if row[ColOrder] != "" {
			rows = append(rows, row)
		}
	}

	if columns == nil {
		return nil, fmt.Errorf("report has no recognizable header row")
	}
	return rows, nil
}

// matchHeader maps cell indexes to canonical columns. A row qualifies as the
// header only if it names an order column.
func matchHeader(cells []string) map[int]string {
	mapped := make(map[int]string)
	hasOrder := false
	for i, cell := range cells {
		if name, ok := headerSynonyms[fold(cell)]; ok {
			mapped[i] = name
			if name == ColOrder {
				hasOrder = true
			}
		}
	}
	if !hasOrder {
		return nil
	}
	return mapped
}

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
	return strings.Join(strings.Fields(b.String()), " ")
}

// intentKeywords mark a message as an order-status question.
var intentKeywords = []string{
	"pedido", "orden", "order", "envio", "envío", "enviado",
	"seguimiento", "tracking", "rastrear", "rastreo", "guia", "guía",
	"paquete", "entrega", "entregado",
}

// LooksLikeOrderIntent reports whether a chat message is asking about an
// order rather than about products.
func LooksLikeOrderIntent(message string) bool {
	folded := fold(message)
	for _, kw := range intentKeywords {
		if strings.Contains(folded, fold(kw)) {
			return true
		}
	}
	return false
}

// DetectOrderNumber extracts the most likely order number from free text:
// the longest run of digits, first one on ties. Empty when the text has no
// digits.
func DetectOrderNumber(message string) string {
	best := ""
	current := strings.Builder{}
	flush := func() {
		if current.Len() > len(best) {
			best = current.String()
		}
		current.Reset()
	}
	for _, r := range message {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return best
}

// digits strips everything but digits, so "#1042" matches "1042".
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup finds the report row whose order number matches. Matching compares
// digit runs only, so formatting like "#1042" or "ORD-1042" is irrelevant.
func (r *Reader) Lookup(ctx context.Context, orderNumber string) (Row, error) {
	want := digits(orderNumber)
	if want == "" {
		return nil, nil
	}

	rows, err := r.Rows(ctx)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if digits(row[ColOrder]) == want {
			return row, nil
		}
	}
	return nil, nil
}

// renderOrder lists the columns shown to the customer, in display order.
var renderOrder = []struct {
	col   string
	label string
}{
	{ColOrder, "Pedido"},
	{ColCustomer, "Cliente"},
	{ColStatus, "Estado"},
	{ColCarrier, "Transportista"},
	{ColTracking, "Seguimiento"},
	{ColDate, "Fecha"},
	{ColNotes, "Notas"},
}

// RenderVertical formats one order as a label-per-line markdown block.
func RenderVertical(row Row) string {
	var b strings.Builder
	for _, f := range renderOrder {
		if v := row[f.col]; v != "" {
			fmt.Fprintf(&b, "**%s:** %s\n", f.label, v)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTable formats multiple orders as a markdown table. Only columns
// present in at least one row appear.
func RenderTable(rows []Row) string {
	var cols []struct {
		col   string
		label string
	}
	for _, f := range renderOrder {
		for _, row := range rows {
			if row[f.col] != "" {
				cols = append(cols, f)
				break
			}
		}
	}
	if len(cols) == 0 {
		return ""
	}

	var b strings.Builder
	for i, f := range cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(f.label)
	}
	b.WriteString("\n")
	for i := range cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("---")
	}
	b.WriteString("\n")
	for _, row := range rows {
		for i, f := range cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(row[f.col])
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
