// Package sheets fetches the club's book list from a published spreadsheet.
// The source is read-only and flaky by nature, so every failure degrades to
// an embedded sample dataset instead of surfacing an error: book commands
// keep working when the sheet does not.
package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log15 "github.com/inconshreveable/log15/v3"
)

// Row cells, in sheet column order.
const (
	ColTitle = iota
	ColAuthor
	ColStatus
	ColLink
	ColRating
)

// Book statuses as they appear in the sheet's status column.
const (
	StatusReading  = "reading"
	StatusFinished = "finished"
	StatusBacklog  = "backlog"
)

// Header is the first row of every dataset; callers skip it.
var Header = []string{"Title", "Author", "Status", "Link", "Rating"}

// FallbackRows keeps the book commands functional when the sheet cannot be
// reached.
var FallbackRows = [][]string{
	Header,
	{"Piranesi", "Susanna Clarke", StatusReading, "", ""},
	{"The Dispossessed", "Ursula K. Le Guin", StatusFinished, "", "4.5"},
	{"Annihilation", "Jeff VanderMeer", StatusFinished, "", "3.5"},
	{"Blindsight", "Peter Watts", StatusBacklog, "", ""},
}

// Source fetches tabular rows from a spreadsheet's CSV export.
type Source struct {
	baseURL string
	http    *http.Client
	log     log15.Logger
}

// NewSource builds a source over baseURL; the sheet name is appended as a
// query value per request.
func NewSource(baseURL string, logger log15.Logger) *Source {
	return &Source{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger.New("module", "sheets"),
	}
}

// FetchRows returns the sheet's rows, header first. It never returns an
// error: any failure is logged and the fallback dataset is returned.
func (s *Source) FetchRows(ctx context.Context, sheetName string) [][]string {
	rows, err := s.fetch(ctx, sheetName)
	if err != nil {
		s.log.Warn("sheet fetch failed, using fallback data", "sheet", sheetName, "err", err)
		return FallbackRows
	}
	return rows
}

func (s *Source) fetch(ctx context.Context, sheetName string) ([][]string, error) {
	u := s.baseURL + "?sheet=" + url.QueryEscape(sheetName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheet responded with %s", resp.Status)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}
	return rows, nil
}
