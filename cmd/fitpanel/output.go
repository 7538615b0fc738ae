package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// table renders rows as aligned columns.
type table struct {
	headers []string
	rows    [][]string
	w       io.Writer
}

func newTable(w io.Writer, headers ...string) *table {
	return &table{headers: headers, w: w}
}

func (t *table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

func (t *table) Render() {
	tw := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	_ = tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRunID(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

// runOutput is the JSON shape of a finished run.
type runOutput struct {
	RunID            string            `json:"run_id"`
	Method           string            `json:"method"`
	Statuses         map[string]string `json:"statuses"`
	DerivedTriggered bool              `json:"derived_triggered"`
	DurationMS       int64             `json:"duration_ms"`
}

func toRunOutput(res *application.RunResult) runOutput {
	return runOutput{
		RunID:            formatRunID(res.RunID),
		Method:           string(res.Method),
		Statuses:         statusesByName(res.Statuses),
		DerivedTriggered: res.DerivedTriggered,
		DurationMS:       res.Duration.Milliseconds(),
	}
}

// ledgerOutput is the JSON shape of one history entry.
type ledgerOutput struct {
	RunID    string            `json:"run_id"`
	Method   string            `json:"method"`
	Truncate bool              `json:"truncate"`
	Statuses map[string]string `json:"statuses"`
}

func toLedgerOutput(e model.LedgerEntry) ledgerOutput {
	return ledgerOutput{
		RunID:    formatRunID(e.RunID),
		Method:   string(e.Method),
		Truncate: e.Truncate,
		Statuses: statusesByName(e.Statuses),
	}
}

func statusesByName(in map[model.ProviderID]string) map[string]string {
	out := make(map[string]string, len(in))
	for p, s := range in {
		out[string(p)] = s
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
