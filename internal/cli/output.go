package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"marketbot/internal/service/inventory/application"
	"marketbot/internal/service/inventory/client"
	"marketbot/internal/service/inventory/domain"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f OutputFormatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result 输出一次操作的结果，业务拒绝时返回 ErrRejected
func (f OutputFormatter) Result(res domain.Result) error {
	if f.Format == "json" {
		if err := f.writeJSON(res); err != nil {
			return err
		}
	} else {
		f.resultText(res)
	}
	if !res.OK {
		return ErrRejected
	}
	return nil
}

func (f OutputFormatter) resultText(res domain.Result) {
	if res.OK {
		fmt.Fprintf(f.Writer, "OK: %s", res.Reason)
		if res.Outcome != "" {
			fmt.Fprintf(f.Writer, " [%s]", res.Outcome)
		}
		fmt.Fprintln(f.Writer)
	} else {
		fmt.Fprintf(f.Writer, "REJECTED (%s): %s", res.Kind, res.Reason)
		if res.Available != nil {
			fmt.Fprintf(f.Writer, " [available=%d]", *res.Available)
		}
		fmt.Fprintln(f.Writer)
	}
	for _, it := range res.Items {
		fmt.Fprintf(f.Writer, "  %-24s qty=%-4d %s", it.SKU, it.Qty, it.Outcome)
		if it.Detail != "" {
			fmt.Fprintf(f.Writer, " (%s)", it.Detail)
		}
		fmt.Fprintln(f.Writer)
	}
}

func (f OutputFormatter) Availability(a client.Availability) error {
	if f.Format == "json" {
		return f.writeJSON(a)
	}
	if !a.Found {
		fmt.Fprintf(f.Writer, "%s: not found\n", a.SKU)
		return nil
	}
	fmt.Fprintf(f.Writer, "%s: available=%d enough_for_%d=%t\n", a.SKU, a.Available, a.Qty, a.Enough)
	return nil
}

type stockRow struct {
	Owner     string `json:"owner"`
	SKU       string `json:"sku"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

func stockRows(ds domain.Dataset) []stockRow {
	var rows []stockRow
	ds.Walk(func(owner string, sku domain.SKU, c domain.Counters) {
		rows = append(rows, stockRow{
			Owner:     owner,
			SKU:       sku.String(),
			Stock:     *c.Stock,
			Reserved:  *c.Reserved,
			Available: max(c.Available(), 0),
		})
	})
	return rows
}

func (f OutputFormatter) Stock(ds domain.Dataset) error {
	rows := stockRows(ds)
	if f.Format == "json" {
		return f.writeJSON(rows)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tSKU\tSTOCK\tRESERVED\tAVAILABLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.Owner, r.SKU, r.Stock, r.Reserved, r.Available)
	}
	return tw.Flush()
}

func (f OutputFormatter) Drifts(drifts []application.Drift, fixed bool) error {
	if f.Format == "json" {
		return f.writeJSON(drifts)
	}
	if len(drifts) == 0 {
		fmt.Fprintln(f.Writer, "ledger is consistent with reserved orders")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tSKU\tSTOCK\tLEDGER\tEXPECTED")
	for _, d := range drifts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", d.Owner, d.SKU, d.Stock, d.Ledger, d.Expected)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if fixed {
		fmt.Fprintf(f.Writer, "fixed %d sku(s)\n", len(drifts))
	} else {
		fmt.Fprintln(f.Writer, "run with --fix to repair")
	}
	return nil
}
