package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/events"
	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const historyRows = 5

// now is replaced in tests.
var now = time.Now

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func paint(s, color string, enabled bool) string {
	if !enabled || color == "" {
		return s
	}
	return color + s + ansiReset
}

func statusColor(status string) string {
	switch status {
	case model.ItemStatusAvailable:
		return ansiGreen
	case model.ItemStatusCheckedOut, model.ItemStatusInTransit:
		return ansiYellow
	case model.ItemStatusRemoved, model.ItemStatusDamaged:
		return ansiRed
	default:
		return ansiBlue
	}
}

func ago(t time.Time) string {
	return humanize.RelTime(t, now(), "ago", "from now")
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// renderItem draws the item panel: a key/value summary and recent history.
func renderItem(d *model.ItemDetail, color bool) string {
	item := d.Item
	name := item.ProductName
	if d.Product != nil {
		name = d.Product.Name
	}

	tw := newTable()
	tw.SetTitle(name)
	tw.AppendRow(table.Row{"UUID", item.UUID})
	if item.UPC != "" {
		tw.AppendRow(table.Row{"UPC", item.UPC})
	}
	tw.AppendRow(table.Row{"Status", paint(item.Status, statusColor(item.Status), color)})
	if item.HolderName != "" {
		tw.AppendRow(table.Row{"Holder", fmt.Sprintf("%s (%s)", item.HolderName, item.HolderType)})
	}
	tw.AppendRow(table.Row{"Condition", item.Condition})
	if item.Notes != "" {
		tw.AppendRow(table.Row{"Notes", item.Notes})
	}
	if item.RemovalReason != "" {
		tw.AppendRow(table.Row{"Removed", item.RemovalReason})
	}
	if d.InPrintQueue {
		tw.AppendRow(table.Row{"Label", "waiting to be printed"})
	}
	tw.AppendRow(table.Row{"Updated", ago(item.UpdatedAt)})

	var b strings.Builder
	b.WriteString(tw.Render())
	b.WriteString("\n")

	if len(d.Transactions) > 0 {
		b.WriteString(renderHistory(d.Transactions, historyRows))
		b.WriteString("\n")
	}
	return b.String()
}

func renderHistory(txs []model.Transaction, limit int) string {
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"When", "Type", "From", "To", "By", "Notes"})
	for _, t := range txs {
		tw.AppendRow(table.Row{ago(t.CreatedAt), t.Type, t.FromHolderName, t.ToHolderName, t.Username, t.Notes})
	}
	return tw.Render()
}

func renderScan(res *inventory.ScanResult, color bool) string {
	switch {
	case res.Detail != nil:
		return renderItem(res.Detail, color)
	case res.UPC != nil:
		return renderUPC(res.UPC)
	default:
		return fmt.Sprintf("%s: %s\n", res.Kind, res.Code)
	}
}

func renderUPC(m *inventory.UPCMatch) string {
	var b strings.Builder
	name := "unknown product"
	if m.Product != nil {
		name = m.Product.Name
	}
	fmt.Fprintf(&b, "UPC %s: %s, %d item(s)\n", m.UPC, name, len(m.Items))
	if len(m.Items) == 0 {
		return b.String()
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"UUID", "Status", "Holder", "Label"})
	for _, it := range m.Items {
		label := "queued"
		if it.LabelPrinted {
			label = "printed"
		}
		tw.AppendRow(table.Row{it.UUID, it.Status, it.HolderName, label})
	}
	b.WriteString(tw.Render())
	b.WriteString("\n")
	return b.String()
}

func renderRemoval(res *inventory.RemovalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Removed %s: %s\n", res.UUID, res.Message)
	if res.WasInPrintQueue {
		b.WriteString("Its pending label was dropped from the print queue.\n")
	}
	return b.String()
}

func renderUsers(users []client.User) string {
	if len(users) == 0 {
		return "No matching users\n"
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Username", "Name"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Username, u.FullName})
	}
	return tw.Render() + "\n"
}

func renderLocations(locations []model.Holder) string {
	if len(locations) == 0 {
		return "No locations\n"
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Location"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	for _, l := range locations {
		tw.AppendRow(table.Row{l.ID, l.Name})
	}
	return tw.Render() + "\n"
}

func renderEvent(ev events.Event) string {
	t := ev.Transaction
	if t == nil {
		return ev.Type + "\n"
	}
	line := fmt.Sprintf("%s  %-13s %s", t.CreatedAt.Local().Format("15:04:05"), t.Type, t.ItemUUID)
	switch {
	case t.FromHolderName != "" && t.ToHolderName != "":
		line += fmt.Sprintf("  %s -> %s", t.FromHolderName, t.ToHolderName)
	case t.ToHolderName != "":
		line += "  -> " + t.ToHolderName
	}
	if t.Username != "" {
		line += "  by " + t.Username
	}
	if t.Notes != "" {
		line += "  " + strconv.Quote(t.Notes)
	}
	return line + "\n"
}

// renderError is the dismissible banner: one line, coded when the server
// gave a code.
func renderError(err error, color bool) string {
	var ae *client.ActionError
	if errors.As(err, &ae) && ae.Code != "" {
		return paint(fmt.Sprintf("error [%s]: %s", ae.Code, ae.Message), ansiRed, color)
	}
	return paint("error: "+err.Error(), ansiRed, color)
}
