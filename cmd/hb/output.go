package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/types"
)

// stdout is where command output goes; tests replace it
var stdout io.Writer = os.Stdout

// outputJSON writes v as indented JSON
func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stdout, format, args...)
}

// emit prints v as JSON in --json mode, otherwise calls human
func emit(v interface{}, human func()) error {
	if jsonOutput {
		return outputJSON(v)
	}
	human()
	return nil
}

func warn(format string, args ...interface{}) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
}

func checkmark() string {
	return color.New(color.FgGreen).Sprint("✓")
}

// commandError adds a hint for typed failures coming back from storage or the daemon
func commandError(err error) error {
	if err == nil {
		return nil
	}
	code := types.CodeOf(err)
	var re *rpc.RemoteError
	if code == "" && errors.As(err, &re) {
		code = re.Reason
	}
	switch code {
	case "invoice_locked", "entry_locked":
		return fmt.Errorf("%w\nHint: cancel the invoice first with 'hb invoice cancel <id> --reason ...'", err)
	case "duplicate_invoice_number":
		return fmt.Errorf("%w\nHint: 'hb invoice next-number' suggests an unused number", err)
	}
	return err
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatRate(r decimal.NullDecimal) string {
	if !r.Valid {
		return "-"
	}
	return r.Decimal.StringFixed(2) + "/h"
}

// formatMinutes renders 135 as "2h15m"
func formatMinutes(m int) string {
	h, rest := m/60, m%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", rest)
	case rest == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%02dm", h, rest)
}

func statusColor(s string) string {
	switch s {
	case string(types.InvoiceDraft), string(types.BillingInDraft):
		return color.YellowString(s)
	case string(types.InvoiceInvoiced), string(types.ProjectCompleted):
		return color.GreenString(s)
	case string(types.InvoiceCancelled):
		return color.RedString(s)
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
