package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/billing"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/utils"
)

var invoiceCmd = &cobra.Command{
	Use:     "invoice",
	Aliases: []string{"invoices", "inv"},
	Short:   "Create, finalize and cancel invoices",
	Long: `Invoices move through draft -> invoiced -> cancelled.

Drafts may be edited freely and are re-priced whenever their entries change.
Finalizing freezes the total and locks the attached entries. Cancelling
requires a reason and keeps the total as it was.`,
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create [entry-id...]",
	Short: "Create a draft invoice",
	Long: `Create a draft invoice, optionally attaching time entries.

Examples:
  hb invoice create 4 5 9-12
  hb invoice create --unbilled --project 3 --tax-rate 19
  hb invoice create --type external --external-number R-881 --net 1000 --gross 1190`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := types.InvoiceInput{}
		in.InvoiceNumber, _ = cmd.Flags().GetString("number")
		in.InvoiceDate, _ = cmd.Flags().GetString("date")
		in.Notes, _ = cmd.Flags().GetString("notes")
		invType, _ := cmd.Flags().GetString("type")
		in.Type = types.InvoiceType(invType)
		in.ExternalInvoiceNumber, _ = cmd.Flags().GetString("external-number")
		in.IsSmallBusiness, _ = cmd.Flags().GetBool("small-business")
		in.ServicePeriodStart, _ = cmd.Flags().GetString("period-start")
		in.ServicePeriodEnd, _ = cmd.Flags().GetString("period-end")

		if cmd.Flags().Changed("tax-rate") {
			rate, err := parseAmount(cmd, "tax-rate")
			if err != nil {
				return err
			}
			in.TaxRate = rate
		}
		for name, dst := range map[string]*decimal.NullDecimal{"net": &in.NetAmount, "gross": &in.GrossAmount} {
			if cmd.Flags().Changed(name) {
				d, err := parseAmount(cmd, name)
				if err != nil {
					return err
				}
				*dst = decimal.NewNullDecimal(d)
			}
		}

		if len(args) > 0 {
			ids, err := utils.ParseIDList(args)
			if err != nil {
				return err
			}
			in.EntryIDs = ids
		}
		if unbilled, _ := cmd.Flags().GetBool("unbilled"); unbilled {
			ids, err := unbilledEntryIDs(cmd)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("no unbilled entries match: %w", types.ErrEmptyEntrySet)
			}
			in.EntryIDs = billing.SortedUniqueIDs(append(in.EntryIDs, ids...))
		}

		var inv types.InvoiceWithEntries
		if err := rpc.Decode(executor, rpc.OpCreateInvoice, &in, &inv); err != nil {
			return commandError(err)
		}
		return emit(&inv, func() {
			printf("%s Created draft invoice %s (#%d) with %d entries, total %s\n",
				checkmark(), inv.InvoiceNumber, inv.ID, len(inv.Entries), formatMoney(inv.TotalAmount))
		})
	},
}

// unbilledEntryIDs collects unbilled entries, narrowed by --project when given
func unbilledEntryIDs(cmd *cobra.Command) ([]int64, error) {
	var projectID int64
	if cmd.Flags().Changed("project") {
		raw, _ := cmd.Flags().GetString("project")
		id, err := utils.ParseID(raw)
		if err != nil {
			return nil, err
		}
		projectID = id
	}
	var entries []*types.TimeEntryWithProject
	if err := rpc.Decode(executor, rpc.OpUnbilled, nil, &entries); err != nil {
		return nil, err
	}
	var ids []int64
	for _, e := range entries {
		if projectID == 0 || e.ProjectID == projectID {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <id|number>",
	Short: "Show an invoice with its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var inv types.InvoiceWithEntries
		if err := rpc.Decode(executor, rpc.OpShowInvoice, invoiceRef(args[0]), &inv); err != nil {
			return err
		}
		return emit(&inv, func() { printInvoice(&inv) })
	},
}

// invoiceRef treats "#12" and "12" as IDs and anything else as an invoice number
func invoiceRef(arg string) *rpc.ShowInvoiceArgs {
	if id, err := utils.ParseID(arg); err == nil {
		return &rpc.ShowInvoiceArgs{ID: id}
	}
	return &rpc.ShowInvoiceArgs{Number: arg}
}

// resolveInvoiceID maps an ID or invoice number argument to an invoice ID
func resolveInvoiceID(arg string) (int64, error) {
	ref := invoiceRef(arg)
	if ref.ID != 0 {
		return ref.ID, nil
	}
	var inv types.InvoiceWithEntries
	if err := rpc.Decode(executor, rpc.OpShowInvoice, ref, &inv); err != nil {
		return 0, err
	}
	return inv.ID, nil
}

func printInvoice(inv *types.InvoiceWithEntries) {
	printf("Invoice %s (#%d)  %s  %s\n", inv.InvoiceNumber, inv.ID, statusColor(string(inv.Status)), inv.Type)
	printf("  Date:           %s\n", inv.InvoiceDate)
	if inv.ServicePeriodStart != "" || inv.ServicePeriodEnd != "" {
		printf("  Service period: %s .. %s\n", inv.ServicePeriodStart, inv.ServicePeriodEnd)
	}
	if inv.ExternalInvoiceNumber != "" {
		printf("  External no.:   %s\n", inv.ExternalInvoiceNumber)
	}
	if inv.NetAmount.Valid {
		printf("  Net:            %s\n", formatMoney(inv.NetAmount.Decimal))
	}
	if inv.GrossAmount.Valid {
		printf("  Gross:          %s\n", formatMoney(inv.GrossAmount.Decimal))
	}
	if inv.Notes != "" {
		printf("  Notes:          %s\n", inv.Notes)
	}
	if inv.CancellationReason != "" {
		printf("  Cancelled:      %s\n", inv.CancellationReason)
	}
	if len(inv.Entries) > 0 {
		printf("\n")
		for _, e := range inv.Entries {
			amount := billing.LineAmount(e.DurationMinutes, e.HourlyRate)
			printf("  #%-5d %s  %-7s %-20s %10s\n", e.ID, e.Date, formatMinutes(e.DurationMinutes),
				truncate(e.ProjectName, 20), formatMoney(amount))
		}
		printf("\n")
	}
	printf("  Total:          %s\n", formatMoney(inv.TotalAmount))
	if inv.IsSmallBusiness {
		printf("  Tax:            exempt (small business)\n")
	} else {
		printf("  Tax (%s%%):     %s\n", inv.TaxRate.String(), formatMoney(inv.TaxAmount))
	}
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter rpc.ListInvoicesArgs
		status, _ := cmd.Flags().GetString("status")
		invType, _ := cmd.Flags().GetString("type")
		filter.Status = types.InvoiceStatus(status)
		filter.Type = types.InvoiceType(invType)
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		var invoices []*types.Invoice
		if err := rpc.Decode(executor, rpc.OpListInvoices, &filter, &invoices); err != nil {
			return err
		}
		return emit(invoices, func() {
			if len(invoices) == 0 {
				printf("No invoices\n")
				return
			}
			for _, inv := range invoices {
				printf("#%-4d %-12s %s  %-10s %-9s %12s\n", inv.ID, inv.InvoiceNumber, inv.InvoiceDate,
					statusColor(string(inv.Status)), inv.Type, formatMoney(inv.TotalAmount))
			}
		})
	},
}

var invoiceUpdateCmd = &cobra.Command{
	Use:   "update <id|number>",
	Short: "Edit an invoice",
	Long: `Edit an invoice. Drafts accept every field. Finalized invoices accept
only --notes; cancelled invoices accept --notes and --reason.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveInvoiceID(args[0])
		if err != nil {
			return err
		}
		update := rpc.UpdateInvoiceArgs{ID: id}
		for name, dst := range map[string]**string{
			"number":          &update.InvoiceNumber,
			"date":            &update.InvoiceDate,
			"notes":           &update.Notes,
			"reason":          &update.CancellationReason,
			"external-number": &update.ExternalInvoiceNumber,
			"period-start":    &update.ServicePeriodStart,
			"period-end":      &update.ServicePeriodEnd,
		} {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				*dst = &v
			}
		}
		for name, dst := range map[string]**decimal.Decimal{
			"net":      &update.NetAmount,
			"gross":    &update.GrossAmount,
			"tax-rate": &update.TaxRate,
		} {
			if cmd.Flags().Changed(name) {
				d, err := parseAmount(cmd, name)
				if err != nil {
					return err
				}
				*dst = &d
			}
		}
		if cmd.Flags().Changed("type") {
			v, _ := cmd.Flags().GetString("type")
			t := types.InvoiceType(v)
			update.Type = &t
		}
		if cmd.Flags().Changed("small-business") {
			v, _ := cmd.Flags().GetBool("small-business")
			update.IsSmallBusiness = &v
		}
		update.ResetServicePeriodStart, _ = cmd.Flags().GetBool("auto-period-start")
		update.ResetServicePeriodEnd, _ = cmd.Flags().GetBool("auto-period-end")

		var inv types.Invoice
		if err := rpc.Decode(executor, rpc.OpUpdateInvoice, &update, &inv); err != nil {
			return commandError(err)
		}
		return emit(&inv, func() {
			printf("%s Updated invoice %s (total %s)\n", checkmark(), inv.InvoiceNumber, formatMoney(inv.TotalAmount))
		})
	},
}

var invoiceDeleteCmd = &cobra.Command{
	Use:   "delete <id|number>",
	Short: "Delete a draft or cancelled invoice; its entries become unbilled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveInvoiceID(args[0])
		if err != nil {
			return err
		}
		if err := rpc.Decode(executor, rpc.OpDeleteInvoice, &rpc.IDArgs{ID: id}, nil); err != nil {
			return commandError(err)
		}
		return emit(map[string]interface{}{"deleted": id}, func() {
			printf("%s Deleted invoice #%d\n", checkmark(), id)
		})
	},
}

var invoiceFinalizeCmd = &cobra.Command{
	Use:   "finalize <id|number>",
	Short: "Finalize a draft invoice and lock its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveInvoiceID(args[0])
		if err != nil {
			return err
		}
		var inv types.Invoice
		if err := rpc.Decode(executor, rpc.OpFinalizeInvoice, &rpc.IDArgs{ID: id}, &inv); err != nil {
			return commandError(err)
		}
		return emit(&inv, func() {
			printf("%s Finalized invoice %s, total %s\n", checkmark(), inv.InvoiceNumber, formatMoney(inv.TotalAmount))
		})
	},
}

var invoiceCancelCmd = &cobra.Command{
	Use:   "cancel <id|number>",
	Short: "Cancel an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveInvoiceID(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		var inv types.Invoice
		if err := rpc.Decode(executor, rpc.OpCancelInvoice, &rpc.CancelInvoiceArgs{ID: id, Reason: reason}, &inv); err != nil {
			return commandError(err)
		}
		return emit(&inv, func() {
			printf("%s Cancelled invoice %s: %s\n", checkmark(), inv.InvoiceNumber, inv.CancellationReason)
		})
	},
}

var invoiceAddCmd = &cobra.Command{
	Use:   "add <id|number> <entry-id>...",
	Short: "Attach time entries to a draft invoice",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveInvoiceID(args[0])
		if err != nil {
			return err
		}
		entryIDs, err := utils.ParseIDList(args[1:])
		if err != nil {
			return err
		}
		var inv types.InvoiceWithEntries
		if err := rpc.Decode(executor, rpc.OpAddEntries, &rpc.AddEntriesArgs{InvoiceID: id, EntryIDs: entryIDs}, &inv); err != nil {
			return commandError(err)
		}
		return emit(&inv, func() {
			printf("%s Attached %d entries to %s, total now %s\n", checkmark(), len(entryIDs), inv.InvoiceNumber, formatMoney(inv.TotalAmount))
		})
	},
}

var invoiceRemoveCmd = &cobra.Command{
	Use:   "remove <entry-id>...",
	Short: "Release time entries from their invoices",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryIDs, err := utils.ParseIDList(args)
		if err != nil {
			return err
		}
		if err := rpc.Decode(executor, rpc.OpRemoveEntries, &rpc.RemoveEntriesArgs{EntryIDs: entryIDs}, nil); err != nil {
			return commandError(err)
		}
		return emit(map[string]interface{}{"released": entryIDs}, func() {
			printf("%s Released %s\n", checkmark(), joinIDs(entryIDs))
		})
	},
}

var invoiceNextNumberCmd = &cobra.Command{
	Use:   "next-number",
	Short: "Suggest the next free invoice number",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var next rpc.NextNumberResponse
		if err := rpc.Decode(executor, rpc.OpNextInvoiceNumber, nil, &next); err != nil {
			return err
		}
		return emit(&next, func() { printf("%s\n", next.InvoiceNumber) })
	},
}

var invoiceTotalCmd = &cobra.Command{
	Use:   "total <id|number>",
	Short: "Recompute an invoice total from its entries without saving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveInvoiceID(args[0])
		if err != nil {
			return err
		}
		var total rpc.TotalResponse
		if err := rpc.Decode(executor, rpc.OpComputeTotal, &rpc.IDArgs{ID: id}, &total); err != nil {
			return err
		}
		return emit(&total, func() { printf("%s\n", total.Total) })
	},
}

func addInvoiceFieldFlags(c *cobra.Command) {
	c.Flags().String("number", "", "Invoice number (default: next YYYY-NNNN)")
	c.Flags().String("date", "", "Invoice date YYYY-MM-DD (default: today)")
	c.Flags().String("notes", "", "Notes printed on the invoice")
	c.Flags().String("type", "", "internal or external")
	c.Flags().String("external-number", "", "Number of an invoice issued elsewhere")
	c.Flags().String("net", "", "Net amount of an external invoice")
	c.Flags().String("gross", "", "Gross amount of an external invoice")
	c.Flags().String("tax-rate", "", "Tax rate in percent")
	c.Flags().Bool("small-business", false, "Small business; no tax is charged")
	c.Flags().String("period-start", "", "Service period start (default: derived from entries)")
	c.Flags().String("period-end", "", "Service period end (default: derived from entries)")
}

func init() {
	addInvoiceFieldFlags(invoiceCreateCmd)
	invoiceCreateCmd.Flags().Bool("unbilled", false, "Attach all unbilled entries")
	invoiceCreateCmd.Flags().String("project", "", "With --unbilled, only entries of this project")

	addInvoiceFieldFlags(invoiceUpdateCmd)
	invoiceUpdateCmd.Flags().String("reason", "", "Cancellation reason (cancelled invoices only)")
	invoiceUpdateCmd.Flags().Bool("auto-period-start", false, "Derive the service period start from entries again")
	invoiceUpdateCmd.Flags().Bool("auto-period-end", false, "Derive the service period end from entries again")

	invoiceCancelCmd.Flags().String("reason", "", "Why the invoice is cancelled (required)")

	invoiceListCmd.Flags().String("status", "", "Filter by status: draft, invoiced, cancelled")
	invoiceListCmd.Flags().String("type", "", "Filter by type: internal, external")
	invoiceListCmd.Flags().Int("limit", 0, "Maximum number of invoices")

	invoiceCmd.AddCommand(
		invoiceCreateCmd, invoiceShowCmd, invoiceListCmd, invoiceUpdateCmd, invoiceDeleteCmd,
		invoiceFinalizeCmd, invoiceCancelCmd, invoiceAddCmd, invoiceRemoveCmd,
		invoiceNextNumberCmd, invoiceTotalCmd,
	)
	rootCmd.AddCommand(invoiceCmd)
}

// joinIDs renders ids as "#1, #2"
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
