package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/billing"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/utils"
)

var entryCmd = &cobra.Command{
	Use:     "entry",
	Aliases: []string{"entries", "log"},
	Short:   "Log and manage time entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add <project-id> [description...]",
	Short: "Log time against a project",
	Long: `Log time against a project.

Give either --start and --end (HH:MM) or --duration. A duration accepts plain
minutes ("90") or a Go duration ("1h30m"). With both, the clock times win.

Examples:
  hb entry add 3 --start 09:00 --end 11:30 "API review"
  hb entry add 3 --duration 45 --date 2025-01-14 standup`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		e := types.TimeEntry{
			ProjectID:   projectID,
			Description: strings.Join(args[1:], " "),
		}
		e.Date, _ = cmd.Flags().GetString("date")
		if e.Date == "" {
			e.Date = time.Now().Format(types.DateLayout)
		}
		e.StartTime, _ = cmd.Flags().GetString("start")
		e.EndTime, _ = cmd.Flags().GetString("end")
		if cmd.Flags().Changed("duration") {
			raw, _ := cmd.Flags().GetString("duration")
			if e.DurationMinutes, err = parseMinutes(raw); err != nil {
				return err
			}
		}
		if e.StartTime != "" && e.EndTime != "" {
			if e.DurationMinutes, err = billing.DurationFromTimes(e.StartTime, e.EndTime); err != nil {
				return err
			}
		}

		var created types.TimeEntryWithProject
		if err := rpc.Decode(executor, rpc.OpCreateEntry, &e, &created); err != nil {
			return err
		}
		return emit(&created, func() {
			printf("%s Logged %s on %s for %s (entry #%d)\n", checkmark(),
				formatMinutes(created.DurationMinutes), created.Date, created.ProjectName, created.ID)
		})
	},
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter rpc.ListEntriesArgs
		if cmd.Flags().Changed("project") {
			raw, _ := cmd.Flags().GetString("project")
			id, err := utils.ParseID(raw)
			if err != nil {
				return err
			}
			filter.ProjectID = &id
		}
		filter.From, _ = cmd.Flags().GetString("from")
		filter.To, _ = cmd.Flags().GetString("to")
		status, _ := cmd.Flags().GetString("status")
		filter.BillingStatus = types.BillingStatus(status)
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		var entries []*types.TimeEntryWithProject
		if err := rpc.Decode(executor, rpc.OpListEntries, &filter, &entries); err != nil {
			return err
		}
		return emit(entries, func() { printEntries(entries) })
	},
}

var entryUnbilledCmd = &cobra.Command{
	Use:   "unbilled",
	Short: "List entries not attached to any invoice",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []*types.TimeEntryWithProject
		if err := rpc.Decode(executor, rpc.OpUnbilled, nil, &entries); err != nil {
			return err
		}
		return emit(entries, func() { printEntries(entries) })
	},
}

var entryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one time entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		var e types.TimeEntryWithProject
		if err := rpc.Decode(executor, rpc.OpShowEntry, &rpc.IDArgs{ID: id}, &e); err != nil {
			return err
		}
		return emit(&e, func() {
			printf("Entry #%d\n", e.ID)
			printf("  Project:  %s (#%d, rate %s)\n", e.ProjectName, e.ProjectID, formatRate(e.HourlyRate))
			printf("  Date:     %s", e.Date)
			if e.StartTime != "" {
				printf(" %s-%s", e.StartTime, e.EndTime)
			}
			printf("\n  Duration: %s\n", formatMinutes(e.DurationMinutes))
			if e.Description != "" {
				printf("  Note:     %s\n", e.Description)
			}
			printf("  Billing:  %s", statusColor(string(e.BillingStatus)))
			if e.InvoiceID != nil {
				printf(" (invoice #%d)", *e.InvoiceID)
			}
			printf("\n")
		})
	},
}

var entryUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a time entry",
	Long: `Edit a time entry.

Entries on a finalized invoice are locked. Editing an entry on a draft invoice
recalculates that invoice and prints a warning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		update := rpc.UpdateEntryArgs{ID: id}
		if cmd.Flags().Changed("project") {
			raw, _ := cmd.Flags().GetString("project")
			pid, err := utils.ParseID(raw)
			if err != nil {
				return err
			}
			update.ProjectID = &pid
		}
		for name, dst := range map[string]**string{
			"date":        &update.Date,
			"start":       &update.StartTime,
			"end":         &update.EndTime,
			"description": &update.Description,
		} {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				*dst = &v
			}
		}
		if cmd.Flags().Changed("duration") {
			raw, _ := cmd.Flags().GetString("duration")
			m, err := parseMinutes(raw)
			if err != nil {
				return err
			}
			update.DurationMinutes = &m
		}
		if update.IsEmpty() {
			return fmt.Errorf("nothing to update: %w", types.ErrMissingField)
		}

		var result types.EntryChangeResult
		if err := rpc.Decode(executor, rpc.OpUpdateEntry, &update, &result); err != nil {
			return commandError(err)
		}
		return emit(&result, func() {
			if result.Warning != "" {
				warn("%s", result.Warning)
			}
			printf("%s Updated entry #%d (%s on %s)\n", checkmark(), id,
				formatMinutes(result.Entry.DurationMinutes), result.Entry.Date)
		})
	},
}

var entryDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete time entries",
	Long: `Delete one or more time entries. IDs may be lists or ranges: 4,7 10-12.

Entries on a finalized invoice cannot be deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := utils.ParseIDList(args)
		if err != nil {
			return err
		}
		results := make([]*types.EntryChangeResult, 0, len(ids))
		for _, id := range ids {
			var result types.EntryChangeResult
			if err := rpc.Decode(executor, rpc.OpDeleteEntry, &rpc.IDArgs{ID: id}, &result); err != nil {
				return commandError(fmt.Errorf("entry #%d: %w", id, err))
			}
			results = append(results, &result)
			if !jsonOutput {
				if result.Warning != "" {
					warn("%s", result.Warning)
				}
				printf("%s Deleted entry #%d\n", checkmark(), id)
			}
		}
		if jsonOutput {
			return outputJSON(results)
		}
		return nil
	},
}

func printEntries(entries []*types.TimeEntryWithProject) {
	if len(entries) == 0 {
		printf("No time entries\n")
		return
	}
	total := 0
	for _, e := range entries {
		total += e.DurationMinutes
		printf("#%-5d %s  %-7s %-20s %-10s %s\n", e.ID, e.Date, formatMinutes(e.DurationMinutes),
			truncate(e.ProjectName, 20), statusColor(string(e.BillingStatus)), truncate(e.Description, 40))
	}
	printf("%d entries, %s total\n", len(entries), formatMinutes(total))
}

// parseMinutes accepts "90" or "1h30m"
func parseMinutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, types.ErrInvalidDuration
		}
		return n, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < time.Minute {
		return 0, fmt.Errorf("duration %q: %w", raw, types.ErrInvalidDuration)
	}
	return int(d / time.Minute), nil
}

func init() {
	entryAddCmd.Flags().String("date", "", "Date YYYY-MM-DD (default: today)")
	entryAddCmd.Flags().String("start", "", "Start time HH:MM")
	entryAddCmd.Flags().String("end", "", "End time HH:MM")
	entryAddCmd.Flags().String("duration", "", "Duration in minutes or as 1h30m")

	entryListCmd.Flags().String("project", "", "Filter by project ID")
	entryListCmd.Flags().String("from", "", "First date, inclusive")
	entryListCmd.Flags().String("to", "", "Last date, inclusive")
	entryListCmd.Flags().String("status", "", "Billing status: unbilled, in_draft, invoiced")
	entryListCmd.Flags().Int("limit", 0, "Maximum number of entries")

	entryUpdateCmd.Flags().String("project", "", "Move to project ID")
	entryUpdateCmd.Flags().String("date", "", "Date YYYY-MM-DD")
	entryUpdateCmd.Flags().String("start", "", "Start time HH:MM")
	entryUpdateCmd.Flags().String("end", "", "End time HH:MM")
	entryUpdateCmd.Flags().String("duration", "", "Duration in minutes or as 1h30m")
	entryUpdateCmd.Flags().String("description", "", "Description")

	entryCmd.AddCommand(entryAddCmd, entryListCmd, entryUnbilledCmd, entryShowCmd, entryUpdateCmd, entryDeleteCmd)
	rootCmd.AddCommand(entryCmd)
}
