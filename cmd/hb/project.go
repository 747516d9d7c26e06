package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/utils"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects"},
	Short:   "Manage projects and their hourly rates",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := types.Project{Name: strings.Join(args, " ")}
		p.ClientName, _ = cmd.Flags().GetString("client")
		status, _ := cmd.Flags().GetString("status")
		p.Status = types.ProjectStatus(status)

		if cmd.Flags().Changed("rate") {
			rate, err := parseAmount(cmd, "rate")
			if err != nil {
				return err
			}
			p.HourlyRate = decimal.NewNullDecimal(rate)
		}
		if cmd.Flags().Changed("customer") {
			id, err := customerFlag(cmd)
			if err != nil {
				return err
			}
			p.CustomerID = &id
		}

		var created types.Project
		if err := rpc.Decode(executor, rpc.OpCreateProject, &p, &created); err != nil {
			return commandError(err)
		}
		return emit(&created, func() {
			printf("%s Created project #%d %s (rate %s)\n", checkmark(), created.ID, created.Name, formatRate(created.HourlyRate))
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		var projects []*types.Project
		if err := rpc.Decode(executor, rpc.OpListProjects, &rpc.ListProjectsArgs{Status: types.ProjectStatus(status)}, &projects); err != nil {
			return err
		}
		return emit(projects, func() {
			if len(projects) == 0 {
				printf("No projects\n")
				return
			}
			for _, p := range projects {
				client := p.ClientName
				if p.CustomerID != nil {
					client = fmt.Sprintf("customer #%d", *p.CustomerID)
				}
				printf("#%-4d %-28s %-10s %-12s %s\n", p.ID, truncate(p.Name, 28), formatRate(p.HourlyRate), statusColor(string(p.Status)), client)
			}
		})
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a project",
	Long: `Update a project's name, rate, client, customer or status.

Changing the hourly rate re-prices every draft invoice that holds entries of
this project. Finalized and cancelled invoices keep their totals.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		update := rpc.UpdateProjectArgs{ID: id}
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			update.Name = &name
		}
		if cmd.Flags().Changed("rate") {
			rate, err := parseAmount(cmd, "rate")
			if err != nil {
				return err
			}
			update.HourlyRate = &rate
		}
		update.ClearHourlyRate, _ = cmd.Flags().GetBool("clear-rate")
		if cmd.Flags().Changed("client") {
			client, _ := cmd.Flags().GetString("client")
			update.ClientName = &client
		}
		if cmd.Flags().Changed("customer") {
			cid, err := customerFlag(cmd)
			if err != nil {
				return err
			}
			update.CustomerID = &cid
		}
		update.ClearCustomer, _ = cmd.Flags().GetBool("clear-customer")
		if cmd.Flags().Changed("status") {
			status, _ := cmd.Flags().GetString("status")
			s := types.ProjectStatus(status)
			update.Status = &s
		}

		var p types.Project
		if err := rpc.Decode(executor, rpc.OpUpdateProject, &update, &p); err != nil {
			return commandError(err)
		}
		return emit(&p, func() {
			printf("%s Updated project #%d %s (rate %s, %s)\n", checkmark(), p.ID, p.Name, formatRate(p.HourlyRate), p.Status)
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project without time entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		if err := rpc.Decode(executor, rpc.OpDeleteProject, &rpc.IDArgs{ID: id}, nil); err != nil {
			return commandError(err)
		}
		return emit(map[string]interface{}{"deleted": id}, func() {
			printf("%s Deleted project #%d\n", checkmark(), id)
		})
	},
}

// parseAmount reads a non-negative decimal flag
func parseAmount(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid --%s %q: %w", name, raw, types.ErrInvalidAmount)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("--%s %s: %w", name, raw, types.ErrInvalidAmount)
	}
	return d, nil
}

func customerFlag(cmd *cobra.Command) (int64, error) {
	raw, _ := cmd.Flags().GetString("customer")
	return utils.ParseID(raw)
}

func init() {
	for _, c := range []*cobra.Command{projectCreateCmd, projectUpdateCmd} {
		c.Flags().String("rate", "", "Hourly rate, e.g. 85.50")
		c.Flags().String("client", "", "Free-text client name")
		c.Flags().String("customer", "", "Customer ID")
		c.Flags().String("status", "", "Status: active, paused, completed")
	}
	projectUpdateCmd.Flags().String("name", "", "New project name")
	projectUpdateCmd.Flags().Bool("clear-rate", false, "Remove the hourly rate")
	projectUpdateCmd.Flags().Bool("clear-customer", false, "Unlink the customer")
	projectListCmd.Flags().String("status", "", "Filter by status")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectUpdateCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
