package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/utils"
)

var customerCmd = &cobra.Command{
	Use:     "customer",
	Aliases: []string{"customers"},
	Short:   "Manage customers",
}

var customerCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a customer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := types.Customer{Name: strings.Join(args, " ")}
		c.Email, _ = cmd.Flags().GetString("email")
		c.Phone, _ = cmd.Flags().GetString("phone")
		c.Address, _ = cmd.Flags().GetString("address")
		c.Notes, _ = cmd.Flags().GetString("notes")

		var created types.Customer
		if err := rpc.Decode(executor, rpc.OpCreateCustomer, &c, &created); err != nil {
			return err
		}
		return emit(&created, func() {
			printf("%s Created customer #%d %s\n", checkmark(), created.ID, created.Name)
		})
	},
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var customers []*types.Customer
		if err := rpc.Decode(executor, rpc.OpListCustomers, nil, &customers); err != nil {
			return err
		}
		return emit(customers, func() {
			if len(customers) == 0 {
				printf("No customers\n")
				return
			}
			for _, c := range customers {
				printf("#%-4d %-28s %s\n", c.ID, truncate(c.Name, 28), c.Email)
			}
		})
	},
}

var customerDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a customer; linked projects are unlinked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		if err := rpc.Decode(executor, rpc.OpDeleteCustomer, &rpc.IDArgs{ID: id}, nil); err != nil {
			return err
		}
		return emit(map[string]interface{}{"deleted": id}, func() {
			printf("%s Deleted customer #%d\n", checkmark(), id)
		})
	},
}

func init() {
	customerCreateCmd.Flags().String("email", "", "Email address")
	customerCreateCmd.Flags().String("phone", "", "Phone number")
	customerCreateCmd.Flags().String("address", "", "Postal address")
	customerCreateCmd.Flags().String("notes", "", "Free-form notes")

	customerCmd.AddCommand(customerCreateCmd, customerListCmd, customerDeleteCmd)
	rootCmd.AddCommand(customerCmd)
}
