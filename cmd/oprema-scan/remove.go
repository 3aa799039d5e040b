package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/client"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var reason, notes string
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <uuid>",
		Short: "Remove an item from inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return errors.New("--reason is required")
			}
			return ctx.withClient(func(c *client.Client) error {
				check, err := c.ValidateRemoval(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !check.Valid {
					return &client.ActionError{Code: check.Code, Message: check.Message}
				}
				for _, w := range check.Warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), paint("warning: "+w, ansiYellow, colorEnabled(cmd.ErrOrStderr())))
				}
				if len(check.Warnings) > 0 && !force {
					return errors.New("removal has warnings; repeat with --force to proceed")
				}

				res, err := c.Remove(cmd.Context(), args[0], reason, notes)
				if err != nil {
					return err
				}
				return ctx.output(cmd, res, func() string { return renderRemoval(res) })
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Removal reason (lost, damaged, retired, ...)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Extra notes recorded with the removal")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove even when there are warnings")
	return cmd
}

func newRemoveUPCCommand(ctx *commandContext) *cobra.Command {
	var reason, notes string

	cmd := &cobra.Command{
		Use:   "remove-upc <upc>",
		Short: "Remove an unlabeled item by its manufacturer barcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return errors.New("--reason is required")
			}
			return ctx.withClient(func(c *client.Client) error {
				res, err := c.RemoveByUPC(cmd.Context(), args[0], reason, notes)
				if err != nil {
					return err
				}
				return ctx.output(cmd, res, func() string { return renderRemoval(res) })
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Removal reason")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Extra notes recorded with the removal")
	return cmd
}
