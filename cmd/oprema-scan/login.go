package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/config"
)

const envPassword = "OPREMA_PASSWORD"

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				password = os.Getenv(envPassword)
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			session, err := client.Login(cmd.Context(), ctx.clientConfig(), username, password)
			if err != nil {
				return err
			}

			ctx.config.Station.Token = session.Token
			ctx.config.Station.SessKey = session.SessKey
			if err := config.Save(ctx.config, ctx.configPath); err != nil {
				return err
			}

			name := session.User.Username
			if session.User.FullName != "" {
				name = session.User.FullName
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s). Session saved to %s\n", name, session.User.Role, ctx.configPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (default: $"+envPassword+" or prompt)")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if err := c.Logout(cmd.Context()); err != nil {
					return err
				}
				ctx.config.Station.Token = ""
				ctx.config.Station.SessKey = ""
				if err := config.Save(ctx.config, ctx.configPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}
