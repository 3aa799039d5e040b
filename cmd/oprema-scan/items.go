package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/model"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <code>",
		Short: "Resolve a QR code, label URL or UPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				res, err := client.NewStation(c, nil).HandleCode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.output(cmd, res, func() string { return renderScan(res, ctx.colorize(cmd)) })
			})
		},
	}
}

// itemAction runs an action that answers with the refreshed item.
func itemAction(ctx *commandContext, fn func(cmd *cobra.Command, c *client.Client, args []string) (*model.ItemDetail, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return ctx.withClient(func(c *client.Client) error {
			detail, err := fn(cmd, c, args)
			if err != nil {
				return err
			}
			return ctx.output(cmd, detail, func() string { return renderItem(detail, ctx.colorize(cmd)) })
		})
	}
}

func newAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <uuid> <user>",
		Short: "Check an item out to a user (ID or search text)",
		Args:  cobra.ExactArgs(2),
		RunE: itemAction(ctx, func(cmd *cobra.Command, c *client.Client, args []string) (*model.ItemDetail, error) {
			userID, err := resolveUser(cmd, c, args[1])
			if err != nil {
				return nil, err
			}
			return c.Assign(cmd.Context(), args[0], userID)
		}),
	}
}

func newTransferCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <uuid> <location>",
		Short: "Move an item to a location (ID or name)",
		Args:  cobra.ExactArgs(2),
		RunE: itemAction(ctx, func(cmd *cobra.Command, c *client.Client, args []string) (*model.ItemDetail, error) {
			locationID, err := resolveLocation(cmd, c, args[1])
			if err != nil {
				return nil, err
			}
			return c.Transfer(cmd.Context(), args[0], locationID)
		}),
	}
}

func newUnassignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <uuid>",
		Short: "Check an item back in",
		Args:  cobra.ExactArgs(1),
		RunE: itemAction(ctx, func(cmd *cobra.Command, c *client.Client, args []string) (*model.ItemDetail, error) {
			return c.Unassign(cmd.Context(), args[0])
		}),
	}
}

func newNotesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <uuid> <text>",
		Short: "Replace an item's notes",
		Args:  cobra.MinimumNArgs(2),
		RunE: itemAction(ctx, func(cmd *cobra.Command, c *client.Client, args []string) (*model.ItemDetail, error) {
			return c.SaveNotes(cmd.Context(), args[0], strings.Join(args[1:], " "))
		}),
	}
}

func resolveUser(cmd *cobra.Command, c *client.Client, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	users, err := c.SearchUsers(cmd.Context(), arg)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, arg) {
			return u.ID, nil
		}
	}
	switch len(users) {
	case 0:
		return 0, fmt.Errorf("no user matches %q", arg)
	case 1:
		return users[0].ID, nil
	default:
		return 0, fmt.Errorf("%q matches %d users; use an ID from 'oprema-scan users %s'", arg, len(users), arg)
	}
}

func resolveLocation(cmd *cobra.Command, c *client.Client, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	locations, err := c.Locations(cmd.Context())
	if err != nil {
		return 0, err
	}
	for _, l := range locations {
		if strings.EqualFold(l.Name, arg) {
			return l.ID, nil
		}
	}
	return 0, errors.New("no location named " + strconv.Quote(arg))
}

func newUsersCommand(ctx *commandContext) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "users <query>",
		Short: "Search users by username or name",
		Long: `Users searches by username or name. With --interactive, queries are read
from stdin one per line and searched as you type; only the last query of a
quick burst is sent.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if interactive {
					return runUserSearch(cmd, ctx, c)
				}
				users, err := c.SearchUsers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.output(cmd, users, func() string { return renderUsers(users) })
			})
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read queries from stdin as they are typed")
	return cmd
}

// runUserSearch feeds stdin lines through a debouncer. Pending input is
// flushed at EOF.
func runUserSearch(cmd *cobra.Command, ctx *commandContext, c *client.Client) error {
	var (
		mu      sync.Mutex
		pending string
		closed  bool
		failed  error
	)
	search := func() {
		mu.Lock()
		defer mu.Unlock()
		if closed || pending == "" {
			return
		}
		q := pending
		pending = ""
		users, err := c.SearchUsers(cmd.Context(), q)
		if err != nil {
			failed = err
			return
		}
		err = ctx.output(cmd, users, func() string {
			return fmt.Sprintf("Results for %q\n", q) + renderUsers(users)
		})
		if err != nil {
			failed = err
		}
	}

	d := client.NewDebouncer(client.SearchDelay)
	lines := bufio.NewScanner(cmd.InOrStdin())
	for lines.Scan() {
		q := strings.TrimSpace(lines.Text())
		if q == "" {
			continue
		}
		mu.Lock()
		pending = q
		mu.Unlock()
		d.Trigger(search)
	}
	d.Cancel()
	search()

	mu.Lock()
	closed = true
	err := failed
	mu.Unlock()
	if scanErr := lines.Err(); scanErr != nil {
		return fmt.Errorf("reading queries: %w", scanErr)
	}
	return err
}

func newLocationsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				locations, err := c.Locations(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.output(cmd, locations, func() string { return renderLocations(locations) })
			})
		},
	}
}
