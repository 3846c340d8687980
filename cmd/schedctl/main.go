// Command schedctl is the operator tool for the scheduling service: it sweeps
// leave cascades that hit the batch cap, previews slots and registers providers.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/app/bootstrap"
	appconfig "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/config"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// app is what every subcommand runs against.
type app struct {
	svc       *scheduling.Service
	providers bootstrap.ProviderRegistry
	close     func()
}

type opener func(ctx context.Context) (*app, error)

func openApp(ctx context.Context) (*app, error) {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).WithComponent("schedctl")
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	storage, err := bootstrap.BuildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	svc, err := bootstrap.BuildSchedulingService(cfg, storage.Store, redisClient, nil, logger)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return &app{
		svc:       svc,
		providers: storage.Providers,
		close: func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			storage.Close()
		},
	}, nil
}

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "schedctl",
		Short:        "Scheduling operator tool",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(leaveCmd(open))
	rootCmd.AddCommand(slotsCmd(open))
	rootCmd.AddCommand(providerCmd(open))
	return rootCmd
}

func withApp(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func leaveCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Manage provider leave",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep <leave-id>",
		Short: "Cancel the next batch of bookings overlapping a cascade leave",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leaveID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid leave id: %w", err)
			}
			raw, _ := cmd.Flags().GetString("operator-id")
			operatorID, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("--operator-id must be a uuid")
			}
			operator := scheduling.Actor{ID: operatorID, Role: scheduling.RoleOperator}

			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				result, err := a.svc.SweepLeave(ctx, operator, leaveID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "cancelled %d bookings, %d remaining\n", len(result.Cancelled), result.Remaining)
				for _, b := range result.Cancelled {
					fmt.Fprintf(out, "  %s  %s - %s  subject %s\n", b.ID, b.StartAt.Format(time.RFC3339), b.EndAt.Format(time.RFC3339), b.SubjectID)
				}
				if result.Remaining > 0 {
					fmt.Fprintln(out, "run the sweep again to continue")
				}
				return nil
			})
		},
	}
	sweepCmd.Flags().String("operator-id", "", "Operator identity recorded in booking history")

	cmd.AddCommand(sweepCmd)
	return cmd
}

func slotsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots <provider-id>",
		Short: "Print the free windows of a provider grouped by date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id: %w", err)
			}
			channel, _ := cmd.Flags().GetString("channel")
			urgency, _ := cmd.Flags().GetString("urgency")
			fromRaw, _ := cmd.Flags().GetString("from")
			days, _ := cmd.Flags().GetInt("days")
			if days < 1 {
				return fmt.Errorf("--days must be positive")
			}
			from := time.Now().UTC().Truncate(24 * time.Hour)
			if fromRaw != "" {
				if from, err = time.Parse(time.DateOnly, fromRaw); err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD")
				}
			}

			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				slots, err := a.svc.ListAvailableSlots(ctx, scheduling.SlotRequest{
					ProviderID: providerID,
					Channel:    scheduling.Channel(channel),
					Urgency:    scheduling.Urgency(urgency),
					RangeStart: from,
					RangeEnd:   from.AddDate(0, 0, days),
				})
				if err != nil {
					return err
				}
				printSlots(cmd.OutOrStdout(), slots)
				return nil
			})
		},
	}
	cmd.Flags().String("channel", string(scheduling.ChannelOnSite), "Channel: on_site, home or remote")
	cmd.Flags().String("urgency", string(scheduling.UrgencyRoutine), "Urgency: routine or urgent")
	cmd.Flags().String("from", "", "First date (YYYY-MM-DD, default today UTC)")
	cmd.Flags().Int("days", 7, "Number of days to list")
	return cmd
}

func printSlots(w io.Writer, days []scheduling.DaySlots) {
	if len(days) == 0 {
		fmt.Fprintln(w, "no free windows")
		return
	}
	for _, day := range days {
		fmt.Fprintln(w, day.Date)
		for _, win := range day.Windows {
			fmt.Fprintf(w, "  %s - %s\n", win.Start.Format("15:04"), win.End.Format("15:04"))
		}
	}
}

func providerCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage provider records",
	}

	putCmd := &cobra.Command{
		Use:   "put <provider-id>",
		Short: "Create or replace a provider and its channel fees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id: %w", err)
			}
			name, _ := cmd.Flags().GetString("name")
			tz, _ := cmd.Flags().GetString("time-zone")
			inactive, _ := cmd.Flags().GetBool("inactive")
			rawFees, _ := cmd.Flags().GetStringSlice("fee")
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("unknown time zone %q", tz)
			}
			fees, err := parseFees(rawFees)
			if err != nil {
				return err
			}
			p := scheduling.Provider{ID: providerID, DisplayName: name, TimeZone: tz, Active: !inactive, Fees: fees}

			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				if err := a.providers.UpsertProvider(ctx, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "provider %s saved with %d channels\n", p.ID, len(p.Fees))
				return nil
			})
		},
	}
	putCmd.Flags().String("name", "", "Display name")
	putCmd.Flags().String("time-zone", "UTC", "IANA time zone for availability rules")
	putCmd.Flags().Bool("inactive", false, "Register the provider as inactive")
	putCmd.Flags().StringSlice("fee", nil, "Channel fee in cents, e.g. on_site=15000 (repeatable)")

	cmd.AddCommand(putCmd)
	return cmd
}

// parseFees reads channel=cents pairs.
func parseFees(raw []string) (map[scheduling.Channel]int64, error) {
	fees := make(map[scheduling.Channel]int64, len(raw))
	for _, pair := range raw {
		ch, amount, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("fee %q: want channel=cents", pair)
		}
		channel := scheduling.Channel(strings.TrimSpace(ch))
		if !channel.Valid() {
			return nil, fmt.Errorf("fee %q: unknown channel", pair)
		}
		cents, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || cents < 0 {
			return nil, fmt.Errorf("fee %q: cents must be a non-negative integer", pair)
		}
		fees[channel] = cents
	}
	return fees, nil
}
