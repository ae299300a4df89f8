package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tcriess/lightspeed-roster/commands"
	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/conversation"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/service"
	"github.com/tcriess/lightspeed-roster/types"
)

// A very simple CLI tool for the administration of rosters and run counts.

var (
	configPath string

	persister persistence.Persister
	svc       *service.Service
)

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// adminCaller holds every tier, admin sign-ups are not gated.
func adminCaller(id string) service.Caller {
	tiers := make([]int, len(svc.Tiers()))
	for i := range tiers {
		tiers[i] = i
	}
	return service.Caller{ID: id, Tiers: tiers}
}

func main() {
	flagSet := config.GetFlagSet()
	rootCmd := &cobra.Command{
		Use:           "lightspeed-roster-admin",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalConfig, err := config.ReadConfiguration(configPath, flagSet)
			if err != nil {
				return err
			}
			persister, err = persistence.NewPersister(globalConfig)
			if err != nil {
				return err
			}
			svc, err = service.NewService(globalConfig, persister)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			svc.Shutdown()
			persister.Close()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")
	rootCmd.PersistentFlags().AddFlagSet(flagSet)

	rootCmd.AddCommand(showCommand(), openCommand(), closeCommand(), runCountCommand(), increaseCommand(), purgeCommand(), defaultCommand())
	rootCmd.AddCommand(participantCommands()...)
	rootCmd.AddCommand(rosterCommands()...)

	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		globals.AppLogger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func showCommand() *cobra.Command {
	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show rosters or run counts",
		Long:  `show is for printing rosters and run counts.`,
	}
	var cmdShowRosters = &cobra.Command{
		Use:   "rosters",
		Short: "Show rosters",
		Long:  `show rosters lists all open rosters in channel order.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	var cmdShowRoster = &cobra.Command{
		Use:   "roster [channel id]",
		Short: "Show roster",
		Long:  `show roster prints the roster of the given channel.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
	var cmdShowRuns = &cobra.Command{
		Use:   "runs",
		Short: "Show run counts",
		Long:  `show runs lists the run counts of all participants, most runs first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := svc.RunRecords(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	var cmdShowRun = &cobra.Command{
		Use:   "run [participant id]",
		Short: "Show run count",
		Long:  `show run prints the run count of one participant.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := svc.RunRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
	cmdShow.AddCommand(cmdShowRosters, cmdShowRoster, cmdShowRuns, cmdShowRun)
	return cmdShow
}

func openCommand() *cobra.Command {
	var limits string
	var tier int
	cmd := &cobra.Command{
		Use:   "open [channel id] [leader,title] [ASAP|timestamp]",
		Short: "Open a roster",
		Long:  `open creates the roster of a channel. Without a date the roster is ASAP.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			leader, title, err := commands.ParseLeaderTitle(args[1])
			if err != nil {
				return err
			}
			sched := types.ASAP()
			if len(args) > 2 {
				if sched, err = types.ParseSchedule(args[2]); err != nil {
					return err
				}
			}
			var l *types.Limits
			if limits != "" {
				parsed, err := commands.ParseLimits(limits)
				if err != nil {
					return err
				}
				l = &parsed
			}
			r, err := svc.Open(cmd.Context(), args[0], title, leader, sched, l, tier)
			if err != nil {
				return err
			}
			fmt.Println(svc.ChannelName(r))
			return nil
		},
	}
	cmd.Flags().StringVar(&limits, "limits", "", "dps,healers,tanks (default from the configuration)")
	cmd.Flags().IntVar(&tier, "tier", 0, "access tier")
	return cmd
}

func closeCommand() *cobra.Command {
	var recordRuns bool
	cmd := &cobra.Command{
		Use:   "close [channel id]",
		Short: "Close a roster",
		Long:  `close deletes a roster, optionally counting the runs first. Without a channel id a roster is selected interactively.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			channelID := ""
			if len(args) == 1 {
				channelID = args[0]
			} else {
				selected, err := selectRoster(ctx, "close")
				if err != nil {
					return err
				}
				channelID = selected.ChannelID
			}
			counted, err := svc.Close(ctx, channelID, recordRuns)
			if err != nil {
				return err
			}
			if recordRuns {
				fmt.Printf("counted %d runs\n", counted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recordRuns, "runs", false, "count a run for everybody on the primary lists")
	return cmd
}

// selectRoster lets the user pick a roster on stdin.
func selectRoster(ctx context.Context, action string) (conversation.Option, error) {
	list, err := svc.List(ctx)
	if err != nil {
		return conversation.Option{}, err
	}
	entries := make([]conversation.Option, len(list))
	for i, l := range list {
		entries[i] = conversation.Option{ChannelID: l.ChannelID, Label: l.Name}
	}
	inputs := make(chan string)
	go func() {
		defer close(inputs)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case inputs <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	c := conversation.New(action, conversation.NewOptions(entries))
	return conversation.Run(ctx, c, inputs, os.Stdout, conversation.DefaultTimeouts)
}

func runCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "runcount [channel id] [ASAP|timestamp]",
		Short: "Count runs",
		Long:  `runcount counts a run for everybody on the primary lists without closing the roster, optionally changing the date first.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *types.Schedule
			if len(args) > 1 {
				s, err := types.ParseSchedule(args[1])
				if err != nil {
					return err
				}
				sched = &s
			}
			counted, err := svc.RecordRuns(cmd.Context(), args[0], sched)
			if err != nil {
				return err
			}
			fmt.Printf("counted %d runs\n", counted)
			return nil
		},
	}
}

func increaseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "increase [participant id]",
		Short: "Increase a run count",
		Long:  `increase adds one run to the total of a participant, f.e. for a run that had no roster.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := svc.IncreaseRuns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
}

func purgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge [participant id]",
		Short: "Remove a participant everywhere",
		Long:  `purge removes a participant from all rosters, f.e. after they left.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := svc.PurgeParticipant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(channels)
		},
	}
}

func defaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default [participant id] [role]",
		Short: "Set default role",
		Long:  `default sets the role a participant signs up with when they do not name one.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := types.ParseRole(args[1])
			if err != nil {
				return err
			}
			return svc.SetDefaultRole(cmd.Context(), args[0], role)
		},
	}
}

func participantCommands() []*cobra.Command {
	signup := &cobra.Command{
		Use:   "signup [channel id] [participant id] [!su|!bu] [role] [note]",
		Short: "Sign a participant up",
		Long:  `signup signs a participant up like the chat command would, ignoring the access tier.`,
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			placement, err := svc.SignUpCommand(cmd.Context(), args[0], adminCaller(args[1]), strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			fmt.Println(placement)
			return nil
		},
	}
	withdraw := &cobra.Command{
		Use:   "withdraw [channel id] [participant id]",
		Short: "Withdraw a participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := svc.Withdraw(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(slot)
		},
	}
	assign := &cobra.Command{
		Use:   "assign [channel id] [participant id] [role]",
		Short: "Assign a participant to a role",
		Long:  `assign moves a participant into a role, wherever they were before. Their note is cleared.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := types.ParseRole(args[2])
			if err != nil {
				return err
			}
			placement, err := svc.AdminAssign(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			fmt.Println(placement)
			return nil
		},
	}
	remove := &cobra.Command{
		Use:   "remove [channel id] [participant id]",
		Short: "Remove a participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := svc.AdminRemove(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(slot)
		},
	}
	return []*cobra.Command{signup, withdraw, assign, remove}
}

func rosterCommands() []*cobra.Command {
	fill := &cobra.Command{
		Use:   "fill [channel id]",
		Short: "Promote backups",
		Long:  `fill promotes backups into free primary slots, on all rosters if no channel id is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				moves, err := svc.FillAll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(moves)
			}
			moves, err := svc.Fill(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(moves)
		},
	}
	limits := &cobra.Command{
		Use:   "limits [channel id] [dps,healers,tanks]",
		Short: "Change the capacities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := commands.ParseLimits(args[1])
			if err != nil {
				return err
			}
			moves, err := svc.SetLimits(cmd.Context(), args[0], l)
			if err != nil {
				return err
			}
			return printJSON(moves)
		},
	}
	tier := &cobra.Command{
		Use:   "tier [channel id] [tier]",
		Short: "Change the access tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := commands.ParseTier(args[1], len(svc.Tiers()))
			if err != nil {
				return err
			}
			return svc.SetAccessTier(cmd.Context(), args[0], t)
		},
	}
	memo := &cobra.Command{
		Use:   "memo [channel id] [memo]",
		Short: "Set the memo",
		Long:  `memo sets the memo of a roster, "none" or "delete" removes it.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.SetMemo(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}
	leader := &cobra.Command{
		Use:   "leader [channel id] [leader]",
		Short: "Change the leader",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.SetLeader(cmd.Context(), args[0], args[1])
		},
	}
	title := &cobra.Command{
		Use:   "title [channel id] [title]",
		Short: "Change the title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return svc.SetTitle(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}
	schedule := &cobra.Command{
		Use:   "schedule [channel id] [ASAP|timestamp]",
		Short: "Change the date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := types.ParseSchedule(args[1])
			if err != nil {
				return err
			}
			return svc.Reschedule(cmd.Context(), args[0], s)
		},
	}
	return []*cobra.Command{fill, limits, tier, memo, leader, title, schedule}
}
