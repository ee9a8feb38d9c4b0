package main

import (
	"fmt"

	"github.com/harrisonrobin/touchgrass/pkg/config"
	"github.com/spf13/cobra"
)

func SetupCommands(a *App) *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	// root command
	rootCmd := &cobra.Command{
		Use:           "touchgrass",
		Short:         "Track the time you spend outside",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(configPath, debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Stats(cmd.Context(), "")
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/touchgrass/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// ledger entries
	var addHours float64
	var addMinutes int
	addCmd := &cobra.Command{
		Use:   "add [date]",
		Short: "Add time to a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Add(cmd.Context(), firstArg(args), addHours+float64(addMinutes)/60)
		},
	}
	addCmd.Flags().Float64VarP(&addHours, "hours", "H", 0, "hours to add")
	addCmd.Flags().IntVarP(&addMinutes, "minutes", "M", 0, "minutes to add")

	setCmd := &cobra.Command{
		Use:   "set <date> <hours>",
		Short: "Replace a day's total",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Set(cmd.Context(), args[0], args[1])
		},
	}

	editCmd := &cobra.Command{
		Use:   "edit [date]",
		Short: "Interactively change a day's total; 0 deletes it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Edit(cmd.Context(), firstArg(args))
		},
	}

	rmCmd := &cobra.Command{
		Use:     "rm <date>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a day's entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Remove(cmd.Context(), args[0])
		},
	}

	// views
	var statsDate string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show today, week, month and year against the goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Stats(cmd.Context(), statsDate)
		},
	}
	statsCmd.Flags().StringVar(&statsDate, "date", "", "reference day (YYYY-MM-DD)")

	historyCmd := &cobra.Command{
		Use:   "history [date]",
		Short: "List recorded days, or a single day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.History(cmd.Context(), firstArg(args))
		},
	}

	calendarCmd := &cobra.Command{
		Use:   "calendar [YYYY-MM]",
		Short: "Show a month heat-map",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Calendar(cmd.Context(), firstArg(args))
		},
	}

	// timers
	timerCmd := &cobra.Command{
		Use:   "timer",
		Short: "Run a ticking timer in the foreground; Enter or Ctrl-C stops it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.RunTimer(cmd.Context())
		},
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a background timer session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.StartSession(cmd.Context())
		},
	}

	var discard bool
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the timer session and record the time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.StopSession(cmd.Context(), discard)
		},
	}
	stopCmd.Flags().BoolVar(&discard, "discard", false, "stop without recording")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer session and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Status(cmd.Context())
		},
	}

	// identity and sync
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google to sync across devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Login(cmd.Context())
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out; local data is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Logout(cmd.Context())
		},
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Whoami(cmd.Context())
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local data with the cloud copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Sync(cmd.Context())
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the stats on screen, refreshing when the data changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Watch(cmd.Context())
		},
	}

	// config
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ShowConfig()
		},
	}
	configCmd.AddCommand(
		&cobra.Command{
			Use:       "get <key>",
			Short:     "Print one setting",
			Args:      cobra.ExactArgs(1),
			ValidArgs: config.Keys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := a.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting",
			Args:  cobra.ExactArgs(2),
			ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
				if len(args) == 0 {
					return config.Keys(), cobra.ShellCompDirectiveNoFileComp
				}
				return nil, cobra.ShellCompDirectiveNoFileComp
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.SetConfig(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(a.out, a.cfg.Path())
				return nil
			},
		},
	)

	// add commands
	rootCmd.AddCommand(addCmd, setCmd, editCmd, rmCmd)
	rootCmd.AddCommand(statsCmd, historyCmd, calendarCmd)
	rootCmd.AddCommand(timerCmd, startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, syncCmd, watchCmd)
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
