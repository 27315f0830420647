package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xADE/ade-launchd/client/launch"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Show the best matching applications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s Session) error {
				results, err := s.Search(strings.Join(args, " "))
				if err != nil {
					return err
				}
				printResults(cmd, results)
				return nil
			})
		},
	}
}

func printResults(cmd *cobra.Command, results []launch.Result) {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matches")
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.Name, r.AppID)
	}
	tw.Flush()
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <app-id>",
		Short: "Start an application and record the launch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s Session) error {
				pid, err := s.Run(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "started %s (pid %d)\n", args[0], pid)
				return nil
			})
		},
	}
}

func newLaunchedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launched <app-id>",
		Short: "Record a launch performed by another program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s Session) error {
				return s.Launched(args[0])
			})
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rescan all application sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s Session) error {
				n, err := s.Reindex()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d applications\n", n)
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s Session) error {
				st, err := s.Status()
				if err != nil {
					return err
				}
				lastScan := "never"
				if st.LastScan > 0 {
					lastScan = time.Unix(st.LastScan, 0).Format(time.RFC3339)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "ready\t%t\n", st.Ready)
				fmt.Fprintf(tw, "refreshing\t%t\n", st.Refreshing)
				fmt.Fprintf(tw, "applications\t%d\n", st.Applications)
				fmt.Fprintf(tw, "stored\t%d\n", st.Stored)
				fmt.Fprintf(tw, "last scan\t%s\n", lastScan)
				fmt.Fprintf(tw, "schema\t%d\n", st.SchemaVersion)
				return tw.Flush()
			})
		},
	}
}
