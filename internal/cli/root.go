// Package cli implements ade-launch-cli, the command line client of ade-launchd.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/0xADE/ade-launchd/client/launch"
)

var socketPath string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ade-launch-cli",
		Short:         "Search and launch applications through ade-launchd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket (default $"+launch.SocketEnv+" or /tmp/ade-<uid>/launchd)")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newLaunchedCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInteractiveCmd())
	return cmd
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

// Session is the part of the client the commands use.
type Session interface {
	io.Closer
	Search(query string) ([]launch.Result, error)
	Launched(appID string) error
	Run(appID string) (int, error)
	Reindex() (int, error)
	Status() (launch.Status, error)
	SendCommand(cmdName string, args []string) (*launch.Response, error)
}

// connect opens a session; tests replace it.
var connect = func() (Session, error) {
	if socketPath != "" {
		return launch.Dial(socketPath)
	}
	return launch.NewClient()
}

func withSession(fn func(Session) error) error {
	s, err := connect()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
