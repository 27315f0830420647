package cli

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func newInteractiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Send raw protocol commands read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(s Session) error {
				return interactive(s, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
}

// interactive reads "command arg..." lines and prints the raw responses.
func interactive(s Session, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Interactive mode. Type commands or 'exit' to quit.")
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "exit" || line == "quit" {
			break
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			fmt.Fprint(out, "> ")
			continue
		}

		resp, err := s.SendCommand(parts[0], parts[1:])
		if err != nil {
			fmt.Fprintf(errOut, "Failed to send command: %v\n", err)
			fmt.Fprint(out, "> ")
			continue
		}

		for _, key := range slices.Sorted(maps.Keys(resp.Attrs)) {
			fmt.Fprintf(out, "%s: %s\n", key, resp.Attrs[key])
		}
		if len(resp.Body) > 0 {
			fmt.Fprintln(out, "body:")
			for _, l := range resp.Body {
				fmt.Fprintln(out, l)
			}
		}
		fmt.Fprint(out, "> ")
	}

	return scanner.Err()
}
