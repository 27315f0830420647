package launch

import (
	"fmt"
	"os"
	"os/user"
	"strings"
)

// SocketEnv overrides the daemon socket location.
const SocketEnv = "ADE_LAUNCHD_SOCK"

// SocketPath returns the Unix socket path of ade-launchd.
func SocketPath() (string, error) {
	socketPath := os.Getenv(SocketEnv)
	if socketPath != "" {
		if strings.HasPrefix(socketPath, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			socketPath = strings.Replace(socketPath, "~", home, 1)
		}
		return socketPath, nil
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return fmt.Sprintf("/tmp/ade-%s/launchd", currentUser.Uid), nil
}
