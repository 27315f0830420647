// Package launch is the client side of the ade-launchd socket protocol.
package launch

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

const protoVer = "TXT01" // cmdlist protocol, text format, v01

// Result is one search hit.
type Result struct {
	AppID    string
	Name     string
	IconPath string
}

// Status mirrors the daemon's status response.
type Status struct {
	Ready         bool
	Refreshing    bool
	Applications  int
	LastScan      int64
	Stored        int
	SchemaVersion int
}

// ServerError is an error response sent by the daemon.
type ServerError struct {
	Cmd  string
	Type string
	Desc string
}

func (e *ServerError) Error() string {
	if e.Desc == "" {
		return fmt.Sprintf("server error: %s: %s", e.Cmd, e.Type)
	}
	return fmt.Sprintf("server error: %s: %s (%s)", e.Cmd, e.Type, e.Desc)
}

// Response is a parsed daemon response.
type Response struct {
	Attrs map[string]string
	Body  []string
}

// Err returns the response as a *ServerError when it reports a failure.
func (r *Response) Err() error {
	errType, ok := r.Attrs["error"]
	if !ok {
		return nil
	}
	return &ServerError{Cmd: r.Attrs["error-cmd"], Type: errType, Desc: r.Attrs["desc"]}
}

// Client handles connection to ade-launchd
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewClient connects to the daemon socket.
func NewClient() (*Client, error) {
	socketPath, err := SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}
	return Dial(socketPath)
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}

	c, err := NewClientConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClientConn starts a session on an established connection.
func NewClientConn(conn net.Conn) (*Client, error) {
	if _, err := conn.Write([]byte(protoVer)); err != nil {
		return nil, fmt.Errorf("failed to send header: %w", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// FormatArgument formats an argument according to its type
func FormatArgument(arg string) string {
	arg = strings.TrimSpace(arg)

	// If starts with ", it's a string (keep prefix)
	if strings.HasPrefix(arg, `"`) {
		return arg
	}

	if arg == "t" || arg == "f" {
		return arg
	}

	if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return arg
	}

	return `"` + arg
}

// quote encodes s as a string value regardless of its content.
func quote(s string) string {
	return `"` + strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// Do sends a command with already formatted values and reads the response.
func (c *Client) Do(cmdName string, values ...string) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var req strings.Builder
	for _, v := range values {
		req.WriteString(v)
		req.WriteByte('\n')
	}
	req.WriteString(cmdName)
	req.WriteByte('\n')

	if _, err := io.WriteString(c.conn, req.String()); err != nil {
		return nil, fmt.Errorf("failed to send %s command: %w", cmdName, err)
	}

	resp, err := ReadResponse(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// SendCommand sends a command with loosely typed arguments, as typed by a user.
func (c *Client) SendCommand(cmdName string, args []string) (*Response, error) {
	values := make([]string, len(args))
	for i, arg := range args {
		values[i] = FormatArgument(arg)
	}
	return c.Do(cmdName, values...)
}

// ReadResponse reads one response: the header, "key: value" attributes, an
// optional "body:" line followed by body lines, and a terminating blank line.
func ReadResponse(reader *bufio.Reader) (*Response, error) {
	header := make([]byte, len(protoVer))
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}
	if string(header) != protoVer {
		return nil, fmt.Errorf("unsupported response header %q", header)
	}

	resp := &Response{Attrs: make(map[string]string)}
	inBody := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimSuffix(line, "\n")

		if line == "" {
			return resp, nil
		}
		if inBody {
			resp.Body = append(resp.Body, line)
			continue
		}
		if line == "body:" {
			inBody = true
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			resp.Attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
}

// Search returns the ranked results for query.
func (c *Client) Search(query string) ([]Result, error) {
	resp, err := c.Do("search", quote(query))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Body))
	for _, line := range resp.Body {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			continue
		}
		r := Result{AppID: parts[0], Name: parts[1]}
		if len(parts) == 3 {
			r.IconPath = parts[2]
		}
		results = append(results, r)
	}
	return results, nil
}

// Launched tells the daemon the application was started by someone else.
func (c *Client) Launched(appID string) error {
	resp, err := c.Do("launch", quote(appID))
	if err != nil {
		return err
	}
	return resp.Err()
}

// Run asks the daemon to start the application and returns its pid.
func (c *Client) Run(appID string) (int, error) {
	resp, err := c.Do("run", quote(appID))
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	pid, _ := strconv.Atoi(resp.Attrs["pid"])
	return pid, nil
}

// Reindex forces a rescan and returns the number of indexed applications.
func (c *Client) Reindex() (int, error) {
	resp, err := c.Do("reindex")
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(resp.Attrs["indexed"])
	return n, nil
}

// Status queries the daemon state.
func (c *Client) Status() (Status, error) {
	resp, err := c.Do("status")
	if err != nil {
		return Status{}, err
	}
	if err := resp.Err(); err != nil {
		return Status{}, err
	}

	st := Status{
		Ready:      resp.Attrs["ready"] == "t",
		Refreshing: resp.Attrs["refreshing"] == "t",
	}
	st.Applications, _ = strconv.Atoi(resp.Attrs["applications"])
	st.LastScan, _ = strconv.ParseInt(resp.Attrs["last-scan"], 10, 64)
	st.Stored, _ = strconv.Atoi(resp.Attrs["stored"])
	st.SchemaVersion, _ = strconv.Atoi(resp.Attrs["schema"])
	return st, nil
}
