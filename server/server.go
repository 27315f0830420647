package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/0xADE/ade-launchd/internal/index"
	"github.com/0xADE/ade-launchd/internal/logx"
	"github.com/0xADE/ade-launchd/parser"
)

// Index is the part of the index controller served over the socket.
type Index interface {
	Search(query string) []index.Result
	RecordLaunch(appID string)
	ForceRefresh(ctx context.Context) error
	Lookup(appID string) (apps.Application, bool)
	Status() index.Status
}

// Launcher starts applications.
type Launcher interface {
	Launch(ctx context.Context, app apps.Application) (int, error)
}

// Server handles Unix socket connections and command execution
type Server struct {
	listener net.Listener
	index    Index
	launcher Launcher
	logger   *logx.Logger
	ctx      context.Context
	running  bool
	mu       sync.RWMutex
}

// NewServer listens on socketPath, replacing a stale socket file.
func NewServer(socketPath string, idx Index, l Launcher, logger *logx.Logger) (*Server, error) {
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return nil, err
	}

	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		index:    idx,
		launcher: l,
		logger:   logger,
		ctx:      context.Background(),
	}, nil
}

// Start accepts connections until Stop is called or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			s.logger.Warnf("Accept failed: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.listener.Close()
}

func (s *Server) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	s.logger.Debugf("New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		s.logger.Errorf("Failed to create parser: %v", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			s.logger.Debugf("Connection closed by client")
			break
		}
		if errors.Is(err, parser.ErrParse) {
			s.logger.Errorf("Parse error: %v", err)
			s.writeError(conn, "parser", "parse error", err.Error())
			continue
		}
		if err != nil {
			s.logger.Warnf("Connection read failed: %v", err)
			return
		}

		s.logger.Debugf("Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		s.executeCommand(conn, cmd)
	}
}

func (s *Server) executeCommand(conn io.Writer, cmd *parser.Command) {
	switch cmd.Name {
	case "search":
		s.handleSearch(conn, cmd)
	case "launch":
		s.handleLaunch(conn, cmd)
	case "run":
		s.handleRun(conn, cmd)
	case "reindex":
		s.handleReindex(conn, cmd)
	case "status":
		s.handleStatus(conn)
	default:
		s.writeError(conn, cmd.Name, "unknown command", "Command not recognized")
	}
}

// stringArg returns the single string argument of cmd.
func stringArg(cmd *parser.Command) (string, bool) {
	if len(cmd.Args) != 1 || cmd.Args[0].Type != parser.TypeString {
		return "", false
	}
	return cmd.Args[0].Str, true
}

func (s *Server) handleSearch(conn io.Writer, cmd *parser.Command) {
	var query string
	if len(cmd.Args) > 0 {
		q, ok := stringArg(cmd)
		if !ok {
			s.writeError(conn, "search", "invalid argument", "search takes one string query")
			return
		}
		query = q
	}

	results := s.index.Search(query)
	s.logger.Debugf("Search %q: %d results", query, len(results))

	var body strings.Builder
	for _, r := range results {
		fmt.Fprintf(&body, "%s\t%s\t%s\n", field(r.AppID), field(r.Name), field(r.IconPath))
	}
	attrs := fmt.Sprintf("cmd: search\nstatus: 0\nlist-len: %d\n", len(results))
	if len(results) == 0 {
		s.writeResponse(conn, attrs+"\n")
		return
	}
	s.writeResponse(conn, attrs+"body:\n"+body.String()+"\n")
}

func (s *Server) handleLaunch(conn io.Writer, cmd *parser.Command) {
	appID, ok := stringArg(cmd)
	if !ok {
		s.writeError(conn, "launch", "invalid argument", "launch takes one string id")
		return
	}
	s.index.RecordLaunch(appID)
	s.writeResponse(conn, "cmd: launch\nstatus: 0\n\n")
}

func (s *Server) handleRun(conn io.Writer, cmd *parser.Command) {
	appID, ok := stringArg(cmd)
	if !ok {
		s.writeError(conn, "run", "missing id", "run command requires an id parameter")
		return
	}

	app, found := s.index.Lookup(appID)
	if !found {
		s.logger.Errorf("Application %q not found", appID)
		s.writeError(conn, "run", "id not found", "Can't run application, requested id not found.")
		return
	}

	pid, err := s.launcher.Launch(s.baseContext(), app)
	if err != nil {
		s.logger.Errorf("Failed to start %s: %v", app.Name, err)
		s.writeError(conn, "run", "execution failed", err.Error())
		return
	}
	s.index.RecordLaunch(appID)

	s.logger.Infof("Started %s (pid %d)", app.Name, pid)
	s.writeResponse(conn, fmt.Sprintf("cmd: run\nstatus: 0\npid: %d\n\n", pid))
}

func (s *Server) handleReindex(conn io.Writer, cmd *parser.Command) {
	if len(cmd.Args) > 0 {
		s.writeError(conn, "reindex", "invalid argument", "reindex takes no arguments")
		return
	}

	if err := s.index.ForceRefresh(s.baseContext()); err != nil {
		s.logger.Errorf("Reindex failed: %v", err)
		s.writeError(conn, "reindex", "reindex failed", err.Error())
		return
	}

	st := s.index.Status()
	s.writeResponse(conn, fmt.Sprintf("cmd: reindex\nstatus: 0\nindexed: %d\n\n", st.Applications))
}

func (s *Server) handleStatus(conn io.Writer) {
	st := s.index.Status()
	s.writeResponse(conn, fmt.Sprintf(
		"cmd: status\nstatus: 0\nready: %s\nrefreshing: %s\napplications: %d\nlast-scan: %d\nstored: %d\nschema: %d\n\n",
		flag(st.Ready), flag(st.Refreshing), st.Applications, st.LastScan, st.Stored, st.SchemaVersion))
}

// field makes a value safe for a tab separated body line.
func field(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

func flag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

// writeResponse writes a response with TXT01 header
func (s *Server) writeResponse(conn io.Writer, response string) {
	s.logger.Debugf("Writing response (length: %d bytes)", len(response))
	if _, err := io.WriteString(conn, "TXT01"+response); err != nil {
		s.logger.Errorf("Failed to write response: %v", err)
	}
}

func (s *Server) writeError(conn io.Writer, cmd, errType, desc string) {
	s.logger.Debugf("Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	errorMsg := fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n\n", cmd, errType, field(desc))
	s.writeResponse(conn, errorMsg)
}
