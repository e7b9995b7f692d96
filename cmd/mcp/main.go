// Command jointsim-mcp serves the status API of a running simulation as MCP
// tools over stdio.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	mcptools "github.com/gateway-fm/jointsim/internal/mcp"
)

var version = "dev"

func main() {
	// stdout carries the MCP protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	url := statusURL(os.Getenv)
	s := server.NewMCPServer("jointsim", version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	mcptools.RegisterTools(s, mcptools.NewClient(url))

	logger.Info("serving jointsim tools", slog.String("status_url", url))
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// statusURL prefers JOINTSIM_STATUS_URL, then the simulator's JOINTSIM_LISTEN
// address, then the conventional local port.
func statusURL(getenv func(string) string) string {
	if u := getenv("JOINTSIM_STATUS_URL"); u != "" {
		return u
	}
	if addr := getenv("JOINTSIM_LISTEN"); addr != "" {
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		return "http://" + addr
	}
	return "http://localhost:3001"
}
