package mcp

import (
	"context"
	"fmt"
	"strings"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gateway-fm/jointsim/pkg/types"
)

// RegisterTools registers all jointsim tools on the MCP server.
func RegisterTools(s *server.MCPServer, client *Client) {
	registerStatus(s, client)
	registerSeries(s, client)
	registerHealth(s, client)
}

func registerStatus(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("jointsim_status",
		gomcp.WithDescription("Get the current simulation run: phase, participants and relationships created, transfer outcomes, success ratio, ledger call latency."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var m types.RunMetrics
		if err := client.GetJSON(ctx, "/v1/status", &m); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("jointsim unreachable: %v\n\nIs a run in progress with --listen set?", err)), nil
		}
		return gomcp.NewToolResultText(formatStatus(m)), nil
	})
}

func registerSeries(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("jointsim_series",
		gomcp.WithDescription("Get the success-ratio series: one sample per batch of transfer attempts."),
		gomcp.WithNumber("last",
			gomcp.Description("Only return the last N samples (default: all)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var series types.SeriesResponse
		if err := client.GetJSON(ctx, "/v1/series", &series); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("jointsim unreachable: %v", err)), nil
		}
		if n := req.GetInt("last", 0); n > 0 && n < len(series.Points) {
			series.Points = series.Points[len(series.Points)-n:]
		}
		return gomcp.NewToolResultText(formatSeries(series)), nil
	})
}

func registerHealth(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("jointsim_health",
		gomcp.WithDescription("Quick health check for the jointsim status server."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var h types.HealthResponse
		if err := client.GetJSON(ctx, "/health", &h); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("jointsim unhealthy: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHealth(h)), nil
	})
}

func formatStatus(m types.RunMetrics) string {
	d := new(doc)
	d.section("Simulation Status").
		kv("Run", m.RunID).
		kv("Status", m.Status).
		kv("Elapsed", fmt.Sprintf("%.1fs", float64(m.ElapsedMs)/1000)).
		kvIf("Error", m.Error)

	d.section("Setup").
		kv("Backend", m.Config.Backend).
		kvIf("Node", m.Config.NodeProfile).
		kv("Participants", formatNumber(m.Config.Participants)).
		kv("Probability", m.Config.Probability).
		kv("Mean Balance", m.Config.MeanBalance).
		kv("Seed", m.Config.Seed).
		kv("Registered", formatNumber(m.ParticipantsRegistered)).
		kv("Relationships", formatNumber(m.RelationshipsCreated)).
		kv("Balance Created", formatNumber(m.BalanceCreated))

	d.section("Transfers").
		kv("Attempts", formatNumber(m.Attempts)).
		kv("Successes", formatNumber(m.Successes)).
		kv("Insufficient", formatNumber(m.Insufficient)).
		kv("Failures", formatNumber(m.Failures)).
		kv("Success Ratio", formatPct(m.Ratio*100))

	if lat := m.Latency; lat != nil && lat.Count > 0 {
		d.section("Ledger Call Latency").
			kv("Calls", formatNumber(lat.Count)).
			kv("Min", formatMs(lat.Min)).
			kv("P50", formatMs(lat.P50)).
			kv("P90", formatMs(lat.P90)).
			kv("P99", formatMs(lat.P99)).
			kv("Max", formatMs(lat.Max))
	}
	return d.String()
}

func formatSeries(s types.SeriesResponse) string {
	d := new(doc).section("Success Ratio Series")
	if len(s.Points) == 0 {
		return d.line("No samples yet.").String()
	}
	d.line("%-12s %-10s %s", "Attempts", "Successes", "Ratio")
	for _, p := range s.Points {
		ratio := p.RatioExact
		if ratio == "" {
			ratio = fmt.Sprintf("%.6f", p.Ratio)
		}
		d.line("%-12s %-10s %s", formatNumber(p.Attempts), formatNumber(p.Successes), ratio)
	}
	return d.String()
}

func formatHealth(h types.HealthResponse) string {
	return new(doc).
		section("jointsim Health: " + strings.ToUpper(h.Status)).
		kv("Run", h.RunID).
		String()
}
