// Package mcpadapter exposes sync control as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

const runSource = "mcp"

// NewServer builds an MCP server with every sync tool registered.
func NewServer(version string, sync ports.SyncController, settings ports.SettingsService) *server.MCPServer {
	s := server.NewMCPServer(
		"catalog-image-sync",
		version,
		server.WithToolCapabilities(true),
	)
	RegisterTools(s, sync, settings)
	return s
}

func RegisterTools(s *server.MCPServer, sync ports.SyncController, settings ports.SettingsService) {
	s.AddTool(statusTool(), statusHandler(sync))
	s.AddTool(runTool(), runHandler(sync))
	s.AddTool(settingsTool(), settingsHandler(settings))
}

// --- sync_status ---

func statusTool() mcp.Tool {
	return mcp.NewTool("sync_status",
		mcp.WithDescription("Report whether a catalog sync is running, the current brand and the last run outcome."),
	)
}

func statusHandler(sync ports.RunStatusReader) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sync.Status())
	}
}

// --- sync_run ---

func runTool() mcp.Tool {
	return mcp.NewTool("sync_run",
		mcp.WithDescription("Run a catalog sync now and wait for it. Joins the in-flight run if one is active."),
	)
}

func runHandler(sync ports.RunStarter) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := sync.Start(ctx, runSource)
		if !result.OK {
			return toolError(fmt.Errorf("sync failed: %s", result.Error))
		}
		return jsonResult(result)
	}
}

// --- sync_settings ---

func settingsTool() mcp.Tool {
	return mcp.NewTool("sync_settings",
		mcp.WithDescription("Show sync settings. Pass any argument to update it; omitted fields keep their value."),
		mcp.WithString("cron_expression",
			mcp.Description("Five-field cron expression for the periodic sync (e.g. */30 * * * *)."),
		),
		mcp.WithNumber("brand_delay_ms",
			mcp.Description("Pause between brands in milliseconds."),
		),
		mcp.WithArray("brands",
			mcp.Description("Brand folder names to sync, in order."),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

func settingsHandler(settings ports.SettingsService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patch, changed := patchFromArguments(req)
		if !changed {
			current, err := settings.Load(ctx)
			if err != nil {
				return toolError(err)
			}
			return jsonResult(current)
		}

		updated, err := settings.Update(ctx, patch)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(updated)
	}
}

func patchFromArguments(req mcp.CallToolRequest) (domain.SettingsPatch, bool) {
	args := req.GetArguments()
	var patch domain.SettingsPatch
	changed := false

	if _, ok := args["cron_expression"]; ok {
		expr := req.GetString("cron_expression", "")
		patch.CronExpression = &expr
		changed = true
	}
	if _, ok := args["brand_delay_ms"]; ok {
		delay := int64(req.GetFloat("brand_delay_ms", 0))
		patch.BrandDelayMs = &delay
		changed = true
	}
	if _, ok := args["brands"]; ok {
		names := req.GetStringSlice("brands", nil)
		brands := make([]domain.Brand, 0, len(names))
		for _, name := range names {
			brands = append(brands, domain.Brand{Name: name})
		}
		patch.Brands = &brands
		changed = true
	}
	return patch, changed
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
