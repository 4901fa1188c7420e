package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/mcp"
)

var reportPrice = paymcp.Price{Amount: 0.50, Currency: "usd"}

// registerTools installs the demo tools: a priced report generator and a free ping
func registerTools(payments *mcp.PaymentServer) error {
	err := payments.Register(&mcpsdk.Tool{
		Name:        "generate_report",
		Description: "Generates a short report on a topic.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"topic": {Type: "string", Description: "What the report is about"},
			},
			Required: []string{"topic"},
		},
	}, mcp.ToolConfig{Price: &reportPrice}, generateReport)
	if err != nil {
		return err
	}

	return payments.Register(&mcpsdk.Tool{
		Name:        "ping",
		Description: "Free health check.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, mcp.ToolConfig{}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "pong"}}}, nil
	})
}

func generateReport(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	report := map[string]interface{}{
		"topic":        args.Topic,
		"summary":      fmt.Sprintf("Report on %s: all indicators nominal.", args.Topic),
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.MarshalIndent(report, "", "  ")
	return &mcpsdk.CallToolResult{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: string(body)}},
		StructuredContent: report,
	}, nil
}
