package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"logistria/internal/etl"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("prepare_import",
		mcp.WithPromptDescription("Check a spreadsheet against an import target, preview it, then import it"),
		mcp.WithArgument("target",
			mcp.ArgumentDescription("Import target key (e.g. inventory, bom)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Path of the CSV or Excel file"),
			mcp.RequiredArgument(),
		),
	), s.handlePrepareImportPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("stock_review",
		mcp.WithPromptDescription("Review stock levels against pending orders"),
	), s.handleStockReviewPrompt)
}

func (s *Server) handlePrepareImportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	key := req.Params.Arguments["target"]
	path := req.Params.Arguments["path"]
	t, err := etl.LookupTarget(key)
	if err != nil {
		return nil, err
	}

	idRule := "no id column; every row becomes a new document"
	switch {
	case len(t.CompositeIDFields) > 0:
		idRule = fmt.Sprintf("ids join %s with %q", strings.Join(t.CompositeIDFields, ", "), etl.IDSeparator)
	case t.IDField != "":
		idRule = fmt.Sprintf("ids come from the %s column", t.IDField)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Import %s as %s", path, t.Label),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Import the file %q into %s (collection %q). Follow these steps:

1. Use preview_import with target %q to see how the rows map. Expected headers: %s
2. Check the ids: %s. Rows sharing an id overwrite each other, the last one wins.
3. Numeric columns (%s) that are not numbers become 0. Point out any such cells before importing.
4. If the preview looks right, call import_file. An operator has to approve it in the console.`,
						path, t.Label, t.Collection, t.Key, t.Hint, idRule, strings.Join(t.NumericFields, ", ")),
				},
			},
		},
	}, nil
}

func (s *Server) handleStockReviewPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Review stock against pending orders",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Review inventory health:

1. Call inventory_dashboard for the headline numbers.
2. Read logistria://collections/inventory and list SKUs whose available stock (current minus reserved) is zero or negative.
3. Call list_orders and match PENDING orders to those SKUs by product name.
4. Summarize which orders are at risk and which SKUs need a restock import.`,
				},
			},
		},
	}, nil
}
