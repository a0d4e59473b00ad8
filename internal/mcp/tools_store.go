package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerStoreTools() {
	s.mcp.AddTool(mcp.NewTool("list_orders",
		mcp.WithDescription("List storefront orders, newest first"),
		mcp.WithString("userId", mcp.Description("Only orders placed by this user (optional)")),
	), s.handleListOrders)

	s.mcp.AddTool(mcp.NewTool("list_catalog",
		mcp.WithDescription("List the products customers can order"),
	), s.handleListCatalog)

	s.mcp.AddTool(mcp.NewTool("inventory_dashboard",
		mcp.WithDescription("Count inventory SKUs, orders and pending orders"),
	), s.handleDashboard)
}

func (s *Server) handleListOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orders, err := s.orders.List(ctx, req.GetString("userId", ""))
	if err != nil {
		return nil, err
	}
	return jsonResult(orders)
}

func (s *Server) handleListCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.orders.Catalog())
}

func (s *Server) handleDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.feeds.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(d)
}
