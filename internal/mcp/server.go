package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"logistria/internal/config"
	"logistria/internal/docstore"
	"logistria/internal/service"
	"logistria/internal/storage"
)

// Server is the MCP server for the importer.
// It exposes tools, resources, and prompts so AI agents can run imports
// and inspect the live collections.
type Server struct {
	mcp      *server.MCPServer
	approval *ApprovalQueue
	log      *logrus.Entry

	imports *service.ImportService
	orders  *service.OrderService
	feeds   *service.FeedService
	store   docstore.Store
}

// Deps holds all dependencies passed from the command layer.
type Deps struct {
	Emitter   EventEmitter
	Imports   *service.ImportService
	Orders    *service.OrderService
	Feeds     *service.FeedService
	Store     docstore.Store
	Approvals *storage.ApprovalStore
	Approval  ApprovalOptions
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		approval: NewApprovalQueue(deps.Approvals, deps.Emitter, deps.Approval),
		log:      config.GetLogger().WithField("component", "mcp"),
		imports:  deps.Imports,
		orders:   deps.Orders,
		feeds:    deps.Feeds,
		store:    deps.Store,
	}

	s.mcp = server.NewMCPServer(
		"logistria-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerImportTools()
	s.registerStoreTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}
