package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"logistria/internal/etl"
	"logistria/internal/service"
)

const (
	targetsURI       = "logistria://targets"
	collectionPrefix = "logistria://collections/"
)

func (s *Server) registerResources() {
	// ── logistria://targets ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		targetsURI,
		"Import Targets",
		mcp.WithMIMEType("application/json"),
	), s.handleTargetsResource)

	// ── logistria://collections/{collection} ───────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			collectionPrefix+"{collection}",
			"Documents of a Collection",
		),
		s.handleCollectionResource,
	)
}

func (s *Server) handleTargetsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, _ := json.MarshalIndent(s.imports.Targets(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      targetsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCollectionResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	collection := strings.TrimPrefix(uri, collectionPrefix)
	if collection == uri || !readableCollection(collection) {
		return nil, fmt.Errorf("unknown collection in URI: %s", uri)
	}

	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(docs, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// readableCollection reports whether agents may read collection: the
// import destinations and the orders collection. Profiles stay private.
func readableCollection(collection string) bool {
	if collection == service.OrdersCollection {
		return true
	}
	for _, t := range etl.Targets() {
		if t.Collection == collection {
			return true
		}
	}
	return false
}
