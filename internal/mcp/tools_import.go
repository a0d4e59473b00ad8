package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"logistria/internal/etl"
	"logistria/internal/service"
)

func (s *Server) registerImportTools() {
	s.mcp.AddTool(mcp.NewTool("list_import_targets",
		mcp.WithDescription("List import targets (key, collection, id column, numeric columns, expected headers) and accepted file formats"),
	), s.handleListImportTargets)

	s.mcp.AddTool(mcp.NewTool("preview_import",
		mcp.WithDescription("Parse a local CSV or Excel file for a target and return the first mapped documents without writing anything"),
		mcp.WithString("target", mcp.Description("Import target key (use list_import_targets)"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Path of the file on this machine"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum documents to return (default 20)")),
	), s.handlePreviewImport)

	s.mcp.AddTool(mcp.NewTool("import_file",
		mcp.WithDescription("🛑 DESTRUCTIVE: Import a local CSV or Excel file into the target's collection as one atomic batch. Rows with an existing id are replaced. Requires operator approval."),
		mcp.WithString("target", mcp.Description("Import target key"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Path of the file on this machine"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleImportFile)

	s.mcp.AddTool(mcp.NewTool("list_import_runs",
		mcp.WithDescription("List recent import runs, newest first"),
		mcp.WithString("jobId", mcp.Description("Only runs of this saved job (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 50)")),
	), s.handleListImportRuns)

	s.mcp.AddTool(mcp.NewTool("list_import_jobs",
		mcp.WithDescription("List saved import jobs with their triggers and last status"),
	), s.handleListImportJobs)

	s.mcp.AddTool(mcp.NewTool("run_import_job",
		mcp.WithDescription("🛑 DESTRUCTIVE: Run a saved import job now. Requires operator approval."),
		mcp.WithString("jobId", mcp.Description("Import job ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunImportJob)
}

func (s *Server) handleListImportTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"targets": s.imports.Targets(),
		"formats": s.imports.ListSources(),
	})
}

func (s *Server) handlePreviewImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := req.GetString("target", "")
	path := req.GetString("path", "")
	if target == "" || path == "" {
		return nil, fmt.Errorf("target and path are required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	preview, err := s.imports.Preview(ctx, etl.ImportRequest{Target: target, FileName: path, Body: f}, intArg(req.GetArguments(), "limit", 20))
	if err != nil {
		return nil, fmt.Errorf("preview import: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleImportFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := req.GetString("target", "")
	path := req.GetString("path", "")
	if target == "" || path == "" {
		return nil, fmt.Errorf("target and path are required")
	}
	// Reject bad input before bothering an operator.
	t, err := etl.LookupTarget(target)
	if err != nil {
		return nil, err
	}
	if _, err := etl.SourceFor(path); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]string{"target": target, "path": path})
	approved, err := s.approval.Request(ctx, "import_file",
		fmt.Sprintf("Import %s into %s (existing documents with the same id are replaced)", path, t.Collection), string(meta))
	if denied := approvalDenied(approved, err); denied != nil {
		return denied, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	result, err := s.imports.Import(ctx, service.SurfaceMCP, etl.ImportRequest{Target: target, FileName: path, Body: f})
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleListImportRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.imports.ListRuns(req.GetString("jobId", ""), intArg(req.GetArguments(), "limit", 50))
	if err != nil {
		return nil, err
	}
	return jsonResult(runs)
}

func (s *Server) handleListImportJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.imports.ListJobs()
	if err != nil {
		return nil, err
	}
	return jsonResult(jobs)
}

func (s *Server) handleRunImportJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	job, err := s.imports.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request(ctx, "run_import_job",
		fmt.Sprintf("Run import job %q (%s into %s)", job.Name, job.FilePath, job.Target))
	if denied := approvalDenied(approved, err); denied != nil {
		return denied, nil
	}

	result, err := s.imports.RunJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("run import job: %w", err)
	}
	return jsonResult(result)
}
