// Package mcp exposes sealed cases as read-only MCP tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/types"
)

// Server wraps the MCP SDK server with the case tools registered.
type Server struct {
	MCPServer *sdkmcp.Server

	store types.CaseStore
	log   *slog.Logger
}

// NewServer creates an MCP server over store. Run it with
// s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{}).
func NewServer(store types.CaseStore, version string) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "custodian", Version: version}, nil),
		store:     store,
		log:       logging.New("mcp"),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_cases",
		Description: "List sealed cases with their seals and evidence counts.",
	}, s.handleListCases)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_report",
		Description: "Get the sealed forensic report of a case by ID or unique ID prefix.",
	}, s.handleGetReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "verify_seal",
		Description: "Check a candidate seal against every stored case. Only an exact match verifies.",
	}, s.handleVerifySeal)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "audit_case",
		Description: "Recompute a stored case's seal and report self-hash and report whether it is intact.",
	}, s.handleAuditCase)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_custody",
		Description: "Get the chain-of-custody entries of every artifact in a case.",
	}, s.handleGetCustody)
}

// --- Tool input/output types ---

type listCasesInput struct{}

type caseEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CreatedAt     string `json:"created_at"`
	Seal          string `json:"seal"`
	EvidenceCount int    `json:"evidence_count"`
}

type listCasesOutput struct {
	Cases []caseEntry `json:"cases"`
	Total int         `json:"total"`
}

type caseRefInput struct {
	Case string `json:"case" jsonschema:"case ID or unique ID prefix"`
}

type getReportOutput struct {
	CaseID string `json:"case_id"`
	Report string `json:"report"`
	Seal   string `json:"seal"`
}

type verifySealInput struct {
	Seal string `json:"seal" jsonschema:"candidate seal, 128 lowercase hex characters"`
}

type verifySealOutput struct {
	Matched bool   `json:"matched"`
	CaseID  string `json:"case_id,omitempty"`
	Message string `json:"message"`
}

type auditCaseOutput struct {
	CaseID string `json:"case_id"`
	Intact bool   `json:"intact"`
	Error  string `json:"error,omitempty"`
}

type custodyLine struct {
	ArtifactID string `json:"artifact_id"`
	Filename   string `json:"filename"`
	At         string `json:"at"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	Hash       string `json:"hash"`
	Notes      string `json:"notes,omitempty"`
}

type getCustodyOutput struct {
	CaseID  string        `json:"case_id"`
	Entries []custodyLine `json:"entries"`
}

// --- Tool handlers ---

func (s *Server) handleListCases(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listCasesInput) (*sdkmcp.CallToolResult, listCasesOutput, error) {
	cases, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, listCasesOutput{}, fmt.Errorf("list_cases: %w", err)
	}
	out := listCasesOutput{Cases: make([]caseEntry, 0, len(cases)), Total: len(cases)}
	for _, rec := range cases {
		out.Cases = append(out.Cases, caseEntry{
			ID:            string(rec.ID),
			Name:          rec.Name,
			CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
			Seal:          rec.Seal,
			EvidenceCount: len(rec.Evidence),
		})
	}
	return nil, out, nil
}

func (s *Server) find(ctx context.Context, ref string) (*types.CaseRecord, error) {
	if ref == "" {
		return nil, fmt.Errorf("case is required")
	}
	return state.Find(ctx, s.store, ref)
}

func (s *Server) handleGetReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input caseRefInput) (*sdkmcp.CallToolResult, getReportOutput, error) {
	rec, err := s.find(ctx, input.Case)
	if err != nil {
		return nil, getReportOutput{}, err
	}
	return nil, getReportOutput{CaseID: string(rec.ID), Report: rec.Report, Seal: rec.Seal}, nil
}

func (s *Server) handleVerifySeal(ctx context.Context, _ *sdkmcp.CallToolRequest, input verifySealInput) (*sdkmcp.CallToolResult, verifySealOutput, error) {
	if input.Seal == "" {
		return nil, verifySealOutput{}, fmt.Errorf("seal is required")
	}
	cases, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, verifySealOutput{}, fmt.Errorf("verify_seal: %w", err)
	}
	v := seal.Verify(input.Seal, cases)
	out := verifySealOutput{Matched: v.Matched, Message: v.Message}
	if v.Case != nil {
		out.CaseID = string(v.Case.ID)
	}
	s.log.Info("seal checked", "matched", v.Matched)
	return nil, out, nil
}

func (s *Server) handleAuditCase(ctx context.Context, _ *sdkmcp.CallToolRequest, input caseRefInput) (*sdkmcp.CallToolResult, auditCaseOutput, error) {
	rec, err := s.find(ctx, input.Case)
	if err != nil {
		return nil, auditCaseOutput{}, err
	}
	out := auditCaseOutput{CaseID: string(rec.ID), Intact: true}
	if err := seal.Audit(rec); err != nil {
		out.Intact = false
		out.Error = err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleGetCustody(ctx context.Context, _ *sdkmcp.CallToolRequest, input caseRefInput) (*sdkmcp.CallToolResult, getCustodyOutput, error) {
	rec, err := s.find(ctx, input.Case)
	if err != nil {
		return nil, getCustodyOutput{}, err
	}
	out := getCustodyOutput{CaseID: string(rec.ID), Entries: []custodyLine{}}
	for _, a := range rec.Evidence {
		for _, e := range a.Custody {
			out.Entries = append(out.Entries, custodyLine{
				ArtifactID: string(a.ID),
				Filename:   a.Filename,
				At:         e.At.UTC().Format(time.RFC3339Nano),
				Action:     string(e.Action),
				Actor:      e.Actor,
				Hash:       e.Hash,
				Notes:      e.Notes,
			})
		}
	}
	return nil, out, nil
}
