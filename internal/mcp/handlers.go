package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/idcodec"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/metrics"
	"github.com/standardbeagle/symindex/internal/types"
)

// FuzzyFindParams are the arguments of the fuzzy_find tool
type FuzzyFindParams struct {
	Query      string   `json:"query"`
	Scopes     []string `json:"scopes,omitempty"`
	AnyScope   bool     `json:"any_scope,omitempty"`
	Completion bool     `json:"completion,omitempty"`
	Max        int      `json:"max,omitempty"`
}

// LookupParams are the arguments of the lookup tool
type LookupParams struct {
	IDs []string `json:"ids"`
}

// RefsParams are the arguments of the refs tool
type RefsParams struct {
	IDs   []string `json:"ids"`
	Kinds []string `json:"kinds,omitempty"`
}

// SymbolInfo is the wire form of one symbol
type SymbolInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Scope       string   `json:"scope"`
	Kind        string   `json:"kind"`
	Flags       []string `json:"flags,omitempty"`
	References  uint32   `json:"references,omitempty"`
	Origin      []string `json:"origin,omitempty"`
	Declaration string   `json:"declaration,omitempty"`
	Definition  string   `json:"definition,omitempty"`
}

// FuzzyFindResponse lists matches best first
type FuzzyFindResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
	More    bool         `json:"more"`
}

// LookupResponse lists the symbols found, in index order
type LookupResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// RefInfo is the wire form of one occurrence
type RefInfo struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Kind     string `json:"kind"`
}

// RefsResponse lists occurrences grouped by requested id
type RefsResponse struct {
	Refs []RefInfo `json:"refs"`
}

func newSymbolInfo(sym *types.Symbol) SymbolInfo {
	info := SymbolInfo{
		ID:         idcodec.Encode(sym.ID),
		Name:       sym.Name,
		Scope:      sym.Scope,
		Kind:       sym.Kind.String(),
		Flags:      sym.Flags.Names(),
		References: sym.References,
		Origin:     sym.Origin.Names(),
	}
	if !sym.Declaration.IsZero() {
		info.Declaration = sym.Declaration.String()
	}
	if !sym.Definition.IsZero() {
		info.Definition = sym.Definition.String()
	}
	return info
}

// fuzzyFindRequest turns tool arguments into an index request. A qualified
// query contributes its scope unless scopes were given explicitly.
func (s *Server) fuzzyFindRequest(p FuzzyFindParams) (index.FuzzyFindRequest, error) {
	if strings.TrimSpace(p.Query) == "" {
		return index.FuzzyFindRequest{}, ierrors.NewQueryError(p.Query, errors.New("query is required")).WithField("query")
	}
	for _, scope := range p.Scopes {
		if scope != "" && !strings.HasSuffix(scope, types.ScopeSeparator) {
			return index.FuzzyFindRequest{}, ierrors.NewQueryError(p.Query,
				fmt.Errorf("scope %q must end with %q", scope, types.ScopeSeparator)).WithField("scopes")
		}
	}

	scope, name, qualified := index.SplitQualifiedQuery(p.Query)
	req := index.FuzzyFindRequest{
		Query:                     name,
		Scopes:                    p.Scopes,
		AnyScope:                  p.AnyScope,
		RestrictForCodeCompletion: p.Completion,
		Limit:                     p.Max,
	}
	if qualified && len(req.Scopes) == 0 {
		req.Scopes = []string{scope}
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Index.MaxResults
	}
	return req, nil
}

func (s *Server) handleFuzzyFind(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("fuzzy_find", func() (*mcp.CallToolResult, error) {
		var p FuzzyFindParams
		if err := unmarshalArguments(req, &p); err != nil {
			return nil, err
		}
		ffr, err := s.fuzzyFindRequest(p)
		if err != nil {
			return nil, err
		}

		resp := FuzzyFindResponse{Symbols: []SymbolInfo{}}
		resp.More = s.index.FuzzyFind(ffr, func(sym *types.Symbol) {
			resp.Symbols = append(resp.Symbols, newSymbolInfo(sym))
		})
		s.diagnosticLogger.Printf("fuzzy_find %q: %d results (more=%v)", p.Query, len(resp.Symbols), resp.More)
		return createJSONResponse(resp)
	})
}

func (s *Server) handleLookup(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("lookup", func() (*mcp.CallToolResult, error) {
		var p LookupParams
		if err := unmarshalArguments(req, &p); err != nil {
			return nil, err
		}
		ids, err := decodeIDs(p.IDs)
		if err != nil {
			return nil, err
		}

		resp := LookupResponse{Symbols: []SymbolInfo{}}
		s.index.Lookup(index.LookupRequest{IDs: ids}, func(sym *types.Symbol) {
			resp.Symbols = append(resp.Symbols, newSymbolInfo(sym))
		})
		return createJSONResponse(resp)
	})
}

func (s *Server) handleRefs(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("refs", func() (*mcp.CallToolResult, error) {
		var p RefsParams
		if err := unmarshalArguments(req, &p); err != nil {
			return nil, err
		}
		ids, err := decodeIDs(p.IDs)
		if err != nil {
			return nil, err
		}
		filter, err := types.ParseRefKind(p.Kinds)
		if err != nil {
			return nil, ierrors.NewQueryError(strings.Join(p.Kinds, ","), err).WithField("kinds")
		}

		// One request per id so every occurrence can be attributed.
		resp := RefsResponse{Refs: []RefInfo{}}
		seen := make(map[types.SymbolID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			s.index.Refs(index.RefsRequest{IDs: []types.SymbolID{id}, Filter: filter}, func(ref types.Ref) {
				resp.Refs = append(resp.Refs, RefInfo{
					ID:       idcodec.Encode(id),
					Location: ref.Location.String(),
					Kind:     ref.Kind.String(),
				})
			})
		}
		return createJSONResponse(resp)
	})
}

func (s *Server) handleMemoryUsage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("memory_usage", func() (*mcp.CallToolResult, error) {
		gen := generationOf(s.index)
		if gen == nil {
			return createJSONResponse(map[string]interface{}{
				"summary": map[string]interface{}{
					"memory_bytes": s.index.EstimateMemoryUsage(),
				},
			})
		}
		stats := metrics.NewIndexStats()
		stats.CalculateFromGeneration(gen)
		return createJSONResponse(stats.FormatAsJSON())
	})
}

// generationOf returns the installed generation of the in-memory index
// types, nil for any other SymbolIndex.
func generationOf(idx index.SymbolIndex) *index.Generation {
	switch v := idx.(type) {
	case *index.MemIndex:
		return v.Snapshot()
	case *index.FileIndex:
		return v.Index().Snapshot()
	case *index.Generation:
		return v
	}
	return nil
}

func unmarshalArguments(req *mcp.CallToolRequest, v interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func decodeIDs(raw []string) ([]types.SymbolID, error) {
	if len(raw) == 0 {
		return nil, ierrors.NewQueryError("", errors.New("ids are required")).WithField("ids")
	}
	ids, err := idcodec.DecodeList(raw)
	if err != nil {
		return nil, ierrors.NewQueryError(strings.Join(raw, ","), err).WithField("ids")
	}
	return ids, nil
}
