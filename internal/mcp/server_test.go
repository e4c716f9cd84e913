package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symindex/internal/config"
	"github.com/standardbeagle/symindex/internal/idcodec"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

var (
	vectorID = idcodec.FromUSR("c:@N@std@S@vector")
	vecFnID  = idcodec.FromUSR("c:@F@vec")
	hiddenID = idcodec.FromUSR("c:@N@detail@F@vecImpl")
)

func testIndex(t *testing.T) *index.MemIndex {
	t.Helper()
	sb := slab.NewSymbolBuilder()
	sb.Insert(types.Symbol{ID: vectorID, Name: "vector", Scope: "std::", Kind: types.KindClass,
		Flags: types.FlagIndexedForCodeCompletion, References: 50})
	sb.Insert(types.Symbol{ID: vecFnID, Name: "vec", Kind: types.KindFunction,
		Flags: types.FlagIndexedForCodeCompletion, References: 3,
		Definition: types.Location{FileURI: "file:///v.cc", Start: types.Position{Line: 4}, End: types.Position{Line: 4, Column: 3}}})
	sb.Insert(types.Symbol{ID: hiddenID, Name: "vecImpl", Scope: "detail::", Kind: types.KindFunction})

	rb := slab.NewRefBuilder(slab.RefFilter{})
	rb.Insert(vecFnID, types.Ref{Location: types.Location{FileURI: "file:///v.h", Start: types.Position{Line: 1}}, Kind: types.RefDeclaration})
	rb.Insert(vecFnID, types.Ref{Location: types.Location{FileURI: "file:///v.cc", Start: types.Position{Line: 4}}, Kind: types.RefDefinition | types.RefDeclaration})
	rb.Insert(vecFnID, types.Ref{Location: types.Location{FileURI: "file:///main.cc", Start: types.Position{Line: 9}}, Kind: types.RefReference})

	m := index.NewMemIndex()
	require.NoError(t, m.Build(index.NewSymbolSnapshot(1, sb.Build()), index.NewRefSnapshot(1, rb.Build())))
	return m
}

func testServer(t *testing.T, idx index.SymbolIndex) *Server {
	t.Helper()
	s, err := NewServer(idx, config.Default(), WithDiagnosticLogger(NoOpLogger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callTool(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args interface{}) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func names(infos []SymbolInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Scope+info.Name)
	}
	return out
}

func TestNewServer(t *testing.T) {
	s := testServer(t, testIndex(t))
	assert.NotNil(t, s.server)
	assert.NotNil(t, s.cfg)

	_, err := NewServer(nil, nil, WithDiagnosticLogger(NoOpLogger))
	assert.Error(t, err)

	s2, err := NewServer(testIndex(t), nil, WithDiagnosticLogger(NoOpLogger))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Index.MaxResults, s2.cfg.Index.MaxResults)
}

func TestHandleFuzzyFind(t *testing.T) {
	s := testServer(t, testIndex(t))

	tests := []struct {
		name   string
		params FuzzyFindParams
		want   []string
	}{
		{"any scope by default", FuzzyFindParams{Query: "vec"}, []string{"vec", "std::vector", "detail::vecImpl"}},
		{"qualified query restricts scope", FuzzyFindParams{Query: "std::vec"}, []string{"std::vector"}},
		{"leading separator is global scope", FuzzyFindParams{Query: "::vec"}, []string{"vec"}},
		{"explicit scopes win over qualifier", FuzzyFindParams{Query: "std::vec", Scopes: []string{"detail::"}}, []string{"detail::vecImpl"}},
		{"any_scope ignores scopes", FuzzyFindParams{Query: "vec", Scopes: []string{"std::"}, AnyScope: true}, []string{"vec", "std::vector", "detail::vecImpl"}},
		{"completion only", FuzzyFindParams{Query: "vec", Completion: true}, []string{"vec", "std::vector"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s.handleFuzzyFind, tt.params)
			require.False(t, result.IsError)

			var resp FuzzyFindResponse
			decodeResult(t, result, &resp)
			assert.ElementsMatch(t, tt.want, names(resp.Symbols))
			assert.False(t, resp.More)
		})
	}
}

func TestHandleFuzzyFind_LimitReportsMore(t *testing.T) {
	s := testServer(t, testIndex(t))

	var resp FuzzyFindResponse
	decodeResult(t, callTool(t, s.handleFuzzyFind, FuzzyFindParams{Query: "vec", Max: 1}), &resp)
	require.Len(t, resp.Symbols, 1)
	assert.True(t, resp.More)
}

func TestHandleFuzzyFind_SymbolFields(t *testing.T) {
	s := testServer(t, testIndex(t))

	var resp FuzzyFindResponse
	decodeResult(t, callTool(t, s.handleFuzzyFind, FuzzyFindParams{Query: "::vec"}), &resp)
	require.Len(t, resp.Symbols, 1)

	got := resp.Symbols[0]
	assert.Equal(t, vecFnID.String(), got.ID)
	assert.Equal(t, "function", got.Kind)
	assert.Equal(t, uint32(3), got.References)
	assert.Equal(t, "file:///v.cc:4:0-4:3", got.Definition)
	assert.Empty(t, got.Declaration)
}

func TestHandleFuzzyFind_Errors(t *testing.T) {
	s := testServer(t, testIndex(t))

	tests := []struct {
		name   string
		params FuzzyFindParams
	}{
		{"empty query", FuzzyFindParams{}},
		{"scope without separator", FuzzyFindParams{Query: "vec", Scopes: []string{"std"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s.handleFuzzyFind, tt.params)
			assert.True(t, result.IsError)

			var body map[string]interface{}
			decodeResult(t, result, &body)
			assert.Equal(t, "fuzzy_find", body["operation"])
			assert.NotEmpty(t, body["suggestions"])
		})
	}
}

func TestHandleLookup(t *testing.T) {
	s := testServer(t, testIndex(t))
	unknown := idcodec.FromUSR("c:@F@missing")

	var resp LookupResponse
	decodeResult(t, callTool(t, s.handleLookup, LookupParams{
		IDs: []string{vectorID.String(), unknown.String() + "," + vectorID.String()},
	}), &resp)
	assert.Equal(t, []string{"std::vector"}, names(resp.Symbols))

	bad := callTool(t, s.handleLookup, LookupParams{IDs: []string{"nothex"}})
	assert.True(t, bad.IsError)

	empty := callTool(t, s.handleLookup, LookupParams{})
	assert.True(t, empty.IsError)
}

func TestHandleRefs(t *testing.T) {
	s := testServer(t, testIndex(t))

	var all RefsResponse
	decodeResult(t, callTool(t, s.handleRefs, RefsParams{IDs: []string{vecFnID.String(), vecFnID.String()}}), &all)
	require.Len(t, all.Refs, 3)
	for _, r := range all.Refs {
		assert.Equal(t, vecFnID.String(), r.ID)
	}

	var decls RefsResponse
	decodeResult(t, callTool(t, s.handleRefs, RefsParams{IDs: []string{vecFnID.String()}, Kinds: []string{"declaration"}}), &decls)
	require.Len(t, decls.Refs, 2)
	assert.Equal(t, "declaration", decls.Refs[0].Kind)
	assert.Equal(t, "declaration|definition", decls.Refs[1].Kind)

	var none RefsResponse
	decodeResult(t, callTool(t, s.handleRefs, RefsParams{IDs: []string{vectorID.String()}}), &none)
	assert.Empty(t, none.Refs)

	bad := callTool(t, s.handleRefs, RefsParams{IDs: []string{vecFnID.String()}, Kinds: []string{"usage"}})
	assert.True(t, bad.IsError)
}

func TestHandlers_SuggestionsFollowRejectedArgument(t *testing.T) {
	s := testServer(t, testIndex(t))

	tests := []struct {
		name    string
		result  *mcp.CallToolResult
		mention string
	}{
		{"empty query", callTool(t, s.handleFuzzyFind, FuzzyFindParams{}), "qualified query"},
		{"bad scope", callTool(t, s.handleFuzzyFind, FuzzyFindParams{Query: "vec", Scopes: []string{"std"}}), "'::'"},
		{"missing ids", callTool(t, s.handleLookup, LookupParams{}), "hex ids"},
		{"bad id", callTool(t, s.handleRefs, RefsParams{IDs: []string{"nothex"}}), "hex ids"},
		{"bad kind", callTool(t, s.handleRefs, RefsParams{IDs: []string{vecFnID.String()}, Kinds: []string{"usage"}}), "Valid kinds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, tt.result.IsError)

			var body struct {
				Error       string   `json:"error"`
				Suggestions []string `json:"suggestions"`
			}
			decodeResult(t, tt.result, &body)
			assert.Contains(t, body.Error, "rejected")
			require.Len(t, body.Suggestions, 1)
			assert.Contains(t, body.Suggestions[0], tt.mention)
		})
	}
}

func TestErrorSuggestions_UntypedErrors(t *testing.T) {
	assert.Empty(t, generateErrorSuggestions(errors.New("scope ids kind")))
}

func TestHandleMemoryUsage(t *testing.T) {
	idx := testIndex(t)
	s := testServer(t, idx)

	var body struct {
		Summary struct {
			Generation  uint64 `json:"generation"`
			MemoryBytes int64  `json:"memory_bytes"`
		} `json:"summary"`
		Symbols struct {
			Total int64 `json:"total"`
		} `json:"symbols"`
		References struct {
			Total int64 `json:"total"`
		} `json:"references"`
	}
	decodeResult(t, callTool(t, s.handleMemoryUsage, struct{}{}), &body)
	assert.Equal(t, uint64(1), body.Summary.Generation)
	assert.Equal(t, int64(idx.EstimateMemoryUsage()), body.Summary.MemoryBytes)
	assert.Equal(t, int64(3), body.Symbols.Total)
	assert.Equal(t, int64(3), body.References.Total)
}

type panickingIndex struct{ index.SymbolIndex }

func (panickingIndex) FuzzyFind(index.FuzzyFindRequest, func(*types.Symbol)) bool {
	panic("boom")
}

func (panickingIndex) EstimateMemoryUsage() int { return 42 }

func TestHandlers_RecoverFromPanic(t *testing.T) {
	s := testServer(t, panickingIndex{})

	result := callTool(t, s.handleFuzzyFind, FuzzyFindParams{Query: "x"})
	assert.True(t, result.IsError)

	var body map[string]interface{}
	decodeResult(t, callTool(t, s.handleMemoryUsage, struct{}{}), &body)
	assert.Equal(t, float64(42), body["summary"].(map[string]interface{})["memory_bytes"])
}

func TestHandlers_FileIndex(t *testing.T) {
	fi := index.NewFileIndex(nil)
	sb := slab.NewSymbolBuilder()
	sb.Insert(types.Symbol{ID: vecFnID, Name: "vec"})
	require.NoError(t, fi.UpdateSlabs("a.h", sb.Build(), nil))

	s := testServer(t, fi)
	var resp LookupResponse
	decodeResult(t, callTool(t, s.handleLookup, LookupParams{IDs: []string{vecFnID.String()}}), &resp)
	assert.Equal(t, []string{"vec"}, names(resp.Symbols))

	var body map[string]interface{}
	decodeResult(t, callTool(t, s.handleMemoryUsage, struct{}{}), &body)
	assert.Contains(t, body, "symbols")
}
