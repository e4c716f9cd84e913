package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result with IsError
// set, so the client sees the message instead of a protocol error.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if suggestions := generateErrorSuggestions(err); len(suggestions) > 0 {
		errorData["suggestions"] = suggestions
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// generateErrorSuggestions returns hints for rejected request arguments
func generateErrorSuggestions(err error) []string {
	var qe *ierrors.QueryError
	if !errors.As(err, &qe) {
		return nil
	}

	switch qe.Field {
	case "query":
		return []string{"Provide a name fragment like 'vec' or a qualified query like 'std::vec'"}
	case "scopes":
		return []string{"Scopes end with '::', e.g. \"ns::\"; use \"\" for the global scope"}
	case "ids":
		return []string{"Pass the 16-digit hex ids returned by fuzzy_find"}
	case "kinds":
		return []string{"Valid kinds: declaration, definition, reference, all"}
	}
	return nil
}
