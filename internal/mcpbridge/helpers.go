package mcpbridge

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// boolArg extracts a boolean argument from a tool request, returning
// defaultVal if the key is missing or not a boolean.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// toStringSlice converts a JSON array argument to []string.
func toStringSlice(v any) ([]string, error) {
	switch arr := v.(type) {
	case []any:
		result := make([]string, len(arr))
		for i, elem := range arr {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string: %T", i, elem)
			}
			result[i] = s
		}
		return result, nil
	case []string:
		return arr, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}
}

// describeSource renders one source as a listing line.
func describeSource(src *types.Source) string {
	line := fmt.Sprintf("%s [%s] id=%s", src.Name, src.Type, src.ID)
	if src.Path != "" {
		line += " path=" + src.Path
	}
	if src.URL != "" {
		line += " url=" + src.URL
	}
	return line
}

// sourceText resolves the text behind a source. File content comes from
// the hub; the other types carry it on the record.
func sourceText(ctx context.Context, hub Hub, src *types.Source) (string, error) {
	if src.Type != types.SourceTypeFile {
		return src.Content, nil
	}
	content, err := hub.GetSourceContent(ctx, src.ID)
	if err != nil {
		return "", err
	}
	return content.Content, nil
}
