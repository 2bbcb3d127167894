package compare

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMCPImpl = &mcp.Implementation{Name: "ssrdiff-test", Version: "0.1.0"}

func mcpSession(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	return result
}

func mcpText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NoError(t, result.GetError())
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return tc.Text
}

func TestMCP_ListTools(t *testing.T) {
	session := mcpSession(t, NewService(&fakeAcquirer{}))
	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ssrdiff_compare", "ssrdiff_normalize", "ssrdiff_diff", "ssrdiff_history"}, names)
}

func TestMCP_Compare(t *testing.T) {
	acq := &fakeAcquirer{reference: referenceHTML, rendered: renderedHTML}
	session := mcpSession(t, NewService(acq))

	text := mcpText(t, mcpCall(t, session, "ssrdiff_compare", map[string]any{
		"url":     pageURL,
		"options": map[string]any{"highlight": true, "rewrite": true},
	}))

	var rep Report
	require.NoError(t, json.Unmarshal([]byte(text), &rep))
	assert.Equal(t, pageURL, rep.URL)
	assert.Equal(t, 1, rep.Added)
	assert.True(t, rep.Compared)
	assert.Contains(t, rep.Rendered.Markup, "diff-added")
}

func TestMCP_CompareInvalid(t *testing.T) {
	session := mcpSession(t, NewService(&fakeAcquirer{}))
	res := mcpCall(t, session, "ssrdiff_compare", map[string]any{"url": "nope"})
	assert.True(t, res.IsError)
}

func TestMCP_Normalize(t *testing.T) {
	session := mcpSession(t, NewService(&fakeAcquirer{}))
	text := mcpText(t, mcpCall(t, session, "ssrdiff_normalize", map[string]any{
		"markup": `<html><body><img src="c.png"></body></html>`,
		"base":   "https://example.com/a/b/",
	}))

	var resp NormalizeResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Contains(t, resp.Markup, `src="https://example.com/a/b/c.png"`)
}

func TestMCP_Diff(t *testing.T) {
	session := mcpSession(t, NewService(&fakeAcquirer{}))
	text := mcpText(t, mcpCall(t, session, "ssrdiff_diff", map[string]any{
		"rendered":  `<html><body><main></main></body></html>`,
		"reference": `<html><body><main></main><aside></aside></body></html>`,
	}))

	var resp struct {
		Added    int    `json:"added"`
		Missing  int    `json:"missing"`
		Compared bool   `json:"compared"`
		Ref      string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, 0, resp.Added)
	assert.Equal(t, 1, resp.Missing)
	assert.True(t, resp.Compared)
	assert.Contains(t, resp.Ref, `<aside class="diff-missing">`)
}

func TestMCP_History(t *testing.T) {
	session := mcpSession(t, NewService(&fakeAcquirer{}))
	text := mcpText(t, mcpCall(t, session, "ssrdiff_history", map[string]any{}))
	assert.JSONEq(t, `{"entries":[]}`, text)
}

func TestMCP_HistoryForPage(t *testing.T) {
	svc, _ := newService(t, &fakeAcquirer{reference: referenceHTML, rendered: renderedHTML})
	ctx := context.Background()
	for _, u := range []string{pageURL, "https://other.test/"} {
		_, err := svc.Compare(ctx, CompareRequest{URL: u})
		require.NoError(t, err)
	}

	session := mcpSession(t, svc)
	text := mcpText(t, mcpCall(t, session, "ssrdiff_history", map[string]any{"url": "https://other.test/"}))

	var resp struct {
		Entries []struct {
			PageURL string `json:"page_url"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "https://other.test/", resp.Entries[0].PageURL)
}
