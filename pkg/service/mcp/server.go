// Package mcp exposes the item operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "gleaner"
	serverVersion = "0.1.0"
)

// Server registers one MCP tool per item operation
type Server struct {
	uc     *item.UseCase
	server *mcp.Server
}

func New(uc *item.UseCase) *Server {
	s := &Server{
		uc: uc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "enrich_item",
		Description: "Enrich one item with market analysis. A stored enrichment is returned without calling the LLM again.",
	}, s.enrichItem)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "enrich_batch",
		Description: "Enrich many items with bounded concurrency. Results keep the input order.",
	}, s.enrichBatch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_items",
		Description: "Run a free-form instruction over up to 50 items (default 10) and store the result as a new analysis.",
	}, s.analyzeItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_enrichment",
		Description: "Get the stored enrichment of an item by its id.",
	}, s.getEnrichment)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_analysis",
		Description: "Get a stored analysis by its id.",
	}, s.getAnalysis)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_enrichment",
		Description: "Delete the stored enrichment of an item so that it is analyzed again next time.",
	}, s.deleteEnrichment)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_fresh",
		Description: "Search the content source for a query, enrich items not seen in the previous search and report them.",
	}, s.checkFresh)

	return s
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves over stdin/stdout until the client disconnects or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "failed to run mcp server")
	}
	return nil
}

// Handler returns a streamable HTTP handler serving the same tools
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func result(resp *model.Response) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: !resp.Success,
	}, nil, nil
}

func failure(ctx context.Context, tool string, err error) (*mcp.CallToolResult, any, error) {
	if !errors.Is(err, model.ErrInvalidInput) && !errors.Is(err, model.ErrNotFound) {
		logging.From(ctx).Error("tool failed", "tool", tool, "error", err)
	}
	return result(model.Fail(err))
}

type itemInput struct {
	ID          string `json:"id" jsonschema:"Unique identifier of the item"`
	Title       string `json:"title,omitempty" jsonschema:"Title of the item"`
	Author      string `json:"author,omitempty" jsonschema:"Author name"`
	Category    string `json:"category,omitempty" jsonschema:"Category such as a subreddit or feed name"`
	Score       int    `json:"score,omitempty" jsonschema:"Engagement score"`
	NumComments int    `json:"num_comments,omitempty" jsonschema:"Number of comments"`
	URL         string `json:"url,omitempty" jsonschema:"Link of the item"`
	Body        string `json:"body,omitempty" jsonschema:"Text content"`
}

func (x *itemInput) toItem() *model.Item {
	if x == nil {
		return nil
	}
	return &model.Item{
		ID:          model.ItemID(x.ID),
		Title:       x.Title,
		Author:      x.Author,
		Category:    x.Category,
		Score:       x.Score,
		NumComments: x.NumComments,
		URL:         x.URL,
		Permalink:   x.URL,
		Body:        x.Body,
	}
}

func toItems(inputs []*itemInput) []*model.Item {
	items := make([]*model.Item, 0, len(inputs))
	for _, x := range inputs {
		items = append(items, x.toItem())
	}
	return items
}

type enrichItemParams struct {
	Item *itemInput `json:"item" jsonschema:"The item to enrich"`
}

func (s *Server) enrichItem(ctx context.Context, req *mcp.CallToolRequest, params *enrichItemParams) (*mcp.CallToolResult, any, error) {
	record, status, err := s.uc.EnrichItem(ctx, params.Item.toItem())
	if err != nil {
		return failure(ctx, "enrich_item", err)
	}
	return result(model.OK(record).WithCached(status == cache.StatusHit))
}

type enrichBatchParams struct {
	Items []*itemInput `json:"items" jsonschema:"Items to enrich"`
}

func (s *Server) enrichBatch(ctx context.Context, req *mcp.CallToolRequest, params *enrichBatchParams) (*mcp.CallToolResult, any, error) {
	res, err := s.uc.EnrichBatch(ctx, toItems(params.Items))
	if err != nil && res == nil {
		return failure(ctx, "enrich_batch", err)
	}
	if err != nil {
		return result(&model.Response{Success: false, Data: res, Error: err.Error()})
	}
	return result(model.OK(res).WithCount(len(res.Records)))
}

type analyzeItemsParams struct {
	Instruction string       `json:"instruction" jsonschema:"What to analyze across the items"`
	Items       []*itemInput `json:"items,omitempty" jsonschema:"Items to analyze"`
	ItemIDs     []string     `json:"item_ids,omitempty" jsonschema:"Ids of already enriched items to analyze"`
	Count       int          `json:"count,omitempty" jsonschema:"Number of items to use, default 10, max 50"`
	PromptType  string       `json:"prompt_type,omitempty" jsonschema:"Label stored with the analysis"`
}

func (s *Server) analyzeItems(ctx context.Context, req *mcp.CallToolRequest, params *analyzeItemsParams) (*mcp.CallToolResult, any, error) {
	input := item.AnalyzeInput{
		Items:       toItems(params.Items),
		Instruction: params.Instruction,
		Count:       params.Count,
		PromptType:  params.PromptType,
	}
	for _, id := range params.ItemIDs {
		input.ItemIDs = append(input.ItemIDs, model.ItemID(id))
	}

	record, err := s.uc.Analyze(ctx, input)
	if err != nil {
		return failure(ctx, "analyze_items", err)
	}
	return result(model.OK(record))
}

type idParams struct {
	ID string `json:"id" jsonschema:"Identifier of the record"`
}

func (s *Server) getEnrichment(ctx context.Context, req *mcp.CallToolRequest, params *idParams) (*mcp.CallToolResult, any, error) {
	record, err := s.uc.GetEnrichment(ctx, model.ItemID(params.ID))
	if err != nil {
		return failure(ctx, "get_enrichment", err)
	}
	return result(model.OK(record))
}

func (s *Server) getAnalysis(ctx context.Context, req *mcp.CallToolRequest, params *idParams) (*mcp.CallToolResult, any, error) {
	record, err := s.uc.GetAnalysis(ctx, model.AnalysisID(params.ID))
	if err != nil {
		return failure(ctx, "get_analysis", err)
	}
	return result(model.OK(record))
}

func (s *Server) deleteEnrichment(ctx context.Context, req *mcp.CallToolRequest, params *idParams) (*mcp.CallToolResult, any, error) {
	if err := s.uc.DeleteEnrichment(ctx, model.ItemID(params.ID)); err != nil {
		return failure(ctx, "delete_enrichment", err)
	}
	return result(model.OK(map[string]string{"message": "enrichment deleted"}))
}

type checkFreshParams struct {
	Query string `json:"query" jsonschema:"Search query, or feed URL for the feed source"`
}

func (s *Server) checkFresh(ctx context.Context, req *mcp.CallToolRequest, params *checkFreshParams) (*mcp.CallToolResult, any, error) {
	report, err := s.uc.CheckFresh(ctx, params.Query)
	if err != nil && report == nil {
		return failure(ctx, "check_fresh", err)
	}

	data := map[string]any{"report": report, "records": report.Records()}
	if err != nil {
		return result(&model.Response{Success: false, Data: data, Error: err.Error()})
	}
	return result(model.OK(data).WithCount(report.Fresh))
}
