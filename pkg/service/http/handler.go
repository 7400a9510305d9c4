package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/goerr/v2"
)

// post accepts both the item field names and the Reddit field names
type post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Subreddit   string    `json:"subreddit"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	URL         string    `json:"url"`
	Permalink   string    `json:"permalink"`
	Body        string    `json:"body"`
	Selftext    string    `json:"selftext"`
	CreatedAt   time.Time `json:"created_at"`
	Created     time.Time `json:"created"`
}

func (p *post) toItem() *model.Item {
	if p == nil {
		return nil
	}
	x := &model.Item{
		ID:          model.ItemID(p.ID),
		Title:       p.Title,
		Author:      p.Author,
		Category:    p.Category,
		Score:       p.Score,
		NumComments: p.NumComments,
		URL:         p.URL,
		Permalink:   p.Permalink,
		Body:        p.Body,
		CreatedAt:   p.CreatedAt,
	}
	if x.Category == "" {
		x.Category = p.Subreddit
	}
	if x.Body == "" {
		x.Body = p.Selftext
	}
	if x.CreatedAt.IsZero() {
		x.CreatedAt = p.Created
	}
	return x
}

func toItems(posts []*post) []*model.Item {
	items := make([]*model.Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, p.toItem())
	}
	return items
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, goerr.Wrap(model.ErrInvalidInput, "invalid request body", goerr.V("reason", err.Error())))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		fail(c, goerr.Wrap(model.ErrInvalidInput, "invalid query parameter", goerr.V(key, v)))
		return 0, false
	}
	return n, true
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

type enrichRequest struct {
	Item *post `json:"item"`
	Post *post `json:"post"`
}

func (s *Server) enrich(c *gin.Context) {
	var req enrichRequest
	if !bind(c, &req) {
		return
	}
	p := req.Item
	if p == nil {
		p = req.Post
	}

	record, status, err := s.uc.EnrichItem(c.Request.Context(), p.toItem())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(record).WithCached(status == cache.StatusHit))
}

type enrichBatchRequest struct {
	Items []*post `json:"items"`
	Posts []*post `json:"posts"`
}

func (s *Server) enrichBatch(c *gin.Context) {
	var req enrichBatchRequest
	if !bind(c, &req) {
		return
	}
	posts := req.Items
	if len(posts) == 0 {
		posts = req.Posts
	}

	result, err := s.uc.EnrichBatch(c.Request.Context(), toItems(posts))
	if err != nil && result == nil {
		fail(c, err)
		return
	}
	if err != nil {
		c.JSON(statusOf(err), &model.Response{
			Success: false,
			Data:    result,
			Error:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, model.OK(result).WithCount(len(result.Records)))
}

type analyzeRequest struct {
	Items       []*post  `json:"items"`
	Posts       []*post  `json:"posts"`
	ItemIDs     []string `json:"item_ids"`
	Instruction string   `json:"instruction"`
	Prompt      string   `json:"prompt"`
	Count       int      `json:"count"`
	PostCount   int      `json:"postCount"`
	PromptType  string   `json:"prompt_type"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if !bind(c, &req) {
		return
	}

	input := item.AnalyzeInput{
		Items:       toItems(append(req.Items, req.Posts...)),
		Instruction: req.Instruction,
		Count:       req.Count,
		PromptType:  req.PromptType,
	}
	if input.Instruction == "" {
		input.Instruction = req.Prompt
	}
	if input.Count == 0 {
		input.Count = req.PostCount
	}
	for _, id := range req.ItemIDs {
		input.ItemIDs = append(input.ItemIDs, model.ItemID(id))
	}

	record, err := s.uc.Analyze(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(record))
}

func (s *Server) getEnrichment(c *gin.Context) {
	record, err := s.uc.GetEnrichment(c.Request.Context(), model.ItemID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(record))
}

func (s *Server) listEnrichments(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	records, err := s.uc.ListEnrichments(c.Request.Context(), item.ListOptions{
		Limit:        limit,
		DegradedOnly: c.Query("degraded") == "true",
		Category:     c.Query("category"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(records).WithCount(len(records)))
}

func (s *Server) deleteEnrichment(c *gin.Context) {
	if err := s.uc.DeleteEnrichment(c.Request.Context(), model.ItemID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(gin.H{"message": "enrichment deleted"}))
}

func (s *Server) getAnalysis(c *gin.Context) {
	record, err := s.uc.GetAnalysis(c.Request.Context(), model.AnalysisID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(record))
}

func (s *Server) listAnalyses(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	records, err := s.uc.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.OK(records).WithCount(len(records)))
}

type freshRequest struct {
	Query string `json:"query"`
}

func (s *Server) checkFresh(c *gin.Context) {
	var req freshRequest
	if !bind(c, &req) {
		return
	}

	report, err := s.uc.CheckFresh(c.Request.Context(), req.Query)
	if err != nil && report == nil {
		fail(c, err)
		return
	}

	data := gin.H{"report": report, "records": report.Records()}
	if err != nil {
		c.JSON(statusOf(err), &model.Response{Success: false, Data: data, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.OK(data).WithCount(report.Fresh))
}
