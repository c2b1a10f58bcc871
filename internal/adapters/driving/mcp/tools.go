package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// ListCollectionsInput is the input schema for the list_collections tool.
type ListCollectionsInput struct{}

// ListCollectionsOutput is the output schema for the list_collections tool.
type ListCollectionsOutput struct {
	Collections []CollectionOutput `json:"collections"`
}

// CollectionOutput summarises one collection.
type CollectionOutput struct {
	ID            string `json:"collection_id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	SearchType    string `json:"search_type"`
	PaperCount    int    `json:"paper_count"`
	IndexedPapers int    `json:"indexed_papers"`
	Consistent    bool   `json:"consistent"`
}

// SearchInput is the input schema for the search_papers tool.
type SearchInput struct {
	CollectionID string   `json:"collection_id" jsonschema:"the collection to search"`
	Query        string   `json:"query" jsonschema:"natural-language query"`
	PaperIDs     []string `json:"paper_ids,omitempty" jsonschema:"restrict results to these paper ids"`
	Mode         string   `json:"mode,omitempty" jsonschema:"multi (default) or single; single needs exactly one paper id"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// SearchOutput is the output schema for the search_papers tool.
type SearchOutput struct {
	Results []domain.RetrievalResult `json:"results"`
	Count   int                      `json:"count"`
}

// AnswerInput is the input schema for the answer_question tool.
type AnswerInput struct {
	CollectionID string   `json:"collection_id" jsonschema:"the collection to search"`
	Question     string   `json:"question" jsonschema:"the question to answer"`
	PaperIDs     []string `json:"paper_ids,omitempty" jsonschema:"restrict sources to these paper ids"`
	Mode         string   `json:"mode,omitempty" jsonschema:"multi (default) or single; single needs exactly one paper id"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of passages to ground the answer on"`
	TargetWords  int      `json:"target_words,omitempty" jsonschema:"approximate answer length in words"`
}

func (in AnswerInput) search() SearchInput {
	return SearchInput{
		CollectionID: in.CollectionID,
		Query:        in.Question,
		PaperIDs:     in.PaperIDs,
		Mode:         in.Mode,
		Limit:        in.Limit,
	}
}

// AnswerOutput is the output schema for the answer_question tool.
type AnswerOutput struct {
	Answer     string               `json:"answer"`
	Answerable bool                 `json:"answerable"`
	Sources    []domain.PaperSource `json:"sources"`
}

// ListPapersInput is the input schema for the list_papers tool.
type ListPapersInput struct {
	CollectionID string `json:"collection_id" jsonschema:"the collection to list"`
}

// ListPapersOutput is the output schema for the list_papers tool.
type ListPapersOutput struct {
	Papers []domain.PaperSummary `json:"papers"`
	Count  int                   `json:"count"`
}

// SummarizeInput is the input schema for the summarize_papers tool.
type SummarizeInput struct {
	CollectionID string   `json:"collection_id" jsonschema:"the collection holding the papers"`
	PaperIDs     []string `json:"paper_ids" jsonschema:"one or more paper ids to summarize together"`
	MaxTokens    int      `json:"max_tokens,omitempty" jsonschema:"maximum tokens to generate"`
}

// CompareInput is the input schema for the compare_papers tool.
type CompareInput struct {
	CollectionID string   `json:"collection_id" jsonschema:"the collection holding the papers"`
	PaperIDs     []string `json:"paper_ids" jsonschema:"two or more paper ids, labelled Paper A, Paper B and so on in order"`
	Aspect       string   `json:"aspect,omitempty" jsonschema:"all (default), methodology or findings"`
}

// SynthesisOutput is the output schema for the summarize_papers and compare_papers tools.
type SynthesisOutput struct {
	Text   string               `json:"text"`
	Papers []domain.PaperSource `json:"papers"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List paper collections with their search type and index status",
	}, s.handleListCollections)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_papers",
		Description: "Search a collection of academic papers and return ranked passages with paper id, citation key, page and chunk type",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_papers",
		Description: "List the papers in a collection with citation key, title, authors, year and index point count",
	}, s.handleListPapers)

	if s.ports.Synthesis != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "summarize_papers",
			Description: "Summarize one or more papers of a collection, drawing out common themes when there are several",
		}, s.handleSummarize)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "compare_papers",
			Description: "Compare two or more papers: similarities, differences and key insights, optionally focused on methodology or findings",
		}, s.handleCompare)
	}

	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "answer_question",
			Description: "Answer a question from passages retrieved from a collection, with the papers cited",
		}, s.handleAnswer)
	}
}

func (s *Server) handleListCollections(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListCollectionsInput,
) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	collections, err := s.ports.Collections.List(ctx)
	if err != nil {
		return nil, ListCollectionsOutput{}, err
	}

	output := ListCollectionsOutput{Collections: make([]CollectionOutput, len(collections))}
	for i := range collections {
		c := &collections[i]
		output.Collections[i] = CollectionOutput{
			ID:            c.ID,
			Name:          c.Name,
			Description:   c.Description,
			SearchType:    string(c.SearchType),
			PaperCount:    c.PaperCount,
			IndexedPapers: c.IndexedPapers,
			Consistent:    c.Consistent(),
		}
	}
	return nil, output, nil
}

// retrieveRequest validates the scope and builds the request.
func retrieveRequest(input SearchInput) (domain.RetrieveRequest, error) {
	paperIDs, err := domain.ScopeFilter(domain.QueryMode(input.Mode), input.PaperIDs)
	if err != nil {
		return domain.RetrieveRequest{}, err
	}
	return domain.RetrieveRequest{
		CollectionID: input.CollectionID,
		Query:        input.Query,
		PaperIDs:     paperIDs,
		Limit:        input.Limit,
	}, nil
}

// handleSearch handles the search_papers tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	req, err := retrieveRequest(input)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := s.ports.Retrieval.Retrieve(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}

	return nil, SearchOutput{Results: results, Count: len(results)}, nil
}

// handleAnswer handles the answer_question tool invocation.
func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	req, err := retrieveRequest(input.search())
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	answer, err := s.ports.Answer.Answer(ctx, domain.AnswerRequest{
		RetrieveRequest: req,
		TargetWords:     input.TargetWords,
	})
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	sources := answer.Sources
	if sources == nil {
		sources = []domain.PaperSource{}
	}
	return nil, AnswerOutput{
		Answer:     answer.Text,
		Answerable: answer.Answerable,
		Sources:    sources,
	}, nil
}

func (s *Server) handleListPapers(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListPapersInput,
) (*mcp.CallToolResult, ListPapersOutput, error) {
	papers, err := s.ports.Collections.Papers(ctx, input.CollectionID)
	if err != nil {
		return nil, ListPapersOutput{}, err
	}
	if papers == nil {
		papers = []domain.PaperSummary{}
	}
	return nil, ListPapersOutput{Papers: papers, Count: len(papers)}, nil
}

func (s *Server) handleSummarize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SummarizeInput,
) (*mcp.CallToolResult, SynthesisOutput, error) {
	out, err := s.ports.Synthesis.Summarize(ctx, domain.SummarizeRequest{
		CollectionID: input.CollectionID,
		PaperIDs:     input.PaperIDs,
		MaxTokens:    input.MaxTokens,
	})
	if err != nil {
		return nil, SynthesisOutput{}, err
	}
	return nil, synthesisOutput(out), nil
}

func (s *Server) handleCompare(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompareInput,
) (*mcp.CallToolResult, SynthesisOutput, error) {
	out, err := s.ports.Synthesis.Compare(ctx, domain.CompareRequest{
		CollectionID: input.CollectionID,
		PaperIDs:     input.PaperIDs,
		Aspect:       domain.CompareAspect(input.Aspect),
	})
	if err != nil {
		return nil, SynthesisOutput{}, err
	}
	return nil, synthesisOutput(out), nil
}

func synthesisOutput(out *domain.Synthesis) SynthesisOutput {
	papers := out.Papers
	if papers == nil {
		papers = []domain.PaperSource{}
	}
	return SynthesisOutput{Text: out.Text, Papers: papers}
}
