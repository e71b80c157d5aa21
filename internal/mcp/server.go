// Package mcp bridges photoidx's photoindex.Store to AI coding/assistant
// clients over the Model Context Protocol (spec §6.2's programmatic API,
// exposed as tools), grounded on the teacher's internal/mcp server.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/filter"
	"github.com/aman-oss/photoidx/internal/progress"
	"github.com/aman-oss/photoidx/internal/scanner"
	"github.com/aman-oss/photoidx/internal/search"
	"github.com/aman-oss/photoidx/pkg/photoindex"
	"github.com/aman-oss/photoidx/pkg/version"
)

// Server is the MCP server exposing one photoindex.Store's search and
// indexing operations as tools.
type Server struct {
	mcp    *mcpsdk.Server
	store  *photoindex.Store
	cfg    *config.Config
	root   string
	logger *slog.Logger
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"semantic search query; empty returns every indexed photo"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 20"`

	Filter        string   `json:"filter,omitempty" jsonschema:"RPN boolean query over tags/exif/text fields (spec §4.7); applied before the semantic search"`
	FavoritesOnly bool     `json:"favorites_only,omitempty" jsonschema:"keep only favorited photos"`
	Tags          []string `json:"tags,omitempty" jsonschema:"keep only photos with every one of these tags"`
	Camera        string   `json:"camera,omitempty" jsonschema:"keep only photos from this camera (substring match)"`
}

// FilterInput is the input schema for the filter tool, the structured
// Filter Pipeline (spec §4.7) exposed on its own for filter-only browsing
// (mode 5: no semantic query, predicates only).
type FilterInput struct {
	Query         string   `json:"query,omitempty" jsonschema:"RPN boolean query over tags/exif/text fields"`
	FavoritesOnly bool     `json:"favorites_only,omitempty" jsonschema:"keep only favorited photos"`
	Tags          []string `json:"tags,omitempty" jsonschema:"keep only photos with every one of these tags"`
	Camera        string   `json:"camera,omitempty" jsonschema:"keep only photos from this camera (substring match)"`
	SharpOnly     bool     `json:"sharp_only,omitempty" jsonschema:"keep only photos above the sharpness threshold"`
	HasText       bool     `json:"has_text,omitempty" jsonschema:"keep only photos with recognized OCR text"`
	Place         string   `json:"place,omitempty" jsonschema:"keep only photos reverse-geocoded to this place"`
}

// FilterOutput is the output schema for the filter tool.
type FilterOutput struct {
	Paths []string `json:"paths" jsonschema:"matching photo paths, in index order"`
}

// FavoriteInput is the input schema for the favorite tool.
type FavoriteInput struct {
	Path     string `json:"path" jsonschema:"path to an indexed photo"`
	Favorite bool   `json:"favorite" jsonschema:"true to mark favorite, false to unmark"`
}

// FavoriteOutput is the (empty) output schema for the favorite tool.
type FavoriteOutput struct{}

// SearchOutput is the output schema for the search and search_like tools.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked photo results"`
}

// SearchResultOutput is one ranked photo.
type SearchResultOutput struct {
	Path  string  `json:"path" jsonschema:"absolute file path"`
	Score float64 `json:"score" jsonschema:"similarity score, higher is more relevant"`
}

// SearchLikeInput is the input schema for the search_like tool.
type SearchLikeInput struct {
	Path string `json:"path" jsonschema:"path to an already-indexed photo to find visually similar photos to"`
	TopK int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 20"`
}

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	IncludeVideo bool `json:"include_video,omitempty" jsonschema:"also index video files"`
}

// IndexOutput is the output schema for the index tool.
type IndexOutput struct {
	New     int `json:"new" jsonschema:"number of newly indexed photos"`
	Updated int `json:"updated" jsonschema:"number of re-embedded photos"`
}

// StatusInput is the (empty) input schema for the index_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the index_status tool.
type StatusOutput struct {
	Recorded bool            `json:"recorded" jsonschema:"whether any indexing run has been recorded"`
	Status   progress.Status `json:"status,omitempty" jsonschema:"the most recent indexing run's status"`
}

// NewServer creates a server bound to root over an already opened store;
// a nil store is an error.
func NewServer(store *photoindex.Store, cfg *config.Config, root string) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	s := &Server{store: store, cfg: cfg, root: root, logger: slog.Default()}
	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "photoidx",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server, e.g. for tests.
func (s *Server) MCPServer() *mcpsdk.Server { return s.mcp }

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "search",
		Description: "Semantic search over the indexed photo library by text query. Returns ranked photo paths.",
	}, s.searchHandler)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "search_like",
		Description: "Find photos visually similar to an already-indexed photo.",
	}, s.searchLikeHandler)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "index",
		Description: "Scan the bound root and (re)build the photo index, embedding any new or modified photos.",
	}, s.indexHandler)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "index_status",
		Description: "Report the most recent indexing run's progress and outcome.",
	}, s.statusHandler)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "filter",
		Description: "Narrow the indexed library by structured/boolean predicates (favorites, tags, camera, sharpness, OCR text, place) without a semantic query.",
	}, s.filterHandler)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "favorite",
		Description: "Mark or unmark an indexed photo as a favorite.",
	}, s.favoriteHandler)

	s.logger.Debug("registered photoidx MCP tools", slog.Int("count", 6))
}

func (s *Server) searchHandler(ctx context.Context, _ *mcpsdk.CallToolRequest, input SearchInput) (*mcpsdk.CallToolResult, SearchOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.Search.TopK
	}
	opts := search.Options{FusionWeight: float32(s.cfg.Search.ImageWeight)}

	f := filter.Filters{FavoritesOnly: input.FavoritesOnly, Tags: input.Tags, Camera: input.Camera}
	if input.Filter != "" || input.FavoritesOnly || len(input.Tags) > 0 || input.Camera != "" {
		filtered, err := s.store.FilterPaths(input.Filter, f, s.store.FilterEvalContext())
		if err != nil {
			return nil, SearchOutput{}, err
		}
		opts.Subset = s.store.RowsForPaths(filtered)
	}

	results, err := s.store.Search(ctx, input.Query, topK, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

func (s *Server) filterHandler(_ context.Context, _ *mcpsdk.CallToolRequest, input FilterInput) (*mcpsdk.CallToolResult, FilterOutput, error) {
	f := filter.Filters{
		FavoritesOnly: input.FavoritesOnly,
		Tags:          input.Tags,
		Camera:        input.Camera,
		SharpOnly:     input.SharpOnly,
		HasText:       input.HasText,
		Place:         input.Place,
	}
	paths, err := s.store.FilterPaths(input.Query, f, s.store.FilterEvalContext())
	if err != nil {
		return nil, FilterOutput{}, err
	}
	return nil, FilterOutput{Paths: paths}, nil
}

func (s *Server) favoriteHandler(_ context.Context, _ *mcpsdk.CallToolRequest, input FavoriteInput) (*mcpsdk.CallToolResult, FavoriteOutput, error) {
	if err := s.store.SetFavorite(input.Path, input.Favorite); err != nil {
		return nil, FavoriteOutput{}, err
	}
	return nil, FavoriteOutput{}, nil
}

func (s *Server) searchLikeHandler(ctx context.Context, _ *mcpsdk.CallToolRequest, input SearchLikeInput) (*mcpsdk.CallToolResult, SearchOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.Search.TopK
	}
	results, err := s.store.SearchLike(ctx, input.Path, topK, search.Options{FusionWeight: float32(s.cfg.Search.ImageWeight)})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

func (s *Server) indexHandler(ctx context.Context, _ *mcpsdk.CallToolRequest, input IndexInput) (*mcpsdk.CallToolResult, IndexOutput, error) {
	reporter, err := progress.NewReporter(s.store.Dir(), progress.KindIndexing, 0)
	if err != nil {
		return nil, IndexOutput{}, err
	}
	newCount, updatedCount, err := s.store.Upsert(ctx, s.root, scanner.ScanOptions{IncludeVideo: input.IncludeVideo}, s.cfg.Embeddings.BatchSize, reporter)
	if err != nil {
		return nil, IndexOutput{}, err
	}
	return nil, IndexOutput{New: newCount, Updated: updatedCount}, nil
}

func (s *Server) statusHandler(_ context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := progress.ReadStatus(s.store.Dir())
	if err != nil {
		return nil, StatusOutput{Recorded: false}, nil
	}
	return nil, StatusOutput{Recorded: true, Status: status}, nil
}

func toSearchOutput(results []search.Result) SearchOutput {
	out := SearchOutput{Results: make([]SearchResultOutput, len(results))}
	for i, r := range results {
		out.Results[i] = SearchResultOutput{Path: r.Path, Score: float64(r.Score)}
	}
	return out
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting photoidx MCP server over stdio")
	err := s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
	}
	return err
}
