// Package llm is the single façade over every large-language-model call in
// the pipeline: wikitext parsing, merge-conflict resolution, single-relation
// audits, and PR-diff validation (spec §4.3). Every method is wrapped by a
// model-specific internal/ratelimit.Limiter so call sites never touch rate
// limiting directly.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/ratelimit"
	pkgjson "github.com/Tangerg/wikigraph/pkg/json"
)

// ServiceAPI is the method surface Merger, Maintainer, and ListProcessor
// depend on; *Service and llmtest.Stub both satisfy it.
type ServiceAPI interface {
	ParseWikitext(ctx context.Context, wikitext string) (*graph.Graph, error)
	ShouldMerge(ctx context.Context, existing, new map[string]any) bool
	MergeItems(ctx context.Context, existing, new map[string]any, itemType string) map[string]any
	IsRelationDeletable(ctx context.Context, rel graph.Relationship, idToNode map[string]graph.Node) RelationDecision
	ValidatePRDiff(ctx context.Context, diff, fileName string) string
}

var _ ServiceAPI = (*Service)(nil)

// ModelSet names the model used for each task-specific method, mirroring
// config.py's PARSER_MODEL / MERGE_CHECK_MODEL / MERGE_EXECUTE_MODEL plus the
// two methods the retrieved snapshot's config.py did not define constants for
// (RelationCleaner, ValidatePR) — named here directly, grounded on the naming
// convention of the three that do exist.
type ModelSet struct {
	Parser           string
	MergeCheck       string
	MergeExecute     string
	RelationCleaner  string
	ValidatePR       string
}

// DefaultModelSet mirrors config.py's constants.
var DefaultModelSet = ModelSet{
	Parser:          "gemini-2.5-pro",
	MergeCheck:      "gemma-3-27b-it",
	MergeExecute:    "gemini-2.5-flash",
	RelationCleaner: "gemini-2.5-flash-lite",
	ValidatePR:      "gemini-2.5-flash-preview",
}

// Prompts holds the loaded system/template prompt text for each task,
// mirroring LLMService.__init__'s one-time prompt load.
type Prompts struct {
	ParserSystem         string
	MergeCheck           string
	MergeExecute         string
	CleanSingleRelation  string
	ValidatePR           string // a fmt.Sprintf-style template taking (fileName, diffContent)
}

// FewShotConfig bounds the few-shot example injection for ParseWikitext.
type FewShotConfig struct {
	NodeSamples int // default 24
	RelSamples  int // default 12
}

func (f FewShotConfig) withDefaults() FewShotConfig {
	if f.NodeSamples == 0 {
		f.NodeSamples = 24
	}
	if f.RelSamples == 0 {
		f.RelSamples = 12
	}
	return f
}

// RateLimiters bundles the per-method RateLimiter, one per model tier.
type RateLimiters struct {
	Parser          *ratelimit.Limiter
	MergeCheck      *ratelimit.Limiter
	MergeExecute    *ratelimit.Limiter
	RelationCleaner *ratelimit.Limiter
	ValidatePR      *ratelimit.Limiter
}

// Service is the LLMService component (spec §4.3).
type Service struct {
	logger  *slog.Logger
	client  *openai.Client
	models  ModelSet
	prompts Prompts
	limits  RateLimiters
	fewShot FewShotConfig
	enc     *tiktoken.Tiktoken
	// graphSchema is the generated JSON schema for graph.Graph, appended to
	// the parser system prompt so the model's free-form JSON output still
	// conforms to a declared shape (invopop/jsonschema via pkg/json).
	graphSchema string

	masterGraphPath string
}

// Config configures Service construction.
type Config struct {
	APIKey          string
	RequestOptions  []option.RequestOption
	Models          ModelSet
	Prompts         Prompts
	Limiters        RateLimiters
	FewShot         FewShotConfig
	MasterGraphPath string
	Encoding        string // tiktoken encoding name, default cl100k_base
}

// New constructs a Service, built the way the teacher's openai API wrapper
// constructs an *openai.Client (api key last in the option chain so it
// always wins over any caller-supplied option).
func New(logger *slog.Logger, cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	logger.Debug("llm: configured", "api_key", maskAPIKey(cfg.APIKey))
	options := append(cfg.RequestOptions, option.WithAPIKey(cfg.APIKey))
	client := openai.NewClient(options...)

	models := cfg.Models
	if models == (ModelSet{}) {
		models = DefaultModelSet
	}

	encodingName := cfg.Encoding
	if encodingName == "" {
		encodingName = tiktoken.MODEL_CL100K_BASE
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("llm: load tokenizer: %w", err)
	}

	schema, err := pkgjson.StringDefSchemaOf(graph.Graph{})
	if err != nil {
		return nil, fmt.Errorf("llm: generate graph schema: %w", err)
	}

	return &Service{
		logger:          logger,
		client:          &client,
		models:          models,
		prompts:         cfg.Prompts,
		limits:          cfg.Limiters,
		fewShot:         cfg.FewShot.withDefaults(),
		enc:             enc,
		graphSchema:     schema,
		masterGraphPath: cfg.MasterGraphPath,
	}, nil
}

// chatText issues a single non-streaming chat completion and returns its
// text, or an error. An empty system prompt omits the system message.
func (s *Service) chatText(ctx context.Context, model, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// truncateToTokens trims text to at most maxTokens tiktoken tokens, matching
// validate_pr_diff's `diff_content[:15000]` character truncation in spirit
// but counted in tokens rather than characters — SPEC_FULL.md's domain-stack
// section wires pkoukk/tiktoken-go specifically so truncation is
// token-accurate instead of an arbitrary character slice.
func (s *Service) truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	tokens := s.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return s.enc.Decode(tokens[:maxTokens])
}
