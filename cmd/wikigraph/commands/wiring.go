package commands

import (
	"fmt"
	"os"

	"github.com/openai/openai-go/v3/option"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/config"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/maintainer"
	"github.com/Tangerg/wikigraph/internal/merger"
	"github.com/Tangerg/wikigraph/internal/ratelimit"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

// pipeline bundles the components every subcommand but "list" needs, built
// once from a loaded config so harvest/merge/maintain/run share one wiring
// path instead of duplicating it (teranos-QNTX's cmd/qntx commands build
// their service graph the same way, from one am.Config).
type pipeline struct {
	cfg  *config.Config
	conv *chinese.Converter
	list *liststore.Store
	wiki *wikiclient.Client
	llm  *llm.Service
}

func newPipeline() (*pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	conv, err := chinese.New()
	if err != nil {
		return nil, fmt.Errorf("commands: chinese converter: %w", err)
	}

	list, err := liststore.Open(conv, cfg.Data.ListPath)
	if err != nil {
		return nil, fmt.Errorf("commands: open list: %w", err)
	}

	pace := ratelimit.NewWikiLimiter(cfg.Wiki.RequestsPerMinute, cfg.Wiki.MaxConcurrentRequests)
	wiki, err := wikiclient.New(newLogger(), conv, pace, list, cfg.WikiClientComponentConfig())
	if err != nil {
		return nil, fmt.Errorf("commands: wiki client: %w", err)
	}

	apiKey := os.Getenv("WIKIGRAPH_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("commands: WIKIGRAPH_API_KEY is required")
	}

	var requestOptions []option.RequestOption
	if base := os.Getenv("WIKIGRAPH_API_BASE_URL"); base != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(base))
	}

	llmSvc, err := llm.New(newLogger(), llm.Config{
		APIKey:          apiKey,
		RequestOptions:  requestOptions,
		Models:          cfg.ModelSetComponentConfig(),
		Prompts:         cfg.LoadPrompts(),
		FewShot:         cfg.FewShotComponentConfig(),
		MasterGraphPath: cfg.Data.MasterGraphPath,
		Encoding:        cfg.LLM.Encoding,
		Limiters: llm.RateLimiters{
			Parser:          ratelimit.New(newLogger(), cfg.RateLimiterComponentConfig(cfg.RateLimits.Parser)),
			MergeCheck:      ratelimit.New(newLogger(), cfg.RateLimiterComponentConfig(cfg.RateLimits.MergeCheck)),
			MergeExecute:    ratelimit.New(newLogger(), cfg.RateLimiterComponentConfig(cfg.RateLimits.MergeExecute)),
			RelationCleaner: ratelimit.New(newLogger(), cfg.RateLimiterComponentConfig(cfg.RateLimits.RelationCleaner)),
			ValidatePR:      ratelimit.New(newLogger(), cfg.RateLimiterComponentConfig(cfg.RateLimits.ValidatePR)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("commands: llm service: %w", err)
	}

	return &pipeline{cfg: cfg, conv: conv, list: list, wiki: wiki, llm: llmSvc}, nil
}

func (p *pipeline) newMerger() *merger.Merger {
	return merger.New(newLogger(), p.wiki, p.llm, p.list, p.conv, p.cfg.MergerComponentConfig())
}

func (p *pipeline) newMaintainer() *maintainer.Maintainer {
	return maintainer.New(newLogger(), p.wiki, p.llm, p.list, p.conv, p.cfg.MaintainerComponentConfig())
}
