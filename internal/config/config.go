// Package config loads a single layered configuration surface for the whole
// pipeline — a YAML file plus WIKIGRAPH_-prefixed environment overrides —
// and hands out the per-component Config structs each internal package
// already defines (spec.md §9's named constants, collected in one place the
// way teranos-QNTX's am package collects QNTX_* settings via spf13/viper).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/Tangerg/wikigraph/internal/listprocessor"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/maintainer"
	"github.com/Tangerg/wikigraph/internal/merger"
	"github.com/Tangerg/wikigraph/internal/pool"
	"github.com/Tangerg/wikigraph/internal/ratelimit"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

// DataConfig names every on-disk path the pipeline reads or writes (spec §6
// file layout).
type DataConfig struct {
	MasterGraphPath     string `mapstructure:"master_graph_path"`
	ProcessedLogPath    string `mapstructure:"processed_log_path"`
	FalseRelationsPath  string `mapstructure:"false_relations_cache_path"`
	FragmentDir         string `mapstructure:"fragment_dir"`
	ListPath            string `mapstructure:"list_path"`
	WikiCacheDir        string `mapstructure:"wiki_cache_dir"`
	PromptsDir          string `mapstructure:"prompts_dir"`
}

// WikiConfig configures internal/wikiclient and its leaky-bucket pacing.
type WikiConfig struct {
	UserAgent            string        `mapstructure:"user_agent"`
	BaiduBaseURL         string        `mapstructure:"baidu_base_url"`
	CDTBaseURL           string        `mapstructure:"cdt_base_url"`
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	RequestsPerMinute    int           `mapstructure:"requests_per_minute"`
	MaxConcurrentRequests int          `mapstructure:"max_concurrent_requests"`
}

// ModelRateLimit is one model tier's RPM/RPD budget (api_rate_limiter.py's
// per-model sliding window plus optional daily counter).
type ModelRateLimit struct {
	Model                    string  `mapstructure:"model"`
	RequestsPerMinute        int     `mapstructure:"requests_per_minute"`
	RequestsPerDay           int     `mapstructure:"requests_per_day"` // 0 disables the daily counter
	NullIncrementProbability float64 `mapstructure:"null_increment_probability"`
}

// RateLimitsConfig is one ModelRateLimit per LLM task tier (spec §4.3).
type RateLimitsConfig struct {
	Parser          ModelRateLimit `mapstructure:"parser"`
	MergeCheck      ModelRateLimit `mapstructure:"merge_check"`
	MergeExecute    ModelRateLimit `mapstructure:"merge_execute"`
	RelationCleaner ModelRateLimit `mapstructure:"relation_cleaner"`
	ValidatePR      ModelRateLimit `mapstructure:"validate_pr"`
}

// SamplingConfig is ListProcessor's A-ExpJ weight triple.
type SamplingConfig struct {
	MinWeight float64 `mapstructure:"min_weight"`
	MaxWeight float64 `mapstructure:"max_weight"`
	Exponent  float64 `mapstructure:"exponent"`
}

// ListProcessorConfig covers spec §4.5's freshness ramp and sampling caps.
type ListProcessorConfig struct {
	ProbStartDay        int            `mapstructure:"prob_start_day"`
	ProbEndDay          int            `mapstructure:"prob_end_day"`
	ProbStartValue      float64        `mapstructure:"prob_start_value"`
	ProbEndValue        float64        `mapstructure:"prob_end_value"`
	MaxListItemsToCheck int            `mapstructure:"max_list_items_to_check"`
	MaxListItemsPerRun  int            `mapstructure:"max_list_items_per_run"`
	Sampling            SamplingConfig `mapstructure:"sampling"`
	ScreenConcurrency   int            `mapstructure:"screen_concurrency"`
}

// MaintainerConfig covers spec §4.7's eight-step named constants.
type MaintainerConfig struct {
	MasterGraphUpdateLimit int           `mapstructure:"master_graph_update_limit"`
	ListUpdateLimit        int           `mapstructure:"list_update_limit"`
	UpdateConcurrency      int           `mapstructure:"update_concurrency"`
	RelCleanNum            int           `mapstructure:"rel_clean_num"`
	RelCleanSkipDays       int           `mapstructure:"rel_clean_skip_days"`
	RelCleanProbStartDays  int           `mapstructure:"rel_clean_prob_start_days"`
	RelCleanProbEndDays    int           `mapstructure:"rel_clean_prob_end_days"`
	RelCleanProbStartValue float64       `mapstructure:"rel_clean_prob_start_value"`
	RelCleanProbEndValue   float64       `mapstructure:"rel_clean_prob_end_value"`
	AuditBatchSize         int           `mapstructure:"audit_batch_size"`
	AuditMaxRounds         int           `mapstructure:"audit_max_rounds"`
	AuditCooldown          time.Duration `mapstructure:"audit_cooldown"`
	StaleCacheMaxAge       time.Duration `mapstructure:"stale_cache_max_age"`
}

// FewShotConfig bounds ParseWikitext's few-shot example injection.
type FewShotConfig struct {
	NodeSamples int `mapstructure:"node_samples"`
	RelSamples  int `mapstructure:"rel_samples"`
}

// LLMConfig covers model selection and prompt-budget knobs for internal/llm.
type LLMConfig struct {
	Encoding string        `mapstructure:"encoding"`
	FewShot  FewShotConfig `mapstructure:"few_shot"`
}

// Config is the complete unmarshaled configuration surface.
type Config struct {
	Data          DataConfig          `mapstructure:"data"`
	Wiki          WikiConfig          `mapstructure:"wiki"`
	RateLimits    RateLimitsConfig    `mapstructure:"rate_limits"`
	ListProcessor ListProcessorConfig `mapstructure:"list_processor"`
	Maintainer    MaintainerConfig    `mapstructure:"maintainer"`
	LLM           LLMConfig           `mapstructure:"llm"`
	PoolBackend   string              `mapstructure:"pool_backend"`
}

// Load reads configPath (if non-empty and present) over a full set of
// defaults, applies WIKIGRAPH_-prefixed environment overrides, and
// unmarshals into Config. A missing configPath is not an error — the
// pipeline runs on defaults plus whatever env vars are set, the same
// tolerant-of-no-file behavior teranos-QNTX's am.Load uses for am.toml.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WIKIGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.master_graph_path", "data/master_graph.json")
	v.SetDefault("data.processed_log_path", "data/processed.log")
	v.SetDefault("data.false_relations_cache_path", "data/cache/false_relations.json")
	v.SetDefault("data.fragment_dir", "data/fragments")
	v.SetDefault("data.list_path", "LIST.md")
	v.SetDefault("data.wiki_cache_dir", "data/cache")
	v.SetDefault("data.prompts_dir", "prompts")

	v.SetDefault("wiki.user_agent", "wikigraph/1.0 (+https://github.com/Tangerg/wikigraph)")
	v.SetDefault("wiki.baidu_base_url", "https://baike.baidu.com/item/")
	v.SetDefault("wiki.cdt_base_url", "https://chinadigitaltimes.net/space/")
	v.SetDefault("wiki.http_timeout", 20*time.Second)
	v.SetDefault("wiki.requests_per_minute", 180)
	v.SetDefault("wiki.max_concurrent_requests", 8)

	v.SetDefault("rate_limits.parser.model", "gemini-2.5-pro")
	v.SetDefault("rate_limits.parser.requests_per_minute", 15)
	v.SetDefault("rate_limits.parser.requests_per_day", 0)
	v.SetDefault("rate_limits.parser.null_increment_probability", 0.25)
	v.SetDefault("rate_limits.merge_check.model", "gemma-3-27b-it")
	v.SetDefault("rate_limits.merge_check.requests_per_minute", 30)
	v.SetDefault("rate_limits.merge_check.null_increment_probability", 0.25)
	v.SetDefault("rate_limits.merge_execute.model", "gemini-2.5-flash")
	v.SetDefault("rate_limits.merge_execute.requests_per_minute", 30)
	v.SetDefault("rate_limits.merge_execute.null_increment_probability", 0.25)
	v.SetDefault("rate_limits.relation_cleaner.model", "gemini-2.5-flash-lite")
	v.SetDefault("rate_limits.relation_cleaner.requests_per_minute", 60)
	v.SetDefault("rate_limits.relation_cleaner.null_increment_probability", 0.25)
	v.SetDefault("rate_limits.validate_pr.model", "gemini-2.5-flash-preview")
	v.SetDefault("rate_limits.validate_pr.requests_per_minute", 30)
	v.SetDefault("rate_limits.validate_pr.null_increment_probability", 0.25)

	v.SetDefault("list_processor.prob_start_day", 7)
	v.SetDefault("list_processor.prob_end_day", 30)
	v.SetDefault("list_processor.prob_start_value", 1.0/12.0)
	v.SetDefault("list_processor.prob_end_value", 0.9)
	v.SetDefault("list_processor.max_list_items_to_check", 200)
	v.SetDefault("list_processor.max_list_items_per_run", 30)
	v.SetDefault("list_processor.sampling.min_weight", 1.0)
	v.SetDefault("list_processor.sampling.max_weight", 10.0)
	v.SetDefault("list_processor.sampling.exponent", 2.0)
	v.SetDefault("list_processor.screen_concurrency", 32)

	v.SetDefault("maintainer.master_graph_update_limit", 500)
	v.SetDefault("maintainer.list_update_limit", 500)
	v.SetDefault("maintainer.update_concurrency", 16)
	v.SetDefault("maintainer.rel_clean_num", 300)
	v.SetDefault("maintainer.rel_clean_skip_days", 30)
	v.SetDefault("maintainer.rel_clean_prob_start_days", 30)
	v.SetDefault("maintainer.rel_clean_prob_end_days", 90)
	v.SetDefault("maintainer.rel_clean_prob_start_value", 0.1)
	v.SetDefault("maintainer.rel_clean_prob_end_value", 1.0)
	v.SetDefault("maintainer.audit_batch_size", 30)
	v.SetDefault("maintainer.audit_max_rounds", 20)
	v.SetDefault("maintainer.audit_cooldown", 30*time.Second)
	v.SetDefault("maintainer.stale_cache_max_age", 30*24*time.Hour)

	v.SetDefault("llm.encoding", "cl100k_base")
	v.SetDefault("llm.few_shot.node_samples", 24)
	v.SetDefault("llm.few_shot.rel_samples", 12)

	v.SetDefault("pool_backend", string(pool.Ants))
}

// Backend resolves the configured pool backend name to a pool.Backend,
// falling back to the no-pool adapter for an unrecognized value the way
// internal/pool.New itself does.
func (c *Config) Backend() pool.Backend {
	return pool.Backend(cast.ToString(c.PoolBackend))
}

// ListProcessorComponentConfig builds a listprocessor.Config from this
// configuration and the fragment directory it writes into.
func (c *Config) ListProcessorComponentConfig() listprocessor.Config {
	return listprocessor.Config{
		DataDir:             c.Data.FragmentDir,
		ProbStartDay:        c.ListProcessor.ProbStartDay,
		ProbEndDay:          c.ListProcessor.ProbEndDay,
		ProbStartValue:      c.ListProcessor.ProbStartValue,
		ProbEndValue:        c.ListProcessor.ProbEndValue,
		MaxListItemsToCheck: c.ListProcessor.MaxListItemsToCheck,
		MaxListItemsPerRun:  c.ListProcessor.MaxListItemsPerRun,
		SampleWeights: listprocessor.WeightParams{
			MinW:     c.ListProcessor.Sampling.MinWeight,
			MaxW:     c.ListProcessor.Sampling.MaxWeight,
			Exponent: c.ListProcessor.Sampling.Exponent,
		},
		ScreenConcurrency: c.ListProcessor.ScreenConcurrency,
		PoolBackend:       c.Backend(),
	}
}

// MergerComponentConfig builds a merger.Config.
func (c *Config) MergerComponentConfig() merger.Config {
	return merger.Config{
		DataDir:          c.Data.FragmentDir,
		MasterGraphPath:  c.Data.MasterGraphPath,
		ProcessedLogPath: c.Data.ProcessedLogPath,
	}
}

// MaintainerComponentConfig builds a maintainer.Config.
func (c *Config) MaintainerComponentConfig() maintainer.Config {
	return maintainer.Config{
		MasterGraphPath:         c.Data.MasterGraphPath,
		FalseRelationsCachePath: c.Data.FalseRelationsPath,
		MasterGraphUpdateLimit:  c.Maintainer.MasterGraphUpdateLimit,
		ListUpdateLimit:         c.Maintainer.ListUpdateLimit,
		UpdateConcurrency:       c.Maintainer.UpdateConcurrency,
		RelCleanNum:             c.Maintainer.RelCleanNum,
		RelCleanSkipDays:        c.Maintainer.RelCleanSkipDays,
		RelCleanProbStartDays:   c.Maintainer.RelCleanProbStartDays,
		RelCleanProbEndDays:     c.Maintainer.RelCleanProbEndDays,
		RelCleanProbStartValue:  c.Maintainer.RelCleanProbStartValue,
		RelCleanProbEndValue:    c.Maintainer.RelCleanProbEndValue,
		AuditBatchSize:          c.Maintainer.AuditBatchSize,
		AuditMaxRounds:          c.Maintainer.AuditMaxRounds,
		AuditCooldown:           c.Maintainer.AuditCooldown,
		StaleCacheMaxAge:        c.Maintainer.StaleCacheMaxAge,
		PoolBackend:             c.Backend(),
	}
}

// WikiClientComponentConfig builds a wikiclient.Config.
func (c *Config) WikiClientComponentConfig() wikiclient.Config {
	return wikiclient.Config{
		UserAgent:    c.Wiki.UserAgent,
		BaiduBaseURL: c.Wiki.BaiduBaseURL,
		CDTBaseURL:   c.Wiki.CDTBaseURL,
		CacheDir:     c.Data.WikiCacheDir,
		HTTPTimeout:  c.Wiki.HTTPTimeout,
	}
}

// RateLimiterComponentConfig builds a ratelimit.Config for one model tier.
func (c *Config) RateLimiterComponentConfig(m ModelRateLimit) ratelimit.Config {
	return ratelimit.Config{
		MaxRequests:              m.RequestsPerMinute,
		Window:                   time.Minute,
		RPDLimit:                 m.RequestsPerDay,
		CounterName:              m.Model,
		CacheDir:                 c.Data.WikiCacheDir,
		NullIncrementProbability: m.NullIncrementProbability,
	}
}

// ModelSetComponentConfig builds an llm.ModelSet from the model names
// configured per rate-limit tier, so a deployment can swap models without
// touching code.
func (c *Config) ModelSetComponentConfig() llm.ModelSet {
	return llm.ModelSet{
		Parser:          c.RateLimits.Parser.Model,
		MergeCheck:      c.RateLimits.MergeCheck.Model,
		MergeExecute:    c.RateLimits.MergeExecute.Model,
		RelationCleaner: c.RateLimits.RelationCleaner.Model,
		ValidatePR:      c.RateLimits.ValidatePR.Model,
	}
}

// FewShotComponentConfig builds an llm.FewShotConfig.
func (c *Config) FewShotComponentConfig() llm.FewShotConfig {
	return llm.FewShotConfig{
		NodeSamples: c.LLM.FewShot.NodeSamples,
		RelSamples:  c.LLM.FewShot.RelSamples,
	}
}

// LoadPrompts reads each named prompt template from c.Data.PromptsDir. A
// missing directory or missing individual file is not an error — the prompt
// is left empty and the LLM call proceeds with the model's own judgment
// (matching Service's "defaults-on-failure" contract rather than ported
// prompt text, since original_source ships no prompt files of its own).
func (c *Config) LoadPrompts() llm.Prompts {
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(c.Data.PromptsDir, name))
		if err != nil {
			return ""
		}
		return string(data)
	}
	return llm.Prompts{
		ParserSystem:        read("parser_system.txt"),
		MergeCheck:          read("merge_check.txt"),
		MergeExecute:        read("merge_execute.txt"),
		CleanSingleRelation: read("clean_single_relation.txt"),
		ValidatePR:          read("validate_pr.txt"),
	}
}
