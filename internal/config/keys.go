package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "ASKFOLIO_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "ASKFOLIO_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "ASKFOLIO_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
	},
	{
		env: "ASKFOLIO_OPENAI_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
	},
	{
		env: "ASKFOLIO_OPENAI_CHAT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
	},
	{
		env: "ASKFOLIO_OPENAI_DIMENSIONS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.OpenAI.Dimensions = v.(int) },
	},
	{
		env: "ASKFOLIO_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "ASKFOLIO_RETRIEVAL_TOP_K", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		env: "ASKFOLIO_INDEX_MAX_CHUNK_CHARS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Index.MaxChunkChars = v.(int) },
	},
	{
		env: "ASKFOLIO_INDEX_MAX_CHUNKS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Index.MaxChunks = v.(int) },
	},
	{
		env: "ASKFOLIO_INDEX_WORKERS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Index.Workers = v.(int) },
	},
	{
		env: "ASKFOLIO_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
