package config

import (
	"fmt"
	"io"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/flow"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/model/anthropic"
	"github.com/hupe1980/chatloop/model/openai"
	"github.com/hupe1980/chatloop/session"
	"github.com/hupe1980/chatloop/session/sqlite"
	"github.com/hupe1980/chatloop/tool"
)

// NewLogger builds the structured logger described by the logging section.
func (c *Config) NewLogger(out io.Writer) *logging.ChatLogger {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}

	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Format = strings.ToLower(c.Logging.Format)
	lc.Output = out
	lc.Component = "chatloop"

	return logging.NewLogger(lc)
}

// NewModel builds the provider adapter described by the model section.
func (c *Config) NewModel() (model.Model, error) {
	switch c.Model.Provider {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = c.Model.Name
			o.Temperature = c.Model.Temperature
			o.MaxCompletionTokens = c.Model.MaxTokens
			o.APIKey = c.Model.APIKey
			o.BaseURL = c.Model.BaseURL
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(c.Model.Name)
			o.Temperature = c.Model.Temperature
			o.MaxTokens = c.Model.MaxTokens
			o.APIKey = c.Model.APIKey
			o.BaseURL = c.Model.BaseURL
		}), nil
	default:
		return nil, fmt.Errorf("model.provider %q is not supported", c.Model.Provider)
	}
}

// NewStore opens the transcript store described by the store section. The
// returned close function releases it and is never nil.
func (c *Config) NewStore() (core.TranscriptStore, func() error, error) {
	noop := func() error { return nil }

	switch c.Store.Driver {
	case StoreMemory:
		return session.NewInMemoryStore(), noop, nil
	case StoreFile:
		store, err := session.NewFileStore(c.Store.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case StoreSQLite:
		store, err := sqlite.Open(c.Store.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
}

// NewController wires m and registry into a turn controller using the loop
// section.
func (c *Config) NewController(m model.Model, registry *tool.Registry, logger logging.Logger) *flow.Controller {
	executor := tool.NewExecutor(func(o *tool.ExecutorOptions) {
		o.MaxParallel = c.Loop.MaxParallelTools
		o.Timeout = c.Loop.ToolTimeout
		o.Logger = logging.Scoped(logger, "tool", "")
	})

	return flow.NewController(m, registry, func(o *flow.Options) {
		o.MaxRounds = c.Loop.MaxRounds
		o.Instructions = c.Loop.Instructions
		o.MaxHistoryMessages = c.Loop.MaxHistoryMessages
		o.Executor = executor
		o.Logger = logging.Scoped(logger, "flow", "")
	})
}
