package cli

import (
	"fmt"
	"io"

	"github.com/hupe1980/chatloop"
	"github.com/hupe1980/chatloop/config"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/tool"
	"github.com/hupe1980/chatloop/tools/extract"
	"github.com/hupe1980/chatloop/tools/railway"
	"github.com/hupe1980/chatloop/tools/search"
)

// app carries the state shared by all commands.
type app struct {
	configPath string
	sessionID  string
	debug      bool

	// newModel is swapped in tests to avoid provider calls.
	newModel func(cfg *config.Config) (model.Model, error)
}

func newApp() *app {
	return &app{
		newModel: func(cfg *config.Config) (model.Model, error) { return cfg.NewModel() },
	}
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// wiring is a fully wired hub plus the resources to release afterwards.
type wiring struct {
	cfg      *config.Config
	hub      *chatloop.Hub
	registry *tool.Registry
	logger   logging.Logger
	close    func() error
}

func (a *app) open(stderr io.Writer) (*wiring, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := cfg.NewLogger(stderr).WithContext("model", cfg.Model.Name)

	m, err := a.newModel(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg, m)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := cfg.NewStore()
	if err != nil {
		return nil, err
	}

	hub := chatloop.New(cfg.NewController(m, registry, logger), func(o *chatloop.Options) {
		o.Store = store
		o.Logger = logger
	})

	return &wiring{
		cfg:      cfg,
		hub:      hub,
		registry: registry,
		logger:   logger,
		close: func() error {
			hub.Close()
			return closeStore()
		},
	}, nil
}

// buildRegistry registers the search tool and, when a RapidAPI key is
// configured, the railway tools plus journey extraction.
func buildRegistry(cfg *config.Config, m model.Model) (*tool.Registry, error) {
	var backend search.Backend
	switch cfg.Search.Backend {
	case config.SearchGoogle:
		backend = search.NewGoogle(cfg.Search.GoogleAPIKey, cfg.Search.GoogleCSEID)
	default:
		backend = search.NewDuckDuckGo()
	}

	tools := []tool.Tool{search.NewTool(backend, func(o *search.ToolOptions) {
		o.MaxResults = cfg.Search.MaxResults
	})}

	if cfg.Railway.APIKey != "" {
		client := railway.NewClient(cfg.Railway.APIKey, func(o *railway.Options) {
			o.BaseURL = cfg.Railway.BaseURL
			o.Host = cfg.Railway.Host
		})
		tools = append(tools, railway.NewTools(client)...)

		journey, err := extract.New(
			"extract_journey",
			"Extract journey_date, source_name and destination_name from a travel question.",
			m,
			railway.JourneyQuery{},
		)
		if err != nil {
			return nil, err
		}
		tools = append(tools, journey)
	}

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return registry, nil
}
