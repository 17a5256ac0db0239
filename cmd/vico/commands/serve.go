package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/config"
	"github.com/vico-ai/vico/internal/dispatch"
	"github.com/vico-ai/vico/internal/event"
	"github.com/vico-ai/vico/internal/logging"
	"github.com/vico-ai/vico/internal/mcp"
	"github.com/vico-ai/vico/internal/memory"
	"github.com/vico-ai/vico/internal/metrics"
	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/prompt"
	"github.com/vico-ai/vico/internal/provider"
	"github.com/vico-ai/vico/internal/research"
	"github.com/vico-ai/vico/internal/server"
	"github.com/vico-ai/vico/internal/storage"
	"github.com/vico-ai/vico/internal/subagent"
	"github.com/vico-ai/vico/internal/vision"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant's HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), servePort)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides the default 8080)")
}

// registerEventObservers installs the standing subscribers on the global
// event bus: tool dispatches and cache invalidations feed the Prometheus
// counters, and every event is debug-logged. Without these the bus's
// producers (internal/dispatch, internal/server) publish into the void.
func registerEventObservers() {
	event.Subscribe(event.ToolDispatched, func(e event.Event) {
		d, ok := e.Data.(event.ToolDispatchedData)
		if !ok {
			return
		}
		outcome := "ok"
		if !d.Success {
			outcome = "error"
		}
		metrics.ToolDispatches.WithLabelValues(d.Name, outcome).Inc()
	})

	event.Subscribe(event.CacheInvalidated, func(e event.Event) {
		metrics.CacheInvalidations.Inc()
	})

	event.SubscribeAll(func(e event.Event) {
		logging.Debug().Str("event", string(e.Type)).Msg("event published")
	})
}

// toolCatalog documents the seven built-in tools for the system prompt.
func toolCatalog() []prompt.ToolDescriptor {
	return []prompt.ToolDescriptor{
		{Name: "save_memory", Description: "Save a new memory to Vico"},
		{Name: "edit_memory", Description: "Edit an existing memory by id, replacing its text"},
		{Name: "search_memories", Description: "Fulltext search over saved memories using multiple simple term variations"},
		{Name: "perform_research", Description: "Fulltext search over a deeper reference corpus using multiple simple term variations"},
		{Name: "get_full_topic_details", Description: "Retrieve full article text for up to five topic ids returned by perform_research"},
		{Name: "terminal_command", Description: "Execute a terminal command in a local shell environment"},
		{Name: "voice_response", Description: "Generate a voice response for the given text"},
	}
}

// memoryAdapter satisfies internal/dispatch.MemoryStore on top of
// internal/memory.Store: Save and Edit are promoted unchanged by
// embedding, Search is overridden to convert memory.Record into
// dispatch.MemoryRecord (the two are field-for-field equivalent but
// distinct types, since internal/dispatch does not import internal/memory
// to keep the tool dispatcher's collaborator surface storage-agnostic).
type memoryAdapter struct {
	*memory.Store
}

func (m memoryAdapter) Search(ctx context.Context, terms []string) ([]dispatch.MemoryRecord, error) {
	records, err := m.Store.Search(ctx, terms)
	if err != nil {
		return nil, err
	}
	out := make([]dispatch.MemoryRecord, 0, len(records))
	for _, r := range records {
		out = append(out, dispatch.MemoryRecord{
			ID:        r.ID,
			Text:      r.Text,
			HasImage:  r.HasImage,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out, nil
}

func runServe(ctx context.Context, portOverride int) error {
	logging.Init(logging.DefaultConfig())
	metrics.Register(prometheus.DefaultRegisterer)
	registerEventObservers()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("ensure paths: %w", err)
	}

	memStore, err := memory.Open(paths.MemoryDBPath())
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer memStore.Close()

	corpus, err := research.Open(paths.ResearchDBPath())
	if err != nil {
		return fmt.Errorf("open research corpus: %w", err)
	}
	defer corpus.Close()

	cacheStore := storage.New(paths.Cache)
	cacheReg := cache.New(cacheStore)

	registry, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize providers: %w", err)
	}

	agenticProviderID, agenticModelID := provider.ParseModelString(cfg.AgenticModelName)
	agenticProvider, err := registry.Get(agenticProviderID)
	if err != nil {
		return fmt.Errorf("resolve agentic provider %q: %w", agenticProviderID, err)
	}
	gen := provider.NewEinoGenerator(agenticProvider, agenticModelID)

	chatProviderID, chatModelID := provider.ParseModelString(cfg.ChatModelName)
	var chatGen *provider.EinoGenerator
	if chatProvider, err := registry.Get(chatProviderID); err == nil {
		chatGen = provider.NewEinoGenerator(chatProvider, chatModelID)
	} else {
		logging.Warn().Err(err).Msg("serve: chat provider unavailable, using agentic model for memories_agent_chat")
		chatGen = gen
	}

	imageProviderID, imageModelID := provider.ParseModelString(cfg.ImageModelName)
	imageProvider, err := registry.Get(imageProviderID)
	if err != nil {
		logging.Warn().Err(err).Msg("serve: image provider unavailable, falling back to agentic provider for captioning")
		imageProvider, imageModelID = agenticProvider, agenticModelID
	}
	imageGen := provider.NewEinoGenerator(imageProvider, imageModelID)
	captioner := vision.NewGeneratorCaptioner(imageGen)
	captioner.MaxTokens = cfg.Sampler.ImageMaxTokens
	captioner.Temp = cfg.Sampler.ImageTemp

	mcpClient := mcp.NewClient()
	for name, mc := range cfg.MCPServers {
		serverCfg := &mcp.Config{
			Enabled:     mc.Enabled,
			Type:        mcp.TransportType(mc.Type),
			URL:         mc.URL,
			Headers:     mc.Headers,
			Command:     mc.Command,
			Environment: mc.Environment,
			Timeout:     mc.Timeout,
		}
		if err := mcpClient.AddServer(ctx, name, serverCfg); err != nil {
			logging.Warn().Err(err).Str("server", name).Msg("serve: failed to connect MCP server")
		}
	}
	externalTools := mcp.NewExternalTools(mcpClient)

	direct := dispatch.New(memoryAdapter{memStore}, corpus, nil, cacheReg, gen.ModelID())
	direct.External = externalTools

	asm := prompt.NewAssembler("assistant", toolCatalog())
	if len(cfg.ExtraInstructions) > 0 {
		asm.Instructions += "\n\n" + strings.Join(cfg.ExtraInstructions, "\n")
	}

	sampler := orchestrator.SamplerParams{
		Temperature:           cfg.Sampler.AgenticTemp,
		TopP:                  cfg.Sampler.AgenticTopP,
		TopK:                  cfg.Sampler.AgenticTopK,
		MinP:                  cfg.Sampler.AgenticMinP,
		RepetitionPenalty:     cfg.Sampler.AgenticRepetitionPenalty,
		RepetitionContextSize: cfg.Sampler.AgenticRepetitionContextSize,
		MaxTokens:             cfg.Sampler.AgenticMaxTokens,
		MaxKVSize:             cfg.Sampler.AgenticMaxKVSize,
	}

	runner := subagent.New(gen, direct.Handle, cacheReg, asm)
	runner.Sampler = sampler

	var assistantHandler orchestrator.ToolCallHandler = runner.Handle

	srvCfg := server.DefaultConfig()
	srvCfg.Sampler = sampler
	if portOverride != 0 {
		srvCfg.Port = portOverride
	}

	srv := server.New(srvCfg, memStore, cacheReg, captioner, gen, chatGen, assistantHandler, asm)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.Start(runCtx)
}
