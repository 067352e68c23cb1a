// Package cli implements the benefitsrag command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/ai"
	configfile "github.com/benefitsflow/benefits-rag/internal/adapters/driven/config/file"
	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/storage/sqlite"
	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/vector/memory"
	"github.com/benefitsflow/benefits-rag/internal/connectors/filesystem"
	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
	"github.com/benefitsflow/benefits-rag/internal/core/services"
	"github.com/benefitsflow/benefits-rag/internal/logger"
	"github.com/benefitsflow/benefits-rag/internal/segmenter"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagVerbose   bool
	flagConfigDir string
)

// Shared application state, built once per invocation by initApp.
var (
	appConfig   *configfile.Config
	docStore    driven.DocumentStore
	vectorIndex driven.VectorIndex
	ingestor    *services.IngestService
	assistant   *services.ChatService
	retrieval   *services.RetrievalService
	synthesis   *services.SynthesisService
	chatTopK    int
	chatBudget  int

	// closers run in reverse order on teardown.
	closers []func() error

	// snapshotIndex saves the memory index after mutating commands.
	snapshotIndex func() error
)

var rootCmd = &cobra.Command{
	Use:   "benefitsrag",
	Short: "Grounded Q&A over a public benefits document corpus",
	Long: `benefitsrag ingests benefits program documents, indexes them for
semantic retrieval, and answers questions grounded in that corpus with
citations back to the source documents.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "", "config directory (default ~/.benefitsrag)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer teardown()
	return rootCmd.ExecuteContext(ctx)
}

// initApp builds the full service graph from configuration. Commands
// that touch the corpus call it in their RunE.
func initApp() error {
	cfg, err := configfile.LoadConfig(flagConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	appConfig = cfg

	prompts, err := configfile.NewPromptStore(cfg.PromptDir)
	if err != nil {
		return fmt.Errorf("prompt store: %w", err)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	docStore = store
	closers = append(closers, store.Close)

	embedder, err := ai.CreateAndValidateEmbeddingProvider(cfg.EmbeddingSettings())
	if err != nil {
		return err
	}
	if embedder == nil {
		return fmt.Errorf("no embedding provider configured; set [embedding] in %s", configPath())
	}
	closers = append(closers, embedder.Close)

	llm, err := ai.CreateAndValidateGenerationService(cfg.GenerationSettings())
	if err != nil {
		return err
	}
	if llm == nil {
		return fmt.Errorf("no generation provider configured; set [generation] in %s", configPath())
	}
	closers = append(closers, llm.Close)

	indexSettings := cfg.IndexSettings()
	index, err := ai.CreateVectorIndex(indexSettings, embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	vectorIndex = index
	closers = append(closers, index.Close)

	if mem, ok := index.(*memory.Index); ok && indexSettings.SnapshotPath != "" {
		path := indexSettings.SnapshotPath
		snapshotIndex = func() error { return mem.Save(path) }
	}

	gateway := services.NewEmbeddingGateway(embedder)
	lexicon := domain.DefaultLexicon()

	seg := segmenter.New(segmenterOptions(cfg)...)
	source := filesystem.New("")
	ingestor = services.NewIngestService(source, seg, gateway, index, store, ingestOptions(cfg)...)

	var retrievalOpts []services.RetrievalOption
	if cfg.Retrieval.SimilarityFloor > 0 {
		retrievalOpts = append(retrievalOpts, services.WithSimilarityFloor(cfg.Retrieval.SimilarityFloor))
	}
	retrieval = services.NewRetrievalService(index, gateway, store, lexicon, retrievalOpts...)
	synthesis = services.NewSynthesisService(llm, prompts, lexicon)

	var chatOpts []services.ChatOption
	chatTopK = cfg.Retrieval.TopK
	if chatTopK > 0 {
		chatOpts = append(chatOpts, services.WithTopK(chatTopK))
	} else {
		chatTopK = services.DefaultTopK
	}
	chatBudget = cfg.Retrieval.EvidenceBudget
	if chatBudget > 0 {
		chatOpts = append(chatOpts, services.WithEvidenceBudget(chatBudget))
	} else {
		chatBudget = services.DefaultEvidenceBudget
	}
	assistant = services.NewChatService(retrieval, synthesis, chatOpts...)

	return nil
}

// segmenterOptions maps config to segmenter options.
func segmenterOptions(cfg *configfile.Config) []segmenter.Option {
	var opts []segmenter.Option
	if cfg.Ingest.MaxChunkLength > 0 {
		opts = append(opts, segmenter.WithMaxLength(cfg.Ingest.MaxChunkLength))
	}
	if cfg.Ingest.ChunkOverlap > 0 {
		opts = append(opts, segmenter.WithOverlap(cfg.Ingest.ChunkOverlap))
	}
	return opts
}

// ingestOptions maps config to ingest service options.
func ingestOptions(cfg *configfile.Config) []services.IngestOption {
	var opts []services.IngestOption
	if cfg.Ingest.Workers > 0 {
		opts = append(opts, services.WithIngestWorkers(cfg.Ingest.Workers))
	}
	return opts
}

// saveSnapshot persists the memory index if one is configured.
func saveSnapshot() {
	if snapshotIndex == nil {
		return
	}
	if err := snapshotIndex(); err != nil {
		logger.Warn("Saving index snapshot: %v", err)
	}
}

// teardown closes resources in reverse construction order.
func teardown() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("Closing resource: %v", err)
		}
	}
	closers = nil
}

// configPath names the active config file for error messages.
func configPath() string {
	if flagConfigDir != "" {
		return flagConfigDir + "/config.toml"
	}
	return "~/.benefitsrag/config.toml"
}
