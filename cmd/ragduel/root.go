package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/arbiter"
	"github.com/smallnest/ragduel/compare"
	"github.com/smallnest/ragduel/factstore"
	"github.com/smallnest/ragduel/llms/openai"
	"github.com/smallnest/ragduel/log"
	"github.com/smallnest/ragduel/retrieval"
	"github.com/smallnest/ragduel/store"
	"github.com/smallnest/ragduel/structured"
)

var (
	cfgFile  string
	verbose  bool
	dataPath string
)

var rootCmd = &cobra.Command{
	Use:   "ragduel",
	Short: "Compare retrieval-augmented and structured-query answering on one dataset",
	Long: `ragduel holds a dataset in two forms built from one load: documents for
retrieval and a labeled property graph for structured query. For each
question it runs both answerers in parallel and has an LLM judge score the
pair on accuracy, completeness, precision, and verifiability.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ragduel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "article dataset (.csv or .html)")

	rootCmd.PersistentFlags().Int("top-k", 5, "documents consulted by the retrieval answerer")
	rootCmd.PersistentFlags().Bool("vector-search", false, "retrieve by embedding similarity instead of keywords")
	rootCmd.PersistentFlags().String("graph-url", "", "FalkorDB URL (falkordb://host:port/graph); empty runs in memory")
	rootCmd.PersistentFlags().String("model", "gpt-4o-mini", "chat model")

	for _, flag := range []string{"top-k", "vector-search", "graph-url", "model"} {
		_ = viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".ragduel"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("RAGDUEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	if verbose {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelWarn)
	}
}

func pipelineConfig() ragduel.Config {
	cfg := ragduel.DefaultConfig()
	cfg.TopK = viper.GetInt("top-k")
	cfg.UseVectorSearch = viper.GetBool("vector-search")
	return cfg
}

// loadFactStore builds the fact store from --data, routing the graph side to
// FalkorDB when --graph-url is set.
func loadFactStore(ctx context.Context, llm *openai.Client) (*factstore.FactStore, error) {
	if dataPath == "" {
		return nil, fmt.Errorf("--data is required")
	}

	var embedder ragduel.Embedder
	if llm != nil {
		embedder = llm
	}

	var opts []factstore.Option
	if viper.GetBool("vector-search") {
		opts = append(opts, factstore.WithEmbedder(embedder))
	}
	if url := viper.GetString("graph-url"); url != "" {
		graph, err := store.NewFalkorDBGraph(url)
		if err != nil {
			return nil, err
		}
		opts = append(opts, factstore.WithGraphStore(graph))
	}

	fs := factstore.New(store.NewInMemoryVectorStore(embedder), store.NewMemoryGraph(), opts...)

	f, err := os.Open(dataPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	start := time.Now()
	var n int
	switch strings.ToLower(filepath.Ext(dataPath)) {
	case ".html", ".htm":
		n, err = fs.LoadHTML(ctx, f)
	default:
		n, err = fs.LoadCSV(ctx, f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dataPath, err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d articles in %s\n", n, time.Since(start).Round(time.Millisecond))
	}
	return fs, nil
}

func newLLM() (*openai.Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	cfg := openai.DefaultConfig(apiKey)
	cfg.Model = viper.GetString("model")
	return openai.New(cfg)
}

func newOrchestrator(llm *openai.Client, fs *factstore.FactStore, cfg ragduel.Config) *compare.Orchestrator {
	return compare.New(
		retrieval.New(llm, llm, fs.Documents(), cfg),
		structured.New(llm, fs.GraphStore(), fs, cfg),
		arbiter.New(llm, cfg),
		cfg,
	)
}
