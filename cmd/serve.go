package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kira-project/kira-recommender/internal/ai"
	"github.com/kira-project/kira-recommender/internal/ai/gemini"
	"github.com/kira-project/kira-recommender/internal/esco"
	"github.com/kira-project/kira-recommender/internal/logger"
	"github.com/kira-project/kira-recommender/internal/matcher"
	"github.com/kira-project/kira-recommender/internal/occupation"
	"github.com/kira-project/kira-recommender/internal/recommend"
	"github.com/kira-project/kira-recommender/internal/secrets"
	"github.com/kira-project/kira-recommender/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultAddress = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recommendation HTTP server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "address for the http server to listen on")

	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the kira-recommender", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	catalog, store, err := loadData(config)
	if err != nil {
		logger.Fatal("loading occupation data", zap.Error(err))
	}

	logger.Info("loaded occupation catalog", zap.Int("count", catalog.Len()))

	engineCfg, err := engineConfig(config)
	if err != nil {
		logger.Fatal("building engine config", zap.Error(err))
	}

	engine := recommend.NewEngine(catalog, store, engineCfg, logger)

	explainer, err := prepareExplainer(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping AI explanations", zap.Error(err))
	}

	address := viper.GetString("server.address")
	if address == "" {
		address = defaultAddress
	}

	srv := server.New(address, server.Deps{
		Engine:    engine,
		Catalog:   catalog,
		Resolver:  store,
		Explainer: explainer,
		Logger:    logger,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("exiting", zap.String("reason", "shutdown signal received"))
}

// loadData builds the vector catalog and the metadata store from the
// configured CSV files.
func loadData(config *Config) (*occupation.Catalog, *esco.Store, error) {
	if config.Data == nil || config.Data.Catalog == "" {
		return nil, nil, errors.New("data.catalog is required")
	}
	if config.Data.Occupations == "" {
		return nil, nil, errors.New("data.occupations is required")
	}

	catalog, err := occupation.LoadCatalog(config.Data.Catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	store, err := esco.NewStore(
		config.Data.Occupations,
		config.Data.Skills,
		config.Data.SkillRelations,
		config.Data.OccupationRelations,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("loading occupation metadata: %w", err)
	}

	return catalog, store, nil
}

func engineConfig(config *Config) (recommend.Config, error) {
	var cfg recommend.Config
	if config.Engine == nil {
		return cfg, nil
	}

	method, err := matcher.ParseMethod(config.Engine.Method)
	if err != nil {
		return cfg, err
	}

	cfg.Method = method
	cfg.TopK = config.Engine.TopK
	cfg.ComfortZoneThreshold = config.Engine.ComfortZoneThreshold
	cfg.DislikeRadius = config.Engine.DislikeRadius

	return cfg, nil
}

func prepareExplainer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Explainer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai explanations are enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	explainerLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)

	return gemini.NewExplainer(generator, explainerLogger, cfg.Gemini.MaxLogLength), nil
}
