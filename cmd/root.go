package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "kira-recommender"
)

type Config struct {
	Data   *DataConfig   `mapstructure:"data"`
	Server *ServerConfig `mapstructure:"server"`
	Engine *EngineConfig `mapstructure:"engine"`
	AI     *AIConfig     `mapstructure:"ai"`
}

type DataConfig struct {
	Catalog             string `mapstructure:"catalog"`
	Occupations         string `mapstructure:"occupations"`
	Skills              string `mapstructure:"skills"`
	SkillRelations      string `mapstructure:"skill-relations"`
	OccupationRelations string `mapstructure:"occupation-relations"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type EngineConfig struct {
	Method               string  `mapstructure:"method"`
	TopK                 int     `mapstructure:"top-k"`
	ComfortZoneThreshold float64 `mapstructure:"comfort-zone-threshold"`
	DislikeRadius        float64 `mapstructure:"dislike-radius"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "kira-recommender suggests future-proof occupations from a user's skill profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is kira-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only serve and recommend need a config file.
	if serveCmd.CalledAs() == "" && recommendCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
