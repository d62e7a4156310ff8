package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kira-project/kira-recommender/internal/esco"
	"github.com/kira-project/kira-recommender/internal/filtering"
	"github.com/kira-project/kira-recommender/internal/logger"
	"github.com/kira-project/kira-recommender/internal/occupation"
	"github.com/kira-project/kira-recommender/internal/recommend"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptLike    = "Like"
	PromptDislike = "Dislike"
	PromptSkip    = "Skip"
	PromptExit    = "Exit"
)

var errExit = errors.New("exit requested")

var ratingPrompt = promptui.Select{
	Label: "Rate this recommendation",
	Items: []string{PromptLike, PromptDislike, PromptSkip, PromptExit},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend occupations for a request file and rate them interactively",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("request", "r", "", "json file with the user profile, preferences and history")
	recommendCmd.Flags().BoolP("once", "o", false, "print a single recommendation and exit")

	recommendCmd.MarkFlagRequired("request")
}

// ratedJobFile mirrors one job history entry of the request file.
type ratedJobFile struct {
	URI   string `json:"uri"`
	Liked bool   `json:"liked"`
}

// requestFile is the on-disk request format. It matches the body of the
// POST /recommendations endpoint.
type requestFile struct {
	Profile            map[string]float64 `json:"profile"`
	PreferencedSectors []string           `json:"preferenced_sectors"`
	LastJob            *ratedJobFile      `json:"last_job"`
	SecondLastJob      *ratedJobFile      `json:"second_last_job"`
	PreviousJob        *ratedJobFile      `json:"previous_job"`
	JobRecommendations []string           `json:"job_recommendations"`
	JobRatings         []int              `json:"job_ratings"`
}

func runRecommend(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	catalog, store, err := loadData(config)
	if err != nil {
		logger.Fatal("loading occupation data", zap.Error(err))
	}

	engineCfg, err := engineConfig(config)
	if err != nil {
		logger.Fatal("building engine config", zap.Error(err))
	}

	engine := recommend.NewEngine(catalog, store, engineCfg, logger)

	req, err := loadRequest(cmd.Flag("request").Value.String())
	if err != nil {
		logger.Fatal("loading request file", zap.Error(err))
	}

	once := cmd.Flag("once").Value.String() == "true"

	for {
		rec, err := engine.Recommend(req)
		if err != nil {
			if errors.Is(err, recommend.ErrNoCandidates) {
				logger.Info("exiting", zap.String("reason", "no recommendation available"))
				return
			}
			logger.Fatal("recommendation failed", zap.Error(err))
		}

		printRecommendation(rec, store)

		if once {
			return
		}

		rating, err := rate()
		if err != nil {
			if errors.Is(err, errExit) {
				logger.Info("exiting", zap.String("reason", "got exit from prompt"))
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		// Feed the rating back so the next round excludes this occupation
		// and honors the new signal.
		req.Log.URIs = append(req.Log.URIs, rec.URI)
		req.Log.Ratings = append(req.Log.Ratings, rating)
	}
}

func loadRequest(path string) (*recommend.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file requestFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(file.Profile) == 0 {
		return nil, errors.New("profile is required")
	}

	vector, err := occupation.VectorFromMap(file.Profile)
	if err != nil {
		return nil, err
	}

	if len(file.JobRecommendations) != len(file.JobRatings) {
		return nil, fmt.Errorf("%w: %d recommendations, %d ratings",
			filtering.ErrMalformedHistory, len(file.JobRecommendations), len(file.JobRatings))
	}

	var history []filtering.RatedJob
	for _, job := range []*ratedJobFile{file.LastJob, file.SecondLastJob, file.PreviousJob} {
		if job == nil || strings.TrimSpace(job.URI) == "" {
			continue
		}
		history = append(history, filtering.RatedJob{URI: job.URI, Liked: job.Liked})
	}

	return &recommend.Request{
		Profile:     vector,
		Preferences: file.PreferencedSectors,
		History:     history,
		Log: filtering.Log{
			URIs:    file.JobRecommendations,
			Ratings: file.JobRatings,
		},
	}, nil
}

func printRecommendation(rec *recommend.Recommendation, resolver esco.Resolver) {
	label := rec.URI
	description := ""
	var skills []string

	if details, err := resolver.Resolve(rec.URI); err == nil {
		label = details.Label
		description = details.Description
		skills = details.Skills
	}

	fmt.Printf("\n%s\n", label)
	fmt.Printf("  uri:          %s\n", rec.URI)
	fmt.Printf("  distance:     %.2f\n", rec.Distance)
	fmt.Printf("  comfort zone: %t\n", rec.ComfortZone)
	if description != "" {
		fmt.Printf("  description:  %s\n", description)
	}
	if len(skills) > 0 {
		fmt.Printf("  skills:       %s\n", strings.Join(skills, ", "))
	}
	fmt.Println()
}

func rate() (int, error) {
	_, action, err := ratingPrompt.Run()
	if err != nil {
		return 0, err
	}

	switch action {
	case PromptLike:
		return filtering.RatingLiked, nil
	case PromptDislike:
		return filtering.RatingDisliked, nil
	case PromptSkip:
		return filtering.RatingSkipped, nil
	case PromptExit:
		return 0, errExit
	default:
		return 0, fmt.Errorf("invalid action: %s", action)
	}
}
