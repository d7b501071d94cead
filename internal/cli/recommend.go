package cli

import (
	"context"
	"fmt"
	"strings"

	"shlrec/internal/common"
	"shlrec/internal/config"
	"shlrec/internal/embedding"
	"shlrec/internal/recommend"
	"shlrec/internal/types"

	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [query-file]",
	Short: "Recommend assessments for a job description",
	Long: `Recommend SHL assessments for the job description or hiring query in the
given file. The query is embedded and compared against the assessment catalog,
and matches are printed best first.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	recommendCmd.Flags().StringP("format", "f", "", "Output format: json, text, markdown (default from config)")
	recommendCmd.Flags().IntP("max-results", "n", 0, "Maximum number of recommendations (default from config)")
	recommendCmd.Flags().Int("max-duration", 0, "Only include assessments within this duration in minutes")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	outputFile, _ := cmd.Flags().GetString("output")
	outputFormat, _ := cmd.Flags().GetString("format")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	maxDuration, _ := cmd.Flags().GetInt("max-duration")

	if outputFormat == "" {
		outputFormat = cfg.App.DefaultFormat
	}
	if err := common.ValidateOutputFormat(outputFormat, cfg.App.SupportedFormats); err != nil {
		return err
	}

	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return fmt.Errorf("failed to apply Vault secrets: %w", err)
	}

	embedder, err := embedding.NewService(&cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	defer func() {
		_ = embedder.Close()
	}()

	recommender := recommend.NewService(embedder, cfg.Embedding.Model, cfg, logger)
	if err := recommender.LoadAndIndex(ctx); err != nil {
		return err
	}

	cmdConfig := common.CommandConfig{
		OutputFile:   outputFile,
		OutputFormat: outputFormat,
	}

	createInput := func(contents []string) (types.RecommendInput, error) {
		return types.RecommendInput{
			Text:        strings.TrimSpace(contents[0]),
			MaxResults:  maxResults,
			MaxDuration: maxDuration,
		}, nil
	}

	operation := func(ctx context.Context, input types.RecommendInput) (types.RecommendOutput, error) {
		out, err := recommender.Recommend(ctx, input)
		if err != nil {
			return types.RecommendOutput{}, err
		}
		return *out, nil
	}

	logDetails := func(input types.RecommendInput, c common.CommandConfig) {
		logger.Info("Recommending assessments",
			"query_length", len(input.Text),
			"max_results", input.MaxResults,
			"max_duration", input.MaxDuration,
			"output_format", c.OutputFormat)
	}

	return common.RunFileCommand(ctx, logger, cmdConfig, args, createInput, operation, logDetails)
}
