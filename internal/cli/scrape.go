package cli

import (
	"fmt"

	"shlrec/internal/catalog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the SHL product catalog",
	Long: `Fetch the SHL product catalog page, extract the assessments, and write
them to the catalog dataset file. Run this before serving so the dataset exists;
embeddings are computed at startup and cached in the snapshot file.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().String("url", "", "Catalog page URL (overrides config)")
	scrapeCmd.Flags().StringP("output", "o", "", "Output dataset file (default: the configured catalog data file)")

	if err := viper.BindPFlag("catalog.scrape.url", scrapeCmd.Flags().Lookup("url")); err != nil {
		panic(err)
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	outputFile, _ := cmd.Flags().GetString("output")
	if outputFile == "" {
		outputFile = cfg.Catalog.DataFile
	}

	scraper := catalog.NewScraper(&cfg.Catalog.Scrape, logger)
	assessments, err := scraper.Scrape(ctx)
	if err != nil {
		return err
	}

	if err := catalog.Save(outputFile, assessments); err != nil {
		return err
	}

	logger.Info("Catalog dataset written",
		"file", outputFile,
		"assessments", len(assessments))
	fmt.Printf("Wrote %d assessments to %s\n", len(assessments), outputFile)
	return nil
}
