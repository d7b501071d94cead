package cli

import (
	"shlrec/internal/web"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Start the web frontend",
	Long: `Start a small web frontend for interactive recommendations.

The frontend serves a single page with a query form and forwards submissions
to the recommendation API configured via ui.apiURL (or --api-url).`,
	RunE: runUI,
}

func init() {
	uiCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	uiCmd.Flags().String("host", "", "Host to bind to (default from config)")
	uiCmd.Flags().String("api-url", "", "Base URL of the recommendation API (overrides config)")

	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, uiCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("ui.port", "port")
	bindFlag("ui.host", "host")
	bindFlag("ui.apiurl", "api-url")
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	ui, err := web.NewUIServer(&cfg.UI, logger)
	if err != nil {
		return err
	}
	return ui.Start()
}
