package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/log"
	storefront "github.com/Alturino/storefront/storefront/cmd"
)

func Start() {
	var (
		logFile string
		env     string
	)

	rootCmd := &cobra.Command{Use: constants.APP_STOREFRONT}
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "/var/log/storefront.log", "path of the rotated log file")
	rootCmd.PersistentFlags().StringVar(&env, "env", "production", "development enables trace logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger := log.Get(logFile, config.Application{Env: env}).
			With().
			Str(constants.KEY_APP_NAME, constants.APP_MAIN_STOREFRONT).
			Str(constants.KEY_TAG, "main Start").
			Logger()
		cmd.SetContext(logger.WithContext(cmd.Context()))
	}

	commands := []*cobra.Command{
		{
			Use:   "serve",
			Short: "Run storefront service",
			Run: func(cmd *cobra.Command, args []string) {
				storefront.RunStorefrontService(cmd.Context())
			},
		},
		{
			Use:   "migrate",
			Short: "Apply database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return storefront.RunMigration(cmd.Context())
			},
		},
	}
	rootCmd.AddCommand(commands...)

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(c); err != nil {
		stop()
		os.Exit(1)
	}
}
