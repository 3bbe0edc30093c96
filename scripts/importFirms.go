package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brokerdesk/config"
	"brokerdesk/database"
	"brokerdesk/logger"
	"brokerdesk/services"
)

func newImportCmd() *cobra.Command {
	var (
		file      string
		createdBy string
	)

	cmd := &cobra.Command{
		Use:   "import-firms",
		Short: "Create firms from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig()
			if err := logger.InitLogger(&logger.LogConfig{
				Level:       config.AppConfig.LogLevel,
				Environment: config.AppConfig.AppEnv,
				ServiceName: "brokerdesk-import",
			}); err != nil {
				return err
			}
			if err := database.ConnectDb(); err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := services.NewFirmService(database.Database.Db).ImportFirms(cmd.Context(), f, createdBy)
			if result != nil {
				logger.GetLogger().Info("Import complete",
					zap.Int("inserted", result.Inserted),
					zap.Int("skipped", result.Skipped),
					zap.Int("total", result.Inserted+result.Skipped),
				)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV file to import (required)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "User id recorded as the creator (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("created-by")
	return cmd
}

func main() {
	if err := newImportCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
}
