package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"birthdaybot/config"
	"birthdaybot/dal"
	"birthdaybot/logging"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	From string
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a JSON data file into the configured storage",
		Long: `Copy every server and birthday from a JSON data file into the storage
selected by STORAGE_DRIVER, replacing what it holds.

Example:
  birthdaybot import --from data.json
  birthdaybot import --from data.json --storage redis`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			n, err := importData(cmd.Context(), cfg, opts.From)
			if err != nil {
				return err
			}
			cmd.Printf("imported %d servers from %s\n", n, opts.From)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "path to the JSON data file (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func importData(ctx context.Context, cfg *config.Config, from string) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.Storage.Driver == config.DriverJSON && cfg.Storage.DataFile == from {
		return 0, fmt.Errorf("source and destination are the same file: %s", from)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return 0, err
	}
	defer logger.Sync() //nolint:errcheck

	to, err := openBackend(cfg.Storage, logger)
	if err != nil {
		return 0, err
	}
	defer to.Close()

	n, err := dal.Import(ctx, dal.NewJSONFileBackend(from), to)
	if err != nil {
		return 0, err
	}
	logger.Info("imported data", zap.String("from", from), zap.Int("communities", n))
	return n, nil
}
