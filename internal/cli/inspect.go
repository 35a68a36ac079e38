package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/explorer"
)

var inspectConfiguration string

// inspectCmd performs a one-shot extraction and prints JSON to stdout.
var inspectCmd = &cobra.Command{
	Use:   "inspect <project-file>",
	Short: "Extract a project's public type surface as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectConfiguration, "configuration", "c", "", "preferred build configuration (default from config)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	configuration := inspectConfiguration
	if configuration == "" {
		configuration = cfg.Configuration
	}

	x := explorer.New(log)
	records, resolution, err := x.FromProject(args[0], configuration)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Resolution interface{} `json:"resolution"`
		Types      interface{} `json:"types"`
	}{resolution, records})
}
