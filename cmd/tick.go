package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/retrieverd/config"
	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/core/model"
)

var tickCmd = &cobra.Command{
	Use:   "tick <snapshot>",
	Short: "Print the decision for a host snapshot (JSON or YAML)",
	Args:  cobra.ExactArgs(1),
	RunE:  tickSnapshot,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

// loadOptional loads the configuration only when --config was given.
func loadOptional(cmd *cobra.Command) (*config.Config, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func tickSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadOptional(cmd)
	if err != nil {
		return err
	}
	prefs := dispatch.DefaultPreferences()
	if cfg != nil {
		if prefs, err = cfg.Dispatch.Preferences(); err != nil {
			return err
		}
	}
	snap, err := model.LoadSnapshot(args[0])
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	dec := dispatch.Decide(snap, prefs)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dec)
}
