package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/infra/logger"
	"github.com/kilianp07/retrieverd/infra/mqtt"
	"github.com/kilianp07/retrieverd/simulator"
)

var (
	simTicks  int
	simBridge string
	simSeed   int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the dispatcher against a simulated game",
	Long: "Without --bridge the dispatcher plays the simulated game in process on a manual clock " +
		"and prints a summary. With --bridge the game is exposed on the MQTT broker so that " +
		"a retrieverd instance in mqtt mode can drive it.",
	RunE: simulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 100, "number of ticks to simulate")
	simulateCmd.Flags().StringVar(&simBridge, "bridge", "", "expose the game on this MQTT broker instead")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "seed for dropped acknowledgments")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadOptional(cmd)
	if err != nil {
		return err
	}
	var simCfg simulator.Config
	var mqttCfg mqtt.Config
	prefs := dispatch.DefaultPreferences()
	if cfg != nil {
		simCfg = cfg.Simulator
		mqttCfg = cfg.MQTT
		if prefs, err = cfg.Dispatch.Preferences(); err != nil {
			return err
		}
	}
	simCfg.SetDefaults()

	if simBridge != "" {
		return runBridge(ctx, simCfg, mqttCfg)
	}

	if simTicks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}
	clock := simulator.NewManualClock(time.Now())
	game, err := simulator.New(simCfg, clock.Now)
	if err != nil {
		return err
	}
	mgr, err := dispatch.NewManager(nil, nil, nil, nil, logger.New("simulate"))
	if err != nil {
		return err
	}
	mgr.SetPreferences(prefs)
	res := simulator.Simulate(ctx, mgr, game, clock, simTicks)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runBridge(ctx context.Context, simCfg simulator.Config, mqttCfg mqtt.Config) error {
	game, err := simulator.New(simCfg, nil)
	if err != nil {
		return err
	}
	cli, err := simulator.NewBridgeClient(simBridge, "retrieverd-sim")
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer cli.Disconnect(250)
	ack := simulator.NewRandomAck(time.Duration(simCfg.AckLatencyMS)*time.Millisecond, simCfg.DropRate, simSeed)
	logger.New("simulate").Infof("simulated game exposed on %s", simBridge)
	return simulator.NewBridge(game, cli, mqttCfg, ack).Run(ctx, simCfg.TickInterval())
}
