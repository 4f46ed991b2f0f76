package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/replaylab/replay-trading/internal/backtest"
	"github.com/replaylab/replay-trading/internal/datasource"
	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/strategy"
)

// runAction loads the engine config and declarative strategy, wires a
// DuckDB-backed provider over the data file, and runs the backtest.
func runAction(ctx context.Context, cmd *cli.Command) error {
	dataPath := cmd.String("data")
	symbol := cmd.String("symbol")
	configPath := cmd.String("config")
	strategyPath := cmd.String("strategy")
	outPath := cmd.String("out")

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	config := backtest.DefaultConfig()

	if configPath != "" {
		doc, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read engine config: %w", err)
		}

		config, err = backtest.ConfigFromYAML(string(doc))
		if err != nil {
			return err
		}
	}

	strategyDoc, err := os.ReadFile(strategyPath)
	if err != nil {
		return fmt.Errorf("failed to read strategy config: %w", err)
	}

	declarative := &strategy.Declarative{}
	if err := declarative.Configure(string(strategyDoc)); err != nil {
		return err
	}

	// The strategy's indicator section feeds the engine's indicator
	// manager; explicit engine indicators win.
	if config.Indicators == nil {
		config.Indicators = declarative.IndicatorSpecs()
	}

	config.Progress = true

	provider, err := datasource.NewDuckDBProvider(datasource.DuckDBConfig{
		Path:            dataPath,
		TimestampColumn: cmd.String("timestamp-column"),
		Symbol:          symbol,
	}, appLogger)
	if err != nil {
		return err
	}
	defer provider.Close()

	engine, err := backtest.NewEngine(declarative, provider, config, appLogger)
	if err != nil {
		return err
	}

	results, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(results.Summary())
	fmt.Println(results.MonthlyTable())

	if outPath != "" {
		if err := results.WriteYAML(outPath); err != nil {
			return err
		}

		log.Printf("results written to %s", outPath)
	}

	return nil
}

func main() {
	// API keys for exchange-backed providers come from .env when present.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Replay a declarative strategy against historical 1m bars",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "CSV or Parquet file with 1m OHLCV bars",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "symbol",
				Aliases: []string{"s"},
				Usage:   "instrument symbol label",
				Value:   "UNKNOWN",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "engine config YAML (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:     "strategy",
				Usage:    "declarative strategy YAML",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "timestamp-column",
				Usage: "timestamp column name in the data file",
				Value: "timestamp",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write full results YAML to this path",
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
