// txctl moves an amount between two counters on a Redis-style server inside
// a watched transaction, retrying automatically when a concurrent writer
// invalidates the watched keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/dipendra-mule/redistx"
	"github.com/dipendra-mule/redistx/client"
)

func main() {
	configPath := flag.String("config", "txctl.toml", "path to the txctl config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "txctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if cfg.Verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	c, err := client.Dial(client.Config{Addr: cfg.Addr, RaiseErrors: cfg.RaiseErrors})
	if err != nil {
		return err
	}
	defer c.Close()

	tx, err := redistx.New(c, redistx.Options{
		Watch:   []string{cfg.From, cfg.To},
		Retries: cfg.Retries,
		Logger:  logger,
		OnRetry: func(tx *redistx.Tx, attemptsLeft int) {
			logger.Info("transfer aborted by a concurrent writer, retrying",
				zap.Int("attempts_left", attemptsLeft))
		},
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	amount := strconv.Itoa(cfg.Amount)
	results, err := tx.Execute(ctx, func(ctx context.Context, tx *redistx.Tx) error {
		if _, err := tx.Do(ctx, "DECRBY", cfg.From, amount); err != nil {
			return err
		}
		_, err := tx.Do(ctx, "INCRBY", cfg.To, amount)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("transferred %d from %q (now %v) to %q (now %v)\n",
		cfg.Amount, cfg.From, results[0], cfg.To, results[1])
	return nil
}
