package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/fulfillment"
	"github.com/wilsonianb/five-bells-condition/pkg/kvstore"
)

const Version = "0.1.0"

func main() {
	viper.SetEnvPrefix("FBCOND")
	viper.AutomaticEnv()
	viper.SetDefault("db_path", defaultDBPath())
	viper.SetDefault("log_level", "info")

	app := &cli.Command{
		Name:    "fbcond",
		Usage:   "Derive, verify and store crypto-conditions",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: viper.GetString("log_level"),
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Condition store directory",
				Value: viper.GetString("db_path"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "condition",
				Usage: "Derive the condition for a fulfillment",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "fulfillment",
						Aliases:  []string{"f"},
						Usage:    "Fulfillment as cf: URI or hex",
						Required: true,
					},
				},
				Action: runCondition,
			},
			{
				Name:  "verify",
				Usage: "Verify a fulfillment against a condition and message",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "fulfillment",
						Aliases:  []string{"f"},
						Usage:    "Fulfillment as cf: URI or hex",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "condition",
						Aliases:  []string{"c"},
						Usage:    "Condition as cc: URI or hex",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "message",
						Aliases: []string{"m"},
						Usage:   "Message the fulfillment signs over",
					},
				},
				Action: runVerify,
			},
			{
				Name:  "store",
				Usage: "Manage the condition store",
				Commands: []*cli.Command{
					{
						Name:  "put",
						Usage: "Store a fulfillment and its derived condition",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "fulfillment",
								Aliases:  []string{"f"},
								Usage:    "Fulfillment as cf: URI or hex",
								Required: true,
							},
						},
						Action: runStorePut,
					},
					{
						Name:  "get",
						Usage: "Fetch a stored record by condition fingerprint",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "fingerprint",
								Usage:    "Condition fingerprint as hex",
								Required: true,
							},
						},
						Action: runStoreGet,
					},
					{
						Name:   "list",
						Usage:  "List stored conditions",
						Action: runStoreList,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Display version information",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Printf("fbcond version %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fbcond/db"
	}
	return filepath.Join(home, ".fbcond", "db")
}

func newLogger(c *cli.Command) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func openStore(c *cli.Command) (*kvstore.Store, error) {
	return kvstore.Open(kvstore.Options{
		Path:   c.String("db"),
		Logger: newLogger(c),
	})
}

// parseFulfillmentArg accepts a cf: URI or hex-encoded binary.
func parseFulfillmentArg(arg string) (fulfillment.Fulfillment, error) {
	if strings.HasPrefix(arg, "cf:") {
		return fulfillment.FromURI(arg)
	}
	data, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("fulfillment is neither a cf: URI nor hex: %w", err)
	}
	return fulfillment.FromBinary(data)
}

// parseConditionArg accepts a cc: URI or hex-encoded binary.
func parseConditionArg(arg string) (*condition.Condition, error) {
	if strings.HasPrefix(arg, "cc:") {
		return condition.FromURI(arg)
	}
	data, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("condition is neither a cc: URI nor hex: %w", err)
	}
	return condition.FromBinary(data)
}

func runCondition(ctx context.Context, c *cli.Command) error {
	f, err := parseFulfillmentArg(c.String("fulfillment"))
	if err != nil {
		return err
	}
	cond, err := f.Condition()
	if err != nil {
		return err
	}
	fmt.Println(cond.URI())
	fmt.Println(hex.EncodeToString(cond.SerializeBinary()))
	return nil
}

func runVerify(ctx context.Context, c *cli.Command) error {
	f, err := parseFulfillmentArg(c.String("fulfillment"))
	if err != nil {
		return err
	}
	cond, err := parseConditionArg(c.String("condition"))
	if err != nil {
		return err
	}
	data, err := f.SerializeBinary()
	if err != nil {
		return err
	}
	if err := fulfillment.ValidateBinary(data, cond, []byte(c.String("message"))); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Println("valid")
	return nil
}

func runStorePut(ctx context.Context, c *cli.Command) error {
	f, err := parseFulfillmentArg(c.String("fulfillment"))
	if err != nil {
		return err
	}
	cond, err := f.Condition()
	if err != nil {
		return err
	}
	data, err := f.SerializeBinary()
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	rec := &kvstore.Record{
		URI:         cond.URI(),
		Condition:   cond.SerializeBinary(),
		Fulfillment: data,
	}
	if err := store.Put(cond.Fingerprint, rec); err != nil {
		return err
	}
	fmt.Println(cond.URI())
	return nil
}

func runStoreGet(ctx context.Context, c *cli.Command) error {
	fingerprint, err := hex.DecodeString(c.String("fingerprint"))
	if err != nil {
		return fmt.Errorf("fingerprint must be hex: %w", err)
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	rec, err := store.Get(fingerprint)
	if err != nil {
		return err
	}
	fmt.Println(rec.URI)
	if len(rec.Fulfillment) > 0 {
		fmt.Println(hex.EncodeToString(rec.Fulfillment))
	}
	return nil
}

func runStoreList(ctx context.Context, c *cli.Command) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	records, err := store.List()
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Println(rec.URI)
	}
	return nil
}
