package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/backend/mock"
	"anarchy.ttfm/scanpay/cmd/scanpay/internal/router"
	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/intents"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/metrics"
	"anarchy.ttfm/scanpay/utils"
	"anarchy.ttfm/scanpay/workflow"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration",
		Value: "config.yaml",
	}
}

func debugFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "debug",
		Usage: "set debug mode",
	}
}

func loadConfig(path string) (cfg Config, err error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	err = yaml.Unmarshal(contents, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func setGinMode(debug bool) {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

// Logs submissions a previous run left without an outcome
func reportUnresolved(j *journal.Journal) {
	submissions, errChan := j.StreamInFlight()
	defer utils.ConsumeChannel(errChan)

	for s := range submissions {
		log.Println("WARN|UNRESOLVED|SUBMISSION", s.Marker, s.PayerEmail, s.Amount, s.Fee, s.StartedAt)
	}
	err := <-errChan
	if err != nil {
		log.Println("ERROR|STREAMING|INFLIGHT", err)
	}
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the host API",
	Flags: []cli.Flag{configFlag(), debugFlag()},
	Action: func(ctx context.Context, c *cli.Command) (err error) {
		setGinMode(c.Bool("debug"))

		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return err
		}

		svc, err := cfg.Compile()
		if err != nil {
			return err
		}
		defer svc.DB.Close()
		defer svc.Workflow.Detach()

		log.Println("INFO|LOADED|CLASSIFIER", svc.Classifier.Version())
		reportUnresolved(svc.Journal)

		_, err = svc.Workflow.RefreshDevices(ctx)
		if err != nil {
			log.Println("WARN|REFRESHING|DEVICES", err)
		}

		e := gin.Default()
		var r = router.Router{
			Workflow: svc.Workflow,
			Scanner:  svc.Scanner,
			Journal:  svc.Journal,
			Metrics:  metrics.Handler(svc.Registry),
			Base:     e,
		}
		r.Register()

		return e.Run(cfg.ListenAddress)
	},
}

var normalizeCommand = &cli.Command{
	Name:      "normalize",
	Usage:     "Validate a decoded payload. Reads stdin when no argument is given",
	ArgsUsage: "[payload]",
	Action: func(ctx context.Context, c *cli.Command) (err error) {
		raw := c.Args().First()
		if raw == "" {
			contents, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			raw = strings.TrimSpace(string(contents))
		}

		intent, err := intents.Normalize(raw)
		if err != nil {
			rejection := failures.Default().Reject(workflow.RejectionCategory(err))
			out, _ := json.MarshalIndent(rejection, "", "  ")
			fmt.Println(string(out))
			return err
		}

		out, err := json.MarshalIndent(intent, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal intent: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var journalCommand = &cli.Command{
	Name:  "journal",
	Usage: "List recorded submissions as JSON lines",
	Flags: []cli.Flag{
		configFlag(),
		&cli.BoolFlag{
			Name:  "in-flight",
			Usage: "Only list submissions without an outcome",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) (err error) {
		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return err
		}

		db, err := badger.Open(badger.DefaultOptions(cfg.DatabasePath).WithReadOnly(true).WithLogger(nil))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		j := journal.New(journal.Config{DB: db})

		submissions, errChan := j.StreamAll()
		if c.Bool("in-flight") {
			submissions, errChan = j.StreamInFlight()
		}
		defer utils.ConsumeChannel(errChan)

		for s := range submissions {
			fmt.Println(string(s.Bytes()))
		}
		return <-errChan
	},
}

// Seed of the mock-backend command
type MockLedger struct {
	Tokens   []backend.Token  `yaml:"tokens"`
	Accounts []mock.Account   `yaml:"accounts"`
	Charges  []backend.Charge `yaml:"charges"`
}

var mockBackendCommand = &cli.Command{
	Name:  "mock-backend",
	Usage: "Serve an in memory ledger speaking the backend wire protocol",
	Flags: []cli.Flag{
		debugFlag(),
		&cli.StringFlag{
			Name:  "ledger",
			Usage: "YAML ledger seed",
			Value: "ledger.yaml",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Listen address",
			Value: "127.0.0.1:8081",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) (err error) {
		setGinMode(c.Bool("debug"))

		contents, err := os.ReadFile(c.String("ledger"))
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		var seed MockLedger
		err = yaml.Unmarshal(contents, &seed)
		if err != nil {
			return fmt.Errorf("failed to parse ledger: %w", err)
		}

		e := gin.Default()
		s := mock.Server{
			Mock: mock.New(mock.Config{
				Tokens:   seed.Tokens,
				Accounts: seed.Accounts,
				Charges:  seed.Charges,
			}),
			Base: e,
		}
		s.Register()

		log.Println("INFO|SERVING|LEDGER", c.String("listen"), len(seed.Accounts))
		return e.Run(c.String("listen"))
	},
}

var app = cli.Command{
	Name:  "scanpay",
	Usage: "Scan to pay transaction authorization",
	Commands: []*cli.Command{
		serveCommand,
		normalizeCommand,
		journalCommand,
		mockBackendCommand,
	},
}

func main() {
	err := app.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
