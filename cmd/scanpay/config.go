package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"anarchy.ttfm/scanpay/backend/remote"
	"anarchy.ttfm/scanpay/failures"
	"anarchy.ttfm/scanpay/fees"
	"anarchy.ttfm/scanpay/internal/backendrpc/rpc"
	"anarchy.ttfm/scanpay/journal"
	"anarchy.ttfm/scanpay/metrics"
	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/scanner/push"
	"anarchy.ttfm/scanpay/workflow"
	"github.com/dgraph-io/badger/v4"
	"github.com/gabstv/httpdigest"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultSubmitTimeout = time.Minute

// Yaml configuration reference
type (
	Backend struct {
		Url      string            `yaml:"url"`
		Username *string           `yaml:"username,omitempty"`
		Password *string           `yaml:"password,omitempty"`
		Headers  map[string]string `yaml:"headers,omitempty"`
	}
	Config struct {
		ListenAddress   string           `yaml:"listen-address"`
		DatabasePath    string           `yaml:"database-path"`
		SubmitTimeout   time.Duration    `yaml:"submit-timeout"`
		ClassifierTable string           `yaml:"classifier-table,omitempty"`
		Devices         []scanner.Device `yaml:"devices"`
		Backend         Backend          `yaml:"backend"`
	}
)

// Runtime objects built from a Config
type Service struct {
	DB         *badger.DB
	Journal    *journal.Journal
	Scanner    *push.Scanner
	Workflow   *workflow.Workflow
	Classifier *failures.Classifier
	Registry   *prometheus.Registry
}

func (c *Config) classifier() (classifier *failures.Classifier, err error) {
	if c.ClassifierTable == "" {
		return failures.Default(), nil
	}

	contents, err := os.ReadFile(c.ClassifierTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier table: %w", err)
	}
	table, err := failures.LoadTable(contents)
	if err != nil {
		return nil, err
	}
	return failures.New(table)
}

func (c *Config) Compile() (svc Service, err error) {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}

	svc.Classifier, err = c.classifier()
	if err != nil {
		return svc, fmt.Errorf("failed to load classifier: %w", err)
	}

	var httpClient http.Client
	if c.Backend.Username != nil && c.Backend.Password != nil {
		httpClient.Transport = httpdigest.New(*c.Backend.Username, *c.Backend.Password)
	}
	ledger := remote.New(remote.Config{
		Client: rpc.New(rpc.Config{
			Url:           c.Backend.Url,
			CustomHeaders: c.Backend.Headers,
			Client:        &httpClient,
		}),
	})

	svc.Registry = prometheus.NewRegistry()
	m := metrics.New(svc.Registry)

	opt := badger.DefaultOptions(c.DatabasePath)
	svc.DB, err = badger.Open(opt)
	if err != nil {
		return svc, fmt.Errorf("failed to open database: %w", err)
	}
	svc.Journal = journal.New(journal.Config{DB: svc.DB})

	svc.Scanner = push.New(push.Config{Devices: c.Devices})
	svc.Workflow = workflow.New(workflow.Config{
		Scanner:       scanner.NewSession(svc.Scanner),
		Submitter:     ledger,
		Fees:          fees.New(fees.Config{Lister: ledger, Metrics: m}),
		Classifier:    svc.Classifier,
		Journal:       svc.Journal,
		Metrics:       m,
		SubmitTimeout: c.SubmitTimeout,
	})
	return svc, nil
}
