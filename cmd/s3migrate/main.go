// Package main implements the command-line interface for the migration
// engine: run/resume (default), status, and reset subcommands, plus a
// --test smoke-test flag.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mahrens917/aws-sub001/config"
	"github.com/mahrens917/aws-sub001/orchestrator"
	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/report"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("s3migrate", flag.ExitOnError)

	localBasePath := fs.String("local-base-path", "", "local directory objects are synced into")
	stateDBPath := fs.String("state-db-path", "migration-state.db", "path to the state store file")
	region := fs.String("region", "", "AWS region (defaults to AWS_REGION env)")
	excludedBuckets := fs.String("excluded-buckets", "", "comma-separated bucket names to skip")
	glacierRestoreDays := fs.Int("glacier-restore-days", 90, "Glacier restore retention window in days")
	glacierRestoreTier := fs.String("glacier-restore-tier", "Standard", "Glacier restore tier (Standard|Bulk|Expedited)")
	maxWorkers := fs.Int("workers", 8, "maximum concurrent per-object downloads")
	downloadChunkBytes := fs.Int("download-chunk-bytes", 1<<20, "bytes per streamed download chunk")
	dryRun := fs.Bool("dry-run", false, "verify but never delete from the cloud")
	shutdownTimeout := fs.Duration("shutdown-timeout", 5*time.Minute, "graceful shutdown timeout")
	test := fs.Bool("test", false, "run an end-to-end smoke test instead of a real migration")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	subcommand := ""
	if args := fs.Args(); len(args) > 0 {
		subcommand = args[0]
	}

	cfg := config.DefaultConfig()
	cfg.LocalBasePath = *localBasePath
	cfg.StateDBPath = *stateDBPath
	cfg.Region = *region
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	cfg.GlacierRestoreDays = *glacierRestoreDays
	cfg.GlacierRestoreTier = *glacierRestoreTier
	cfg.MaxWorkers = *maxWorkers
	cfg.DownloadChunkBytes = *downloadChunkBytes
	cfg.DryRun = *dryRun
	cfg.ShutdownTimeout = *shutdownTimeout
	if *excludedBuckets != "" {
		cfg.ExcludedBuckets = strings.Split(*excludedBuckets, ",")
	}

	if subcommand == "reset" {
		return runReset(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := progress.CheckDriveAvailable(cfg.LocalBasePath); err != nil {
		return err
	}

	st, err := store.Open(cfg.StateDBPath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer st.Close()

	if subcommand == "status" {
		return orchestrator.PrintStatus(os.Stdout, st)
	}

	client, err := newClient(context.Background(), cfg, *test)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := progress.NewToken()
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	o := orchestrator.New(client, st, cfg, orchestrator.StdinConfirm(os.Stdin, os.Stdout))

	start := time.Now()
	if err := o.Run(ctx, token); err != nil {
		return fmt.Errorf("migration run failed: %w", err)
	}

	r, err := report.Generate(st, start, time.Now())
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Println(r.String())

	return nil
}

// newClient selects between the real AWS S3 client and the in-memory fake,
// honoring --test and (for CI, where no credentials are present) the
// S3MIGRATE_SMOKE_FAKE environment variable.
func newClient(ctx context.Context, cfg *config.Config, testMode bool) (s3api.Client, error) {
	if testMode || os.Getenv("S3MIGRATE_SMOKE_FAKE") == "1" {
		return newSmokeFakeClient(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3api.NewClient(s3.NewFromConfig(awsCfg)), nil
}

// newSmokeFakeClient seeds a small fixed object set so --test exercises the
// full pipeline without network access or cloud credentials.
func newSmokeFakeClient() *s3api.Fake {
	fake := s3api.NewFake()
	fake.AddBucket("smoke-test-bucket")
	fake.SeedObject("smoke-test-bucket", "hello.txt", []byte("hello, migration"), "")
	return fake
}

func runReset(cfg *config.Config) error {
	fmt.Printf("this will permanently erase all migration state recorded in %s. local files are not touched.\n", cfg.StateDBPath)
	fmt.Print("type 'yes' to proceed: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes") {
		fmt.Println("reset cancelled")
		return nil
	}

	st, err := store.Recreate(cfg.StateDBPath)
	if err != nil {
		return fmt.Errorf("recreate state store: %w", err)
	}
	defer st.Close()

	fmt.Println("state store reset")
	return nil
}
