package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/xmlbank/internal/api"
	"github.com/rongwang/xmlbank/internal/config"
	"github.com/rongwang/xmlbank/internal/ledger"
	"github.com/rongwang/xmlbank/internal/repository"
	"github.com/rongwang/xmlbank/internal/service"
	"github.com/rongwang/xmlbank/internal/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bankdemo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print responses as JSON")
	verbose := fs.Bool("v", false, "log informational messages")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger := utils.NewLoggerTo(io.Discard, stderr)
	if *verbose || !cfg.Log.Quiet {
		logger = utils.NewLoggerTo(stderr, stderr)
	}

	// Create repository
	repo, closeRepo, err := setupRepository(cfg)
	if err != nil {
		logger.Error("Failed to set up storage: %v", err)
		return 1
	}
	defer closeRepo()

	// Create store and service
	opts := []ledger.Option{
		ledger.WithDataKey(cfg.Storage.DataKey),
		ledger.WithLogger(logger),
		ledger.WithReseedOnCorrupt(cfg.Ledger.CorruptPolicy == config.CorruptReseed),
	}
	store := ledger.NewStore(repo, opts...)
	svc := service.NewDefaultService(store, repo, cfg.Storage.SessionKey, cfg.Ledger.RecentLimit, logger)

	if fs.NArg() == 0 || fs.Arg(0) == "help" {
		printUsage(stdout)
		return 0
	}
	cmd, ok := findCommand(fs.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		printUsage(stderr)
		return 1
	}

	// Set up Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if *verbose {
		router.Use(gin.LoggerWithWriter(stderr))
	}
	api.NewHandler(svc, logger).SetupRoutes(router)

	status, err := execute(context.Background(), router, cmd, fs.Args()[1:], stdout, *asJSON)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if status >= http.StatusBadRequest {
		return 1
	}
	return 0
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: bankdemo [-json] [-v] <command> [flags]")
	for _, cmd := range commands {
		line := "  " + cmd.name
		if cmd.usage != "" {
			line += " " + cmd.usage
		}
		fmt.Fprintln(out, line)
	}
}

// setupRepository opens the storage backend named by the configured driver
func setupRepository(cfg *config.Config) (repository.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return repository.NewMemoryRepository(), func() {}, nil
	case config.DriverFile:
		repo, err := repository.NewFileRepository(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	default:
		// Set up database connection
		db, err := config.SetupDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLRepository(db), func() { db.Close() }, nil
	}
}
