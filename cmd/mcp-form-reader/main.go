package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/config"
	"github.com/a3tai/mcp-form-reader/internal/logging"
	"github.com/a3tai/mcp-form-reader/internal/mcp"
	"github.com/a3tai/mcp-form-reader/internal/service"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	// Check for version flag before parsing other flags
	if hasVersionFlag(os.Args[1:]) {
		printVersion(os.Stdout)
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run wires the service and MCP server and serves until ctx is done
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Debug("starting with configuration", zap.Stringer("config", cfg))

	formService, err := service.New(cfg, logger.Named("service"))
	if err != nil {
		return fmt.Errorf("failed to create form service: %w", err)
	}
	defer func() {
		if err := formService.Close(); err != nil {
			logger.Warn("failed to close form service", zap.Error(err))
		}
	}()

	server, err := mcp.NewServer(cfg, formService, logger.Named("mcp"))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	err = server.Run(ctx)
	if err != nil && ctx.Err() != nil {
		// shutdown by signal
		logger.Info("server stopped", zap.String("reason", ctx.Err().Error()))
		return nil
	}
	return err
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP Form Reader\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
