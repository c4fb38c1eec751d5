package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docindex/mcp-server/internal/config"
	"github.com/docindex/mcp-server/tools"
)

const (
	version     = "0.3.0"
	serverName  = "docindex-mcp-server"
	description = "MCP server for searching Documenter-generated documentation"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("%s version %s\n", serverName, version)
		os.Exit(0)
	}

	// Set up logging to stderr (MCP uses stdout for protocol)
	log.SetOutput(os.Stderr)
	log.Printf("%s v%s starting...", serverName, version)

	cfg, err := config.Load(os.Getenv("DOCINDEX_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if src := cfg.Source(); src != "" {
		log.Printf("✓ Configuration loaded from %s", src)
	}
	tools.Configure(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	server := createMCPServer()
	if err := tools.RegisterDocSearchTools(server); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}
	log.Printf("✓ Server ready and waiting for connections (%s transport)", cfg.Transport)

	defer func() {
		if err := tools.CloseDocSearch(); err != nil {
			log.Printf("Error closing doc search: %v", err)
		}
	}()

	if cfg.Transport == config.TransportHTTP {
		err = serveHTTP(ctx, server, cfg.HTTPAddr)
	} else {
		err = server.Run(ctx, &mcp.StdioTransport{})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Server error: %v", err)
	}
	log.Printf("Shutting down...")
}

// createMCPServer initializes the MCP server
func createMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: description + ". Use search_documentation to find sections, get_page to read a whole page.",
		},
	)

	log.Printf("Server initialized: %s v%s", serverName, version)
	return server
}

// serveHTTP serves MCP at /mcp and the health check at /health until ctx is done
func serveHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           tools.NewHTTPHandler(server, false),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
		return nil
	}
}
