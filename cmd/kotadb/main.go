package main

import (
	"context"
	"os"
	"sync"
	"time"

	"kotadb/internal/logging"
	"kotadb/internal/update"
)

func main() {
	logger := logging.NewLogger(logging.Config{
		Format: logging.FormatHuman,
		Level:  logging.LevelInfo,
		Output: os.Stderr,
	})

	// Update check with deferred notification pattern: show the cached
	// notification immediately, then refresh the cache in the background
	// for next run. Skipped for mcp/serve so update chatter never reaches
	// a stdio or HTTP client expecting a clean protocol stream.
	var refreshWg sync.WaitGroup
	if !isProtocolCommand() {
		checker := update.NewChecker()
		if info := checker.CheckCached(); info != nil {
			_, _ = os.Stderr.WriteString(info.FormatUpdateMessage())
		}
		refreshWg.Add(1)
		go func() {
			defer refreshWg.Done()
			checker.RefreshCache(context.Background())
		}()
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command execution failed", map[string]interface{}{"error": err.Error()})
		os.Exit(exitInternal)
	}

	waitWithTimeout(&refreshWg, 500*time.Millisecond)
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// isProtocolCommand reports whether the invoked command speaks a wire
// protocol on stdout/stdin that an update notice would corrupt.
func isProtocolCommand() bool {
	if len(os.Args) < 2 {
		return false
	}
	switch os.Args[1] {
	case "mcp", "serve":
		return true
	default:
		return false
	}
}
