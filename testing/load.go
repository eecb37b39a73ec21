package testing

import (
	"sync"
	"testing"

	"github.com/zoobzio/farmz"
)

// LoadConfig configures concurrent load generation for stress testing.
// Provides standardized patterns for concurrent metric operations.
type LoadConfig struct {
	Setup      func(workerID int)       // Optional per-worker setup
	Operation  func(workerID, opID int) // Operation to execute
	Workers    int                      // Number of concurrent workers
	Operations int                      // Operations per worker
}

// GenerateLoad runs concurrent operations using the provided configuration.
// Eliminates WaitGroup boilerplate and standardizes stress testing patterns.
func GenerateLoad(_ *testing.T, config LoadConfig) {
	var wg sync.WaitGroup

	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		workerID := w

		go func() {
			defer wg.Done()

			if config.Setup != nil {
				config.Setup(workerID)
			}

			for op := 0; op < config.Operations; op++ {
				config.Operation(workerID, op)
			}
		}()
	}

	wg.Wait()
}

// WriterLoadConfig configures load where every worker owns a Writer.
type WriterLoadConfig struct {
	Operation  func(w *farmz.Writer, workerID, opID int)
	Workers    int
	Operations int
}

// GenerateWriterLoad runs config.Workers goroutines, each with its own
// Writer on g. Every Writer is closed when its goroutine finishes, so the
// call returns only after all contributions have been retired.
func GenerateWriterLoad(t *testing.T, g *farmz.Group, config WriterLoadConfig) {
	writers := make([]*farmz.Writer, config.Workers)
	GenerateLoad(t, LoadConfig{
		Workers:    config.Workers,
		Operations: config.Operations,
		Setup: func(workerID int) {
			writers[workerID] = g.Writer()
		},
		Operation: func(workerID, opID int) {
			config.Operation(writers[workerID], workerID, opID)
			if opID == config.Operations-1 {
				writers[workerID].Close()
			}
		},
	})
	for _, w := range writers {
		if w != nil {
			w.Close()
		}
	}
}
