// Package debug provides runtime monitoring and diagnostics.
package debug

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/drake/vty/network"
)

// Enabled returns true if debug mode is active (VTY_DEBUG=1).
func Enabled() bool {
	return os.Getenv("VTY_DEBUG") == "1"
}

// Monitor periodically logs server statistics when debug mode is
// enabled.
type Monitor struct {
	server   *network.Server
	interval time.Duration
	ctx      context.Context
	logger   *log.Logger
}

// NewMonitor creates a new monitor for the given server.
// If debug mode is not enabled, returns nil.
func NewMonitor(ctx context.Context, srv *network.Server) *Monitor {
	if !Enabled() {
		return nil
	}

	return &Monitor{
		server:   srv,
		interval: 5 * time.Second,
		ctx:      ctx,
		logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Start begins the monitoring loop in a goroutine.
func (m *Monitor) Start() {
	if m == nil {
		return
	}
	go m.run()
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Println("[DEBUG] Monitor started")

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Println("[DEBUG] Monitor stopped")
			return
		case <-ticker.C:
			m.logStats()
		}
	}
}

func (m *Monitor) logStats() {
	s := m.server.Stats()

	lastRead := "never"
	if !s.LastReadTime.IsZero() {
		lastRead = fmt.Sprintf("%v ago", time.Since(s.LastReadTime).Round(time.Second))
	}

	m.logger.Printf("[DEBUG] conns=%d read=%d written=%d keys=%d lastRead=%s",
		s.Conns,
		s.BytesRead,
		s.BytesWritten,
		s.KeysDecoded,
		lastRead,
	)
}
