package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleStream pushes journaled snapshots as server-sent events. Each event id is the
// journal index, so a reconnecting browser resumes with Last-Event-ID.
func (s *Server) handleStream(c *gin.Context) {
	if s.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "snapshot journal not available"})
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	lastIndex := s.parseLastEventID(c.GetHeader("Last-Event-ID"), c.Query("last_event_id"))
	sendSnapshots := func() error {
		records, err := s.stream.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: snapshot\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		s.l.Error("snapshot stream initial load", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to load snapshots"})
		return
	}

	// tell the browser the journal is empty so it can leave the loading state
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
	}
	w.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			w.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.l.Warn("snapshot stream poll", zap.Error(err))
			}
		}
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.l.Warn("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}
