package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

const (
	defaultStreamGrace   = 500 * time.Millisecond
	defaultStreamPoll    = 500 * time.Millisecond
	defaultStreamTimeout = 60 * time.Second
)

// StreamConfig controls the cooperative polling loop behind the SSE
// endpoint. The store has no change notification, so the stream re-reads
// the record at a fixed interval until it turns terminal or the ceiling
// expires.
type StreamConfig struct {
	Grace        time.Duration
	PollInterval time.Duration
	Timeout      time.Duration
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.Grace <= 0 {
		c.Grace = defaultStreamGrace
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultStreamPoll
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultStreamTimeout
	}
	return c
}

func (api *API) StreamTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if taskID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "task_id is required")
		return
	}

	ctx := r.Context()
	record, err := api.tasks.GetTask(ctx, taskID)
	if err != nil {
		if err == taskstore.ErrNotFound {
			writeError(w, r, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load task")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(event string, rec domain.TaskRecord) {
		payload, marshalErr := json.Marshal(taskResponse(taskID, rec))
		if marshalErr != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
	}

	if record.Status.Terminal() {
		writeEvent("update", record)
		return
	}

	deadline := time.NewTimer(api.stream.Timeout)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
		return
	case <-deadline.C:
		writeEvent("timeout", record)
		return
	case <-time.After(api.stream.Grace):
	}

	ticker := time.NewTicker(api.stream.PollInterval)
	defer ticker.Stop()

	for {
		record, err = api.tasks.GetTask(ctx, taskID)
		if err != nil {
			// Expired mid-stream: treat as a timeout rather than break the wire.
			writeEvent("timeout", domain.TaskRecord{Status: domain.TaskStatusFailed, Error: "task record no longer available"})
			return
		}

		writeEvent("update", record)
		if record.Status.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			writeEvent("timeout", record)
			return
		case <-ticker.C:
		}
	}
}
