package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// isJobTerminal returns true if the job status is a terminal state
func isJobTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// openEventStream switches the response to text/event-stream. It fails before
// any header is written when the writer cannot flush.
func openEventStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

// streamScanEvents sends a "status" event with the job snapshot, then relays
// started, photos_counted, progress and the final event until the scan ends or
// the client goes away. A scan that has already ended gets the snapshot only.
func streamScanEvents(w http.ResponseWriter, r *http.Request, job *ScanJob) {
	flusher, ok := openEventStream(w)
	if !ok {
		return
	}

	// Listen before the snapshot so no event between the two is lost.
	events := job.AddListener()
	defer job.RemoveListener(events)

	writeEvent(w, flusher, "status", job.Snapshot())
	if isJobTerminal(job.GetStatus()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, flusher, event.Type, event)
			if isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
