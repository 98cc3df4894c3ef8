package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string             `json:"version"`
	Type          string             `json:"type"`
	Timestamp     time.Time          `json:"timestamp"`
	SessionState  model.SessionState `json:"session_state"`
	SnapshotCount int                `json:"snapshot_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes a header line followed by one "stats" line per
// snapshot, oldest first.
func ExportJSONL(w io.Writer, state model.SessionState, history []stats.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       "1",
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		SessionState:  state,
		SnapshotCount: len(history),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for i, snap := range history {
		if err := enc.Encode(record{Type: "stats", Data: snap}); err != nil {
			return fmt.Errorf("encode snapshot %d: %w", i, err)
		}
	}
	return nil
}
