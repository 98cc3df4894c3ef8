package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/scanline/internal/client"
	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/session"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func onOff(b bool) string {
	if b {
		return palette.OK("on")
	}
	return palette.Muted("off")
}

func printStatus(st *session.Status) {
	fmt.Printf("State:       %s\n", palette.State(st.State.String()))
	if st.SessionID != "" {
		fmt.Printf("Session:     %s\n", st.SessionID)
	}
	if !st.StartedAt.IsZero() {
		fmt.Printf("Started:     %s (%s ago)\n", st.StartedAt.Format("2006-01-02 15:04:05"), time.Since(st.StartedAt).Round(time.Second))
	}
	fmt.Printf("Torch:       %s (requested %s)\n", onOff(st.TorchOn), onOff(st.TorchRequested))
	if st.State == model.SessionActive {
		fmt.Printf("Flash unit:  %v\n", st.HasFlash)
		fmt.Printf("Decoding:    %v\n", st.GateBusy)
	}
}

func printTorch(ts *client.TorchState) {
	note := ""
	if ts.Enabled && !ts.TorchOn {
		note = palette.Muted(" (applies when a session with a flash is active)")
	}
	fmt.Printf("Torch intent %s, torch %s%s\n", onOff(ts.Enabled), onOff(ts.TorchOn), note)
}

func printStats(s *stats.Snapshot) {
	fmt.Println("Pipeline Stats")
	fmt.Printf("  Frames delivered: %d\n", s.FramesDelivered)
	fmt.Printf("  Frames decoded:   %d\n", s.FramesDecoded)
	fmt.Printf("  In flight:        %d\n", s.InFlight)
	fmt.Printf("  Dropped:          %d (busy %d, closed %d, empty %d)\n", s.Dropped(), s.DroppedBusy, s.DroppedClosed, s.DroppedEmpty)
	fmt.Printf("  Decode failures:  %d\n", s.DecodeFailures)
	fmt.Printf("  Empty results:    %d\n", s.EmptyResults)
	fmt.Printf("  Scans accepted:   %d\n", s.ScansAccepted)
	fmt.Printf("  Duplicates:       %d\n", s.ScansDuplicate)
	fmt.Printf("  Latency (ms):     last %.1f, avg %.1f, max %.1f\n", s.LastLatencyMS, s.AvgLatencyMS, s.MaxLatencyMS)
	if !s.LastScanAt.IsZero() {
		fmt.Printf("  Last scan:        %s\n", s.LastScanAt.Format("15:04:05"))
	}
	if s.FramesDelivered > 0 && s.FramesDecoded == 0 && s.InFlight > 0 {
		fmt.Println(palette.Warn("  Decoder appears stuck: frames arrive but none finish."))
	}
}
