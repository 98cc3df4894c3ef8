package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/scanline/internal/client"
	"github.com/alfredjeanlab/scanline/internal/events"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream scanner diagnostics",
	Long:    "Stream session, torch, scan and stats events. Uses NATS when --nats or SCANLINE_NATS_URL is set, otherwise the daemon's SSE stream. Decoded values are never part of the stream.",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")
		natsURL, _ := cmd.Flags().GetString("nats")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, topics)
		}
		return scanClient.StreamEvents(ctx, topics, func(e client.Event) error {
			printEvent(e.Topic, e.Data)
			return nil
		})
	},
}

// watchNATS subscribes to every published topic matching the filters.
func watchNATS(ctx context.Context, natsURL string, patterns []string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	topics := events.MatchingTopics(patterns)
	if len(topics) == 0 {
		return fmt.Errorf("no published topics match %v", patterns)
	}

	// Serialise output from the per-topic goroutines.
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					mu.Lock()
					printEvent(msg.Topic, msg.Data)
					mu.Unlock()
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	if n := sub.Dropped(); n > 0 {
		slog.Warn("watch: messages dropped while output was behind", "count", n)
	}
	return nil
}

func printEvent(topic string, data []byte) {
	if jsonOutput {
		line, err := json.Marshal(struct {
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}{topic, data})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			return
		}
		fmt.Println(string(line))
		return
	}
	fmt.Printf("%s %s %s\n", palette.Muted(time.Now().Format("15:04:05")), palette.Accent(topic), data)
}

func init() {
	watchCmd.Flags().StringSlice("topic", nil, "topic patterns to show (e.g. scan.session.*); default all")
	watchCmd.Flags().String("nats", os.Getenv("SCANLINE_NATS_URL"), "NATS URL to subscribe to instead of the daemon stream")
}
