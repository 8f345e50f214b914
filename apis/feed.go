package apis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/thiefmaster/eventsource"
	"github.com/thiefmaster/librelay/comm"
	"github.com/thiefmaster/librelay/logging"
)

const feedCommandTimeout = 5 * time.Second

// handleFeedEvent runs one event's data, a JSON command descriptor.
func handleFeedEvent(ctx context.Context, executor Executor, logger *slog.Logger, data string) {
	var desc comm.Descriptor
	if err := json.Unmarshal([]byte(data), &desc); err != nil {
		logger.Warn("could not unmarshal feed event", "data", data, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, feedCommandTimeout)
	defer cancel()
	res, err := executor.DoDescriptor(ctx, desc)
	if err != nil {
		logger.Warn("feed command rejected", "action", desc.Action, "content", desc.Content, "error", err)
		return
	}
	if !res.OK() {
		logger.Warn("feed command failed", "command", res.Command, "seq", res.Seq, "error", res.Err)
		return
	}
	logger.Info("feed command done", "command", res.Command, "seq", res.Seq)
}

func subscribeFeed(ctx context.Context, credentials HTTPCredentials, executor Executor, logger *slog.Logger) {
	for {
		req, err := newRequest("GET", "/commands", nil, credentials)
		if err != nil {
			logger.Error("invalid feed url", "url", credentials.BaseURL, "error", err)
			return
		}

		stream, err := eventsource.SubscribeWithRequest("", req)
		if err != nil {
			logger.Warn("feed subscribe failed", "url", credentials.BaseURL, "error", err)
			select {
			case <-time.After(1 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		stream.InitialRetryDelay = 500 * time.Millisecond
		stream.MaxRetryDelay = 5 * time.Second
		stream.Logger = logging.StdLogger(logger, slog.LevelWarn)
		logger.Info("subscribed to command feed", "url", credentials.BaseURL)
		for {
			select {
			case event := <-stream.Events:
				handleFeedEvent(ctx, executor, logger, event.Data())
			case err := <-stream.Errors:
				logger.Warn("command feed stream error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}
}

// SubscribeFeed executes the commands published on the server-sent event stream at
// <url>/commands until ctx ends.
func SubscribeFeed(ctx context.Context, credentials HTTPCredentials, executor Executor, logger *slog.Logger) {
	go subscribeFeed(ctx, credentials, executor, logger)
}
