package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thiefmaster/librelay/apis"
	"github.com/thiefmaster/librelay/comm"
	"github.com/thiefmaster/librelay/logging"
)

const queueSize = 8

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <action>...\n\nActions:", os.Args[0])
	for _, s := range comm.Symbols() {
		fmt.Fprintf(flag.CommandLine.Output(), " %s", actionName(s))
	}
	fmt.Fprint(flag.CommandLine.Output(), "\n\nFlags:\n")
	flag.PrintDefaults()
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file")
	device := flag.String("device", comm.DefaultDevice(), "serial device of the relay board")
	baud := flag.Int("baud", comm.DefaultBaud, "baud rate")
	readTimeout := flag.Duration("read-timeout", 0, "timeout for each response read, 0 blocks")
	logLevel := flag.String("log-level", "info", "log level: error, warn, info or debug")
	serve := flag.Bool("serve", false, "keep running and accept commands from the remote and the feed")
	flag.Usage = usage
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		if err := cfg.load(*configPath); err != nil {
			log.Printf("loading config file %s: %v\n", *configPath, err)
			return 1
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Serial.Device = *device
		case "baud":
			cfg.Serial.Baud = *baud
		case "read-timeout":
			cfg.Serial.ReadTimeout = *readTimeout
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.validate(); err != nil {
		log.Printf("invalid configuration: %v\n", err)
		return 1
	}

	cmds, err := parseActions(flag.Args())
	if err != nil {
		log.Printf("%v\n", err)
		flag.Usage()
		return 2
	}
	if len(cmds) == 0 && !*serve {
		flag.Usage()
		return 2
	}

	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		log.Printf("%v\n", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := comm.NewDispatcher(cfg.portConfig(), comm.WithLogger(logger), comm.WithSettleDelay(cfg.Serial.SettleDelay))
	if !d.Open(cfg.Serial.Device, cfg.Serial.Baud) {
		return 1
	}
	defer d.Stop()

	in := make(chan comm.Command, queueSize)
	out := make(chan comm.Result, queueSize)
	d.AttachInputQueue(in)
	d.AttachOutputQueue(out)
	if err := d.Start(); err != nil {
		logger.Error("could not start dispatcher", "error", err)
		return 1
	}
	client := comm.NewClient(in, out)

	if err := runActions(ctx, client, cmds, os.Stdout); err != nil {
		logger.Error("action failed", "error", err)
		return 1
	}
	if !*serve {
		return 0
	}
	return serveRemote(ctx, cfg, client, logger)
}

func serveRemote(ctx context.Context, cfg appConfig, client *comm.Client, logger *slog.Logger) int {
	if cfg.Remote.Addr == "" && cfg.Feed.BaseURL == "" {
		logger.Warn("serving without remote.addr or feed.url, only signals will be handled")
	}
	var errChan chan error
	if cfg.Remote.Addr != "" {
		errChan = make(chan error, 1)
		go func() {
			errChan <- apis.RunRemote(ctx, cfg.Remote.Addr, apis.NewRemote(client, logger))
		}()
	}
	if cfg.Feed.BaseURL != "" {
		apis.SubscribeFeed(ctx, cfg.Feed, client, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if errChan != nil {
			select {
			case <-errChan:
			case <-time.After(2 * time.Second):
			}
		}
		return 0
	case err := <-errChan:
		if err != nil {
			logger.Error("remote server exited", "error", err)
			return 1
		}
		return 0
	}
}

func main() {
	os.Exit(run())
}
