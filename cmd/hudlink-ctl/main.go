// Command hudlink-ctl is an interactive console for the glasses.
//
// It drives the protocol session directly from a prompt: pair, show
// transcription text, feed the teleprompter, push navigation updates,
// or send raw payloads while watching the wire in the protocol log.
//
// Usage:
//
//	hudlink-ctl [flags]
//
// Flags:
//
//	-device string        Advertised name prefix to scan for (default "G2")
//	-arm string           Arm name substring to prefer (default "_L_")
//	-simulate             Use the in-memory device simulator instead of BLE
//	-protocol-log string  Write a binary protocol log to this file
//	-log-level string     Log level: debug, info, warn, error (default "warn")
//
// Examples:
//
//	# Talk to real glasses
//	hudlink-ctl
//	hudlink> connect
//	hudlink> auth
//	hudlink> text hello from the console
//
//	# Exercise the protocol against the simulator, logging every frame
//	hudlink-ctl -simulate -protocol-log session.hlog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hudlink-protocol/hudlink-go/cmd/hudlink-ctl/interactive"
	hlog "github.com/hudlink-protocol/hudlink-go/pkg/log"
)

var (
	devicePfx   = flag.String("device", "G2", "Advertised name prefix to scan for")
	armPref     = flag.String("arm", "_L_", "Arm name substring to prefer")
	simulate    = flag.Bool("simulate", false, "Use the in-memory device simulator instead of BLE")
	protocolLog = flag.String("protocol-log", "", "Write a binary protocol log to this file")
	logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", *logLevel)
		return 1
	}

	var fileLog *hlog.FileLogger
	if *protocolLog != "" {
		fl, err := hlog.NewFileLogger(*protocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening protocol log: %v\n", err)
			return 1
		}
		fileLog = fl
	}

	opts := interactive.Options{
		DevicePrefix: *devicePfx,
		PreferredArm: *armPref,
		Simulate:     *simulate,
		LogLevel:     lvl,
	}
	if fileLog != nil {
		opts.ProtocolLog = fileLog
	}

	console, err := interactive.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	console.Close()
	if fileLog != nil {
		fileLog.Close()
	}
	return 0
}
