// Command hudlink-bridge exposes the glasses over a local HTTP API.
//
// It owns one BLE session and translates JSON requests into protocol
// command sequences, so non-Go clients (shell scripts, editors, home
// automation) can drive the display without speaking the wire format.
//
// Usage:
//
//	hudlink-bridge [flags]
//
// Flags:
//
//	-listen string     HTTP listen address (default "127.0.0.1:8080")
//	-device string     Advertised name prefix to scan for (default "G2")
//	-arm string        Arm name substring to prefer (default "_L_")
//	-simulate          Use the in-memory device simulator instead of BLE
//	-protocol-log string  Write a binary protocol log to this file
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start the bridge and connect
//	hudlink-bridge
//	curl -X POST localhost:8080/api/v1/connect
//
//	# Display a message
//	curl -X POST localhost:8080/api/v1/text -d '{"text":"hello"}'
//
//	# Develop against the simulator with a protocol log
//	hudlink-bridge -simulate -protocol-log bridge.hlog
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	hlog "github.com/hudlink-protocol/hudlink-go/pkg/log"
	"github.com/hudlink-protocol/hudlink-go/pkg/version"
)

// Version information - set at build time via ldflags
var (
	Version   = version.Current
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	listenAddr  = flag.String("listen", "127.0.0.1:8080", "HTTP listen address")
	devicePfx   = flag.String("device", "G2", "Advertised name prefix to scan for")
	armPref     = flag.String("arm", "_L_", "Arm name substring to prefer")
	simulate    = flag.Bool("simulate", false, "Use the in-memory device simulator instead of BLE")
	protocolLog = flag.String("protocol-log", "", "Write a binary protocol log to this file")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("hudlink-bridge %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	logger, closeLog, err := buildLogger(*logLevel, *protocolLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	bridge := NewBridge(BridgeConfig{
		DevicePrefix: *devicePfx,
		PreferredArm: *armPref,
		Simulate:     *simulate,
		Logger:       logger,
	})

	srv := NewServer(ServerConfig{
		Addr:    *listenAddr,
		Version: Version,
	}, bridge)

	slog.Info("starting hudlink-bridge", "addr", *listenAddr, "simulate", *simulate)
	if *protocolLog != "" {
		slog.Info("protocol log enabled", "path", *protocolLog)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			srv.Close()
			return 1
		}
	}

	if err := srv.Close(); err != nil {
		slog.Warn("shutdown error", "err", err)
	}
	return 0
}

// buildLogger assembles the protocol logger: structured text on stderr,
// plus the binary file log when requested.
func buildLogger(level, path string) (hlog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(textHandler))

	loggers := []hlog.Logger{hlog.NewSlogAdapter(slog.Default())}

	closeLog := func() {}
	if path != "" {
		fl, err := hlog.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeLog = func() { fl.Close() }
	}

	if len(loggers) == 1 {
		return loggers[0], closeLog, nil
	}
	return hlog.NewMultiLogger(loggers...), closeLog, nil
}
