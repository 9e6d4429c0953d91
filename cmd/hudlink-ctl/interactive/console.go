// Package interactive provides the interactive command-line interface
// for hudlink-ctl.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/hudlink-protocol/hudlink-go/internal/simulator"
	"github.com/hudlink-protocol/hudlink-go/pkg/command"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/log"
	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/session"
	"github.com/hudlink-protocol/hudlink-go/pkg/transport"
)

// Options configures the console.
type Options struct {
	// DevicePrefix selects glasses by advertised name.
	DevicePrefix string

	// PreferredArm selects which arm to connect to when both advertise.
	PreferredArm string

	// Simulate replaces the BLE link with the in-memory simulator.
	Simulate bool

	// LogLevel filters the structured log echoed to the terminal.
	LogLevel slog.Level

	// ProtocolLog additionally receives every protocol event, e.g. a
	// log.FileLogger. Nil disables it.
	ProtocolLog log.Logger
}

// Console handles interactive mode for hudlink-ctl. It owns the
// session so protocol log output can be routed through readline,
// which keeps it from clobbering the prompt.
type Console struct {
	opts   Options
	sess   *session.Session
	logger log.Logger
	rl     *readline.Instance

	mu        sync.Mutex
	tr        transport.Transport
	connected bool
	showNotif bool
}

// New creates the interactive console and its session.
func New(opts Options) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hudlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	slogger := slog.New(slog.NewTextHandler(rl.Stdout(), &slog.HandlerOptions{Level: opts.LogLevel}))
	slog.SetDefault(slogger)

	var logger log.Logger = log.NewSlogAdapter(slogger)
	if opts.ProtocolLog != nil {
		logger = log.NewMultiLogger(logger, opts.ProtocolLog)
	}

	c := &Console{
		opts:   opts,
		sess:   session.New(session.Config{Logger: logger}),
		logger: logger,
		rl:     rl,
	}
	go c.pumpNotifications()
	return c, nil
}

// Close tears down the session and its transport.
func (c *Console) Close() error {
	return c.sess.Close()
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "connect":
			c.cmdConnect(ctx)

		case "disconnect":
			c.cmdDisconnect()

		case "auth":
			c.cmdAuth(ctx)

		case "text", "t":
			c.cmdText(ctx, input)

		case "prompter", "p":
			c.cmdPrompter(ctx, input)

		case "nav", "n":
			c.cmdNav(ctx, args)

		case "raw":
			c.cmdRaw(ctx, args)

		case "seq":
			c.cmdSeq(ctx, args)

		case "notify":
			c.cmdNotify()

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
HUDLink Commands:
  Link:
    connect               - Scan for the glasses and bring the link up
    auth                  - Run the pairing handshake (after connect)
    disconnect            - Tear the link down
    status                - Show link status

  Display:
    text <message>        - Show a transcription message
    prompter <title> -- <body>  - Push paged text to the teleprompter
    nav start|stop        - Enter/exit navigation mode
    nav update <dir> <distance> <road...>  - Push a turn instruction

  Low level:
    raw <svc> <hex> [ack] - Send a raw payload (e.g. raw 0x0B-20 0805 ack)
    seq <file.yaml>       - Run a sequence file
    notify                - Toggle printing of unsolicited messages

  General:
    help                  - Show this help
    quit                  - Exit`)
}

// cmdConnect brings the link up.
func (c *Console) cmdConnect(ctx context.Context) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		fmt.Fprintln(c.rl.Stdout(), "Already connected")
		return
	}
	c.mu.Unlock()

	handler := &linkHandler{
		sess: c.sess,
		lost: func(err error) {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if err != nil {
				fmt.Fprintf(c.rl.Stdout(), "\nLink lost: %v\n", err)
				c.rl.Refresh()
			}
		},
	}

	var tr transport.Transport
	if c.opts.Simulate {
		sim := simulator.New(simulator.Config{Duplicate: true})
		for _, svc := range []frame.Service{
			command.System, command.Conversate, command.Teleprompter,
			command.DisplayConfig, command.Navigation, command.Dashboard,
			command.Widget,
		} {
			sim.AckService(svc)
		}
		c.sess.Bind(sim)
		sim.Attach(handler)
		tr = sim
		fmt.Fprintln(c.rl.Stdout(), "Connected to simulator")
	} else {
		fmt.Fprintf(c.rl.Stdout(), "Scanning for %q...\n", c.opts.DevicePrefix)
		ble := transport.NewBLECentral(handler, transport.BLEConfig{
			NamePrefix:   c.opts.DevicePrefix,
			PreferredArm: c.opts.PreferredArm,
			Logger:       c.logger,
			ConnectionID: c.sess.ID(),
		})
		c.sess.Bind(ble)

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := ble.Connect(connectCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
			return
		}
		tr = ble
		fmt.Fprintln(c.rl.Stdout(), "Connected (run 'auth' to pair)")
	}

	c.mu.Lock()
	c.tr = tr
	c.connected = true
	c.mu.Unlock()
}

// cmdDisconnect tears the link down.
func (c *Console) cmdDisconnect() {
	c.mu.Lock()
	tr := c.tr
	c.tr = nil
	c.connected = false
	c.mu.Unlock()

	if tr == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	if err := tr.Close(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disconnect error: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

// cmdAuth runs the pairing handshake.
func (c *Console) cmdAuth(ctx context.Context) {
	fmt.Fprintln(c.rl.Stdout(), "Running pairing handshake...")
	if err := command.Authenticate(ctx, c.sess, nil); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Handshake failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Paired")
}

// cmdText shows a transcription message. The whole rest of the line is
// the message.
func (c *Console) cmdText(ctx context.Context, input string) {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(input, "text"), "t"))
	if text == "" {
		fmt.Fprintln(c.rl.Stdout(), "Usage: text <message>")
		return
	}

	summary, err := c.sess.Run(ctx, command.TextSequence(text))
	c.printSummary(summary, err)
}

// cmdPrompter pushes paged text: "prompter <title> -- <body>".
func (c *Console) cmdPrompter(ctx context.Context, input string) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(input, "prompter"), "p"))
	title, body, found := strings.Cut(rest, "--")
	if !found || strings.TrimSpace(body) == "" {
		fmt.Fprintln(c.rl.Stdout(), "Usage: prompter <title> -- <body>")
		return
	}

	summary, err := c.sess.Run(ctx, command.TeleprompterSequence(
		strings.TrimSpace(title), strings.TrimSpace(body)))
	c.printSummary(summary, err)
}

// cmdNav drives the navigation HUD.
func (c *Console) cmdNav(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: nav start|stop|update <dir> <distance> <road...>")
		return
	}

	switch args[0] {
	case "start":
		summary, err := c.sess.Run(ctx, command.NavStartSequence())
		c.printSummary(summary, err)

	case "stop":
		summary, err := c.sess.Run(ctx, command.NavStopSequence())
		c.printSummary(summary, err)

	case "update":
		if len(args) < 3 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: nav update <dir> <distance> [road...]")
			return
		}
		var dir uint64
		if _, err := fmt.Sscanf(args[1], "%d", &dir); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid direction: %v\n", err)
			return
		}
		info := command.BasicInfo{
			Direction: dir,
			Distance:  args[2],
			Road:      strings.Join(args[3:], " "),
		}
		summary, err := c.sess.Run(ctx, command.NavUpdateSequence(info))
		c.printSummary(summary, err)

	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown nav command: %s\n", args[0])
	}
}

// cmdRaw sends a raw payload: "raw <svc> <hex> [ack]".
func (c *Console) cmdRaw(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: raw <svc> <hex> [ack]")
		fmt.Fprintln(c.rl.Stdout(), "  Example: raw 0x0B-20 08051014 ack")
		return
	}

	svc, err := frame.ParseService(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid service: %v\n", err)
		return
	}
	payload, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid hex: %v\n", err)
		return
	}

	build := func(uint32) []byte { return payload }

	if len(args) >= 3 && args[2] == "ack" {
		id, resp, err := c.sess.Submit(ctx, svc, build, 0)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Request %#x failed: %v\n", id, err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Response to %#x: %s\n", id, hex.EncodeToString(resp.Body))
		return
	}

	id, err := c.sess.Send(svc, build)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Sent %#x\n", id)
}

// cmdSeq runs a sequence file.
func (c *Console) cmdSeq(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: seq <file.yaml>")
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	seq, err := sequence.Load(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid sequence file: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Running %q (%d steps)...\n", seq.Name, len(seq.Steps))
	summary, err := c.sess.Run(ctx, seq)
	c.printSummary(summary, err)
}

// cmdNotify toggles printing of unsolicited messages.
func (c *Console) cmdNotify() {
	c.mu.Lock()
	c.showNotif = !c.showNotif
	on := c.showNotif
	c.mu.Unlock()

	if on {
		fmt.Fprintln(c.rl.Stdout(), "Notification display on")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Notification display off")
	}
}

// cmdStatus shows the link status.
func (c *Console) cmdStatus() {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	status := "disconnected"
	if connected {
		status = "connected"
	}

	fmt.Fprintln(c.rl.Stdout(), "\nLink Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Session:  %s\n", c.sess.ID())
	fmt.Fprintf(c.rl.Stdout(), "  Link:     %s\n", status)
	if c.opts.Simulate {
		fmt.Fprintf(c.rl.Stdout(), "  Mode:     simulator\n")
	} else {
		fmt.Fprintf(c.rl.Stdout(), "  Device:   %s (arm %s)\n", c.opts.DevicePrefix, c.opts.PreferredArm)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// printSummary reports a sequence run outcome.
func (c *Console) printSummary(summary *sequence.Summary, err error) {
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed: %v\n", err)
		return
	}
	if n := summary.SoftFailures(); n > 0 {
		fmt.Fprintf(c.rl.Stdout(), "Completed with %d missed ack(s) (%d steps)\n", n, len(summary.Results))
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "OK (%d steps)\n", len(summary.Results))
}

// pumpNotifications prints unsolicited messages when enabled.
func (c *Console) pumpNotifications() {
	for msg := range c.sess.Notifications() {
		c.mu.Lock()
		show := c.showNotif
		c.mu.Unlock()
		if !show {
			continue
		}

		line := fmt.Sprintf("\n[%s] %s", time.Now().Format("15:04:05"), msg.Service)
		if cmd, ok := msg.Command(); ok {
			line += fmt.Sprintf(" cmd=%d", cmd)
		}
		if id, ok := msg.MessageID(); ok {
			line += fmt.Sprintf(" id=%#x", id)
		}
		fmt.Fprintf(c.rl.Stdout(), "%s %dB\n", line, len(msg.Body))
		c.rl.Refresh()
	}
}

// linkHandler forwards transport events to the session and reports
// link loss to the console.
type linkHandler struct {
	sess *session.Session
	lost func(err error)
}

func (h *linkHandler) OnChunk(ch transport.Channel, chunk []byte) {
	h.sess.OnChunk(ch, chunk)
}

func (h *linkHandler) OnConnect() {
	h.sess.OnConnect()
}

func (h *linkHandler) OnDisconnect(err error) {
	h.sess.OnDisconnect(err)
	if h.lost != nil {
		h.lost(err)
	}
}

var _ transport.Handler = (*linkHandler)(nil)
