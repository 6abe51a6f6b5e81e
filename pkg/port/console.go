// Package port exposes the running process over the wire. The console speaks
// RESP, so any Redis client can inspect the watermark and per-cache memory
// usage or nudge the watermark forward by hand: redis-cli -p 6380 INFO.
package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/redcon"
	"v.io/v23/glob"

	"github.com/maurofama99/risingwave/pkg/epoch"
	"github.com/maurofama99/risingwave/pkg/metrics"
	"github.com/maurofama99/risingwave/pkg/utils"
)

const consoleOk = "OK"

var consoleAddress = flag.String("console_address", ":6380", "The ip:port the RESP console listens on.")

// TableUsage is one cache's resident size as last reported to the usage gauge.
type TableUsage struct {
	TableID string
	ActorID string
	Desc    string
	Bytes   uint64
}

// view is what the console sees of the running process. Handlers read shared
// state only: the watermark is atomic and usage comes from the metric
// gatherer, so they never touch the single-owner caches.
type view interface {
	Watermark() epoch.Epoch
	AdvanceWatermark(e epoch.Epoch) bool
	MemoryUsage() ([]TableUsage, error)
}

// liveView adapts the real watermark and the process-wide metric registry to
// the console.
type liveView struct {
	watermark *epoch.Watermark
	gatherer  prometheus.Gatherer
}

func (v *liveView) Watermark() epoch.Epoch {
	return v.watermark.Load()
}

func (v *liveView) AdvanceWatermark(e epoch.Epoch) bool {
	return v.watermark.Advance(e)
}

func (v *liveView) MemoryUsage() ([]TableUsage, error) {
	families, err := v.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	var usages []TableUsage
	for _, family := range families {
		if family.GetName() != metrics.MemoryUsageName {
			continue
		}
		for _, metric := range family.GetMetric() {
			usage := TableUsage{Bytes: uint64(metric.GetGauge().GetValue())}
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case metrics.LabelTableID:
					usage.TableID = label.GetValue()
				case metrics.LabelActorID:
					usage.ActorID = label.GetValue()
				case metrics.LabelDesc:
					usage.Desc = label.GetValue()
				}
			}
			usages = append(usages, usage)
		}
	}
	slices.SortFunc(usages, func(a, b TableUsage) int {
		if c := strings.Compare(a.Desc, b.Desc); c != 0 {
			return c
		}
		if c := strings.Compare(a.TableID, b.TableID); c != 0 {
			return c
		}
		return strings.Compare(a.ActorID, b.ActorID)
	})
	return usages, nil
}

// consoleCommand represents a console command with its arguments.
type consoleCommand struct {
	command string
	args    []string
}

// consoleOutput conforms to a RESP server reply.
type consoleOutput struct {
	closeConnection bool    // Closes the connection if true.
	err             *string // Error to return if set.
	writeInt        *int    // Writes an integer value if set.
	writeString     string  // Writes a string value if set.
}

func closeConsoleConnection(msg string) consoleOutput {
	return consoleOutput{writeString: msg, closeConnection: true}
}

func writeConsoleInt(i int) consoleOutput {
	return consoleOutput{writeInt: &i}
}

func writeConsoleString(s string) consoleOutput {
	return consoleOutput{writeString: s}
}

func writeConsoleError(err error) consoleOutput {
	msg := "ERR " + err.Error()
	return consoleOutput{err: &msg}
}

type consoleHandler struct {
	view view
}

// newConsoleHandler creates a new consoleHandler.
func newConsoleHandler(view view) (*consoleHandler, error) {
	if view == nil {
		return nil, errors.New("expected a non-nil view")
	}
	return &consoleHandler{view: view}, nil
}

func (ch *consoleHandler) handle(cmd consoleCommand) consoleOutput {
	switch cmd.command {
	case "PING":
		return writeConsoleString("PONG")
	case "QUIT":
		return closeConsoleConnection(consoleOk)
	case "INFO":
		return writeConsoleString(ch.info())
	case "WATERMARK":
		return writeConsoleString(ch.view.Watermark().String())
	case "ADVANCE":
		if len(cmd.args) != 1 {
			return writeConsoleError(errors.New("wrong number of arguments for 'ADVANCE' command"))
		}
		millis, err := strconv.ParseUint(cmd.args[0], 10, 64)
		if err != nil {
			return writeConsoleError(fmt.Errorf("failed to parse %q as unix milliseconds: %w", cmd.args[0], err))
		}
		if ch.view.AdvanceWatermark(epoch.FromPhysicalMillis(millis)) {
			return writeConsoleInt(1)
		}
		return writeConsoleInt(0) // The watermark was already at or past this point.
	case "TABLES":
		if len(cmd.args) > 1 {
			return writeConsoleError(errors.New("wrong number of arguments for 'TABLES' command"))
		}
		pattern := "*"
		if len(cmd.args) == 1 {
			pattern = cmd.args[0]
		}
		listing, err := ch.tables(pattern)
		if err != nil {
			return writeConsoleError(err)
		}
		return writeConsoleString(listing)
	default:
		return writeConsoleError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

func (ch *consoleHandler) info() string {
	watermark := ch.view.Watermark()
	var info strings.Builder
	fmt.Fprintf(&info, "version:%s\n", utils.Version)
	fmt.Fprintf(&info, "commit:%s\n", utils.Commit)
	fmt.Fprintf(&info, "uptime_seconds:%d\n", int(utils.Uptime().Seconds()))
	fmt.Fprintf(&info, "watermark_epoch:%d\n", uint64(watermark))
	fmt.Fprintf(&info, "watermark_time:%s\n", watermark.PhysicalTime().UTC().Format(time.RFC3339))
	return info.String()
}

// tables renders one line per cache whose desc label matches the glob pattern.
func (ch *consoleHandler) tables(pattern string) (string, error) {
	parsedPattern, err := glob.Parse(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to parse glob pattern %q: %w", pattern, err)
	}
	usages, err := ch.view.MemoryUsage()
	if err != nil {
		return "", err
	}
	var listing strings.Builder
	for _, usage := range usages {
		if !parsedPattern.Head().Match(usage.Desc) {
			continue
		}
		fmt.Fprintf(&listing, "%s table=%s actor=%s bytes=%d\n", usage.Desc, usage.TableID, usage.ActorID, usage.Bytes)
	}
	return listing.String(), nil
}

// writeOutput writes one reply to the connection, closing it when the output
// asks for that.
func writeOutput(conn redcon.Conn, output consoleOutput) {
	switch {
	case output.closeConnection:
		conn.WriteString(output.writeString)
		if err := conn.Close(); err != nil {
			slog.Error("failed to close connection", "error", err)
		}
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	default:
		conn.WriteString(output.writeString)
	}
}

// RunConsole serves the console until ctx is cancelled. The watermark is the
// only mutable state it touches, and only through its atomic operations.
func RunConsole(ctx context.Context, watermark *epoch.Watermark) error {
	if *consoleAddress == "" {
		return errors.New("expected a non-empty --console_address flag")
	}
	handler, err := newConsoleHandler(&liveView{watermark: watermark, gatherer: prometheus.DefaultGatherer})
	if err != nil {
		return fmt.Errorf("failed to create a console handler: %w", err)
	}

	server := redcon.NewServerNetwork("tcp" /*net*/, *consoleAddress,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			command := consoleCommand{command: strings.ToUpper(string(cmd.Args[0])), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			writeOutput(conn, handler.handle(command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	slog.Info("Console listening.", "address", *consoleAddress)
	select {
	case <-ctx.Done():
		if err := server.Close(); err != nil {
			return fmt.Errorf("failed to close the console server: %w", err)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("console server stopped unexpectedly: %w", err)
	}
	return nil
}
