// Command watch connects to a server as a movement observer and prints the
// curves it launches.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"navmotion.ai/internal/logging"
	"navmotion.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/observe", "observer ws url")
		format   = flag.String("format", "msgpack", "stream format: json|msgpack")
		units    = flag.String("units", "", "comma separated unit ids (default: all)")
		maxQueue = flag.Int("max_queue", 16, "server side queue for this observer")
		raw      = flag.Bool("raw", false, "print each batch as JSON instead of one line per move")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: "info"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	logger = logger.Named("watch")

	f, err := protocol.ParseFormat(*format)
	if err != nil {
		logger.Fatal("format", zap.Error(err))
	}
	ids, err := parseUnits(*units)
	if err != nil {
		logger.Fatal("units", zap.Error(err))
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Format:          f,
		MaxQueue:        *maxQueue,
		Units:           ids,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal("send HELLO", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	p := printer{out: os.Stdout, format: f, raw: *raw, log: logger}
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Info("stream closed", zap.Error(err))
			return
		}
		if err := p.frame(kind, msg); err != nil {
			logger.Warn("frame", zap.Error(err))
			var pe *protocol.ErrorMsg
			if errors.As(err, &pe) {
				os.Exit(1)
			}
		}
	}
}

func parseUnits(s string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

type printer struct {
	out    io.Writer
	format protocol.Format
	raw    bool
	log    *zap.Logger
}

// frame handles one websocket message. WELCOME and ERROR are always JSON
// text; MOVES arrive in the negotiated format.
func (p printer) frame(kind int, msg []byte) error {
	if kind == websocket.TextMessage {
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			return err
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				return err
			}
			p.log.Info("WELCOME",
				zap.String("world", w.WorldID),
				zap.Uint64("tick", w.Tick),
				zap.Int("tick_rate_hz", w.TickRateHz),
				zap.Int("units", w.Units),
				zap.String("format", string(w.Format)))
			return nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				return err
			}
			return &e
		}
	}
	b, err := protocol.DecodeMoveBatch(p.format, msg)
	if err != nil {
		return err
	}
	if p.raw {
		enc := json.NewEncoder(p.out)
		enc.SetEscapeHTML(false)
		return enc.Encode(b)
	}
	for _, m := range b.Moves {
		fmt.Fprintln(p.out, formatMove(b.Tick, m))
	}
	return nil
}

func formatMove(tick uint64, m protocol.MoveUpdate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tick=%d unit=%d spline=%d", tick, m.Unit, m.SplineID)
	if m.Stopped {
		sb.WriteString(" stopped")
	} else {
		fmt.Fprintf(&sb, " dur=%dms elapsed=%dms v=%.2f pts=%d", m.DurationMs, m.ElapsedMs, m.Velocity, len(m.Points))
	}
	if n := len(m.Points); n > 0 {
		e := m.Points[n-1]
		fmt.Fprintf(&sb, " end=(%.1f,%.1f,%.1f)", e[0], e[1], e[2])
	}
	if m.Facing != nil {
		fmt.Fprintf(&sb, " facing=%s", m.Facing.Kind)
	}
	return sb.String()
}
