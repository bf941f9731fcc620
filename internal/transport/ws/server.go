package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"navmotion.ai/internal/protocol"
	"navmotion.ai/internal/sim/world"
)

// Server streams launched curves to observers. An observer sends HELLO,
// receives WELCOME (always JSON), then one MOVES batch per tick with
// launches, encoded in the format it asked for.
type Server struct {
	world *world.World
	log   *zap.Logger

	// LoopbackOnly rejects non-loopback peers.
	LoopbackOnly bool

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		world: w,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// BootstrapResponse lets a client size itself before opening the stream.
type BootstrapResponse struct {
	ProtocolVersion string             `json:"protocol_version"`
	WorldID         string             `json:"world_id"`
	Tick            uint64             `json:"tick"`
	TickRateHz      int                `json:"tick_rate_hz"`
	Metrics         world.WorldMetrics `json:"metrics"`
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			TickRateHz:      s.world.TickRateHz(),
			Metrics:         s.world.Metrics(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, format, out := s.handshake(conn)
		if id == "" {
			return
		}
		log := s.log.With(zap.String("observer", id), zap.String("remote", r.RemoteAddr))
		log.Debug("observer stream open")
		defer s.world.LeaveObserver(id)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		kind := websocket.TextMessage
		if format == protocol.FormatMsgpack {
			kind = websocket.BinaryMessage
		}

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(kind, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: observers only read, this just notices the close.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		log.Debug("observer stream closed")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, protocol.Format, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return "", "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return "", "", nil
	}
	format, err := protocol.ParseFormat(string(hello.Format))
	if err != nil {
		reject(conn, protocol.ErrBadFormat, err.Error())
		return "", "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out := make(chan []byte, maxQ)
	resp := make(chan world.ObserverJoinResponse, 1)
	if !s.world.JoinObserver(world.ObserverJoinRequest{Format: format, Units: hello.Units, Out: out, Resp: resp}) {
		reject(conn, protocol.ErrWorldBusy, "server busy")
		return "", "", nil
	}
	var joined world.ObserverJoinResponse
	select {
	case joined = <-resp:
	case <-time.After(5 * time.Second):
		reject(conn, protocol.ErrWorldBusy, "world not ticking")
		return "", "", nil
	}

	if err := writeJSON(conn, joined.Welcome); err != nil {
		s.world.LeaveObserver(joined.ObserverID)
		return "", "", nil
	}
	return joined.ObserverID, format, out
}

// reject sends an ERROR message and closes the connection.
func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
