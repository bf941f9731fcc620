package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"navmotion.ai/internal/protocol"
)

func TestParseUnits(t *testing.T) {
	ids, err := parseUnits(" 3, 7,,12")
	if err != nil || len(ids) != 3 || ids[0] != 3 || ids[2] != 12 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
	if ids, err := parseUnits(""); err != nil || ids != nil {
		t.Fatalf("empty: %v %v", ids, err)
	}
	if _, err := parseUnits("1,x"); err == nil {
		t.Fatalf("bad id accepted")
	}
}

func TestPrinterMovesMsgpack(t *testing.T) {
	var out bytes.Buffer
	p := printer{out: &out, format: protocol.FormatMsgpack, log: zap.NewNop()}

	b := protocol.NewMoveBatch("w", 12, []protocol.MoveUpdate{
		{Unit: 4, SplineID: 9, DurationMs: 1500, Velocity: 7, Points: [][3]float64{{0, 0, 0}, {10, 2, 0}}},
		{Unit: 5, SplineID: 10, Stopped: true, Points: [][3]float64{{1, 1, 0}}},
	})
	msg, err := b.Encode(protocol.FormatMsgpack)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := p.frame(websocket.BinaryMessage, msg); err != nil {
		t.Fatalf("frame: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: %q", lines)
	}
	if lines[0] != "tick=12 unit=4 spline=9 dur=1500ms elapsed=0ms v=7.00 pts=2 end=(10.0,2.0,0.0)" {
		t.Fatalf("line 0: %q", lines[0])
	}
	if lines[1] != "tick=12 unit=5 spline=10 stopped end=(1.0,1.0,0.0)" {
		t.Fatalf("line 1: %q", lines[1])
	}
}

func TestPrinterControlFrames(t *testing.T) {
	p := printer{out: &bytes.Buffer{}, format: protocol.FormatJSON, log: zap.NewNop()}

	welcome, _ := json.Marshal(protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, WorldID: "w"})
	if err := p.frame(websocket.TextMessage, welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	e, _ := json.Marshal(protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version"))
	err := p.frame(websocket.TextMessage, e)
	var pe *protocol.ErrorMsg
	if !errors.As(err, &pe) || pe.Code != protocol.ErrProtoVersion {
		t.Fatalf("error frame: %v", err)
	}
}

func TestPrinterRawJSON(t *testing.T) {
	var out bytes.Buffer
	p := printer{out: &out, format: protocol.FormatJSON, raw: true, log: zap.NewNop()}
	msg, err := protocol.NewMoveBatch("w", 3, nil).Encode(protocol.FormatJSON)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := p.frame(websocket.TextMessage, msg); err != nil {
		t.Fatalf("frame: %v", err)
	}
	var b protocol.MoveBatch
	if err := json.Unmarshal(out.Bytes(), &b); err != nil || b.Tick != 3 || b.Type != protocol.TypeMoves {
		t.Fatalf("raw: %s %v", out.String(), err)
	}
}
