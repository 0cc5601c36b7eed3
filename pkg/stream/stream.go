// Package stream implements the length-prefixed TCP link driver:
// a Listener (device role, binds and accepts one inbound connection) and
// a Dialer (host role, connects out), sharing the same reader/writer
// machinery once a connection is established. There is no separate
// responder task: the reader goroutine calls the installed command handler
// for each peer request and queues its answer itself.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cse115a/memori-transport/pkg/correlation"
	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/metrics"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/cse115a/memori-transport/pkg/wire"
	"github.com/google/uuid"
)

// DefaultAddress is the documented default for the stream link.
const DefaultAddress = "127.0.0.1:6942"

// Role identifies which side of the link this process plays. It governs
// which StreamKind this Link emits for its own requests and which it
// must answer as peer requests.
type Role int

const (
	// RoleHost issues HostRequest frames and answers DeviceRequest
	// frames.
	RoleHost Role = iota
	// RoleDevice issues DeviceRequest frames and answers HostRequest
	// frames.
	RoleDevice
)

// Link is the stream transport shared by both the host and device
// endpoint façades. Exactly one of the two correlation tables is used,
// depending on Role.
type Link struct {
	role   Role
	conn   net.Conn
	logger *logger.Logger
	cfg    transport.Config
	state  transport.ConnState

	seq *correlation.Counter

	// hostCorr tracks this process's own in-flight HostCommand requests
	// (populated when role == RoleHost).
	hostCorr *correlation.Table[*proto.DeviceResponse]
	// deviceCorr tracks this process's own in-flight DeviceCommand
	// requests (populated when role == RoleDevice).
	deviceCorr *correlation.Table[*proto.HostResponse]

	onPeerHostCmd   func(*proto.HostCommand) *proto.DeviceResponse
	onPeerDeviceCmd func(*proto.DeviceCommand) *proto.HostResponse

	outbound chan *proto.StreamMessage
	closed   chan struct{}
}

func newLink(role Role, conn net.Conn, cfg transport.Config, log *logger.Logger) *Link {
	if log == nil {
		log = logger.Global()
	}
	log = log.ForSession("stream", uuid.NewString())
	start := uint32(0)
	if role == RoleDevice {
		start = 1
	}
	l := &Link{
		role:       role,
		conn:       conn,
		logger:     log,
		cfg:        cfg,
		seq:        correlation.NewCounter(start),
		hostCorr:   correlation.NewTable[*proto.DeviceResponse](),
		deviceCorr: correlation.NewTable[*proto.HostResponse](),
		outbound:   make(chan *proto.StreamMessage, 64),
		closed:     make(chan struct{}),
	}
	l.state.Set(transport.StateConnected)
	metrics.SetConnected("stream", true)
	go l.readerLoop()
	go l.writerLoop()
	return l
}

func (l *Link) trackInflight() {
	metrics.SetInflight("stream", l.hostCorr.Len()+l.deviceCorr.Len())
}

// Dial connects to addr as the host role.
func Dial(ctx context.Context, addr string, cfg transport.Config, log *logger.Logger) (*Link, error) {
	if addr == "" {
		addr = DefaultAddress
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream: dial %s: %w", addr, err)
	}
	return newLink(RoleHost, conn, cfg, log), nil
}

// Listener accepts a single inbound connection as the device role.
type Listener struct {
	ln     net.Listener
	cfg    transport.Config
	logger *logger.Logger
}

// Listen binds addr and returns a Listener ready to Accept.
func Listen(addr string, cfg transport.Config, log *logger.Logger) (*Listener, error) {
	if addr == "" {
		addr = DefaultAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, cfg: cfg, logger: log}, nil
}

// Accept blocks for one inbound connection and returns the Link for it.
func (s *Listener) Accept(ctx context.Context) (*Link, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		conn, err := s.ln.Accept()
		resCh <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		s.ln.Close()
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		return newLink(RoleDevice, r.conn, s.cfg, s.logger), nil
	}
}

// Close stops accepting new connections.
func (s *Listener) Close() error {
	return s.ln.Close()
}

// Addr returns the address the listener is bound to.
func (s *Listener) Addr() net.Addr {
	return s.ln.Addr()
}

// SetHostCommandHandler installs the function this Link calls when it
// receives a peer HostRequest frame. Relevant only for RoleDevice links.
func (l *Link) SetHostCommandHandler(h func(*proto.HostCommand) *proto.DeviceResponse) {
	l.onPeerHostCmd = h
}

// SetDeviceCommandHandler installs the function this Link calls when it
// receives a peer DeviceRequest frame. Relevant only for RoleHost links.
func (l *Link) SetDeviceCommandHandler(h func(*proto.DeviceCommand) *proto.HostResponse) {
	l.onPeerDeviceCmd = h
}

// IsConnected reports whether the underlying connection is still up.
func (l *Link) IsConnected() bool {
	return l.state.IsConnected()
}

// Close tears down the connection, which aborts the reader/writer tasks
// and fails all pending correlation entries with ErrInternalError.
func (l *Link) Close() error {
	select {
	case <-l.closed:
		return nil
	default:
	}
	close(l.closed)
	l.state.Set(transport.StateDisconnected)
	metrics.SetConnected("stream", false)
	l.hostCorr.Abort(transport.ErrInternalError)
	l.deviceCorr.Abort(transport.ErrInternalError)
	l.trackInflight()
	return l.conn.Close()
}

// SendHostCommand issues cmd as a HostRequest and awaits the matching
// DeviceResponse. Valid only on RoleHost links.
func (l *Link) SendHostCommand(ctx context.Context, cmd *proto.HostCommand) (*proto.DeviceResponse, error) {
	if !l.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	id := l.seq.Next()
	ch := l.hostCorr.Reserve(id)
	l.trackInflight()
	defer l.trackInflight()
	msg := &proto.StreamMessage{Seq: proto.MessageID(id), Kind: proto.StreamKindHostRequest, HostCmd: cmd}
	select {
	case l.outbound <- msg:
	case <-l.closed:
		l.hostCorr.Cancel(id)
		return nil, transport.ErrNotConnected
	case <-ctx.Done():
		l.hostCorr.Cancel(id)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(l.cfg.EffectiveTimeout(false))
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-timer.C:
		l.hostCorr.Cancel(id)
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		l.hostCorr.Cancel(id)
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrInternalError
	}
}

// SendDeviceCommand issues cmd as a DeviceRequest and awaits the matching
// HostResponse. Valid only on RoleDevice links.
func (l *Link) SendDeviceCommand(ctx context.Context, cmd *proto.DeviceCommand) (*proto.HostResponse, error) {
	if !l.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	id := l.seq.Next()
	ch := l.deviceCorr.Reserve(id)
	l.trackInflight()
	defer l.trackInflight()
	msg := &proto.StreamMessage{Seq: proto.MessageID(id), Kind: proto.StreamKindDeviceRequest, DeviceCmd: cmd}
	select {
	case l.outbound <- msg:
	case <-l.closed:
		l.deviceCorr.Cancel(id)
		return nil, transport.ErrNotConnected
	case <-ctx.Done():
		l.deviceCorr.Cancel(id)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(l.cfg.EffectiveTimeout(true))
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-timer.C:
		l.deviceCorr.Cancel(id)
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		l.deviceCorr.Cancel(id)
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrInternalError
	}
}

// readerLoop is the reader task: read a frame, decode,
// and dispatch by kind. A decode failure is logged and the frame is
// skipped; the connection stays open. EOF or a read error ends the loop
// and disconnects the link.
func (l *Link) readerLoop() {
	defer l.Close()
	for {
		payload, err := wire.ReadStreamFrame(l.conn)
		if err != nil {
			if errors.Is(err, wire.ErrOversizeFrame) {
				l.logger.Warn("stream: oversize frame skipped")
				metrics.IncError("stream", "oversize_frame")
				continue
			}
			if !errors.Is(err, io.EOF) {
				l.logger.Warn("stream: read failed, disconnecting", "error", err)
			}
			return
		}
		msg, err := proto.DecodeStreamMessage(payload)
		if err != nil {
			l.logger.Warn("stream: invalid message skipped", "error", err)
			metrics.IncError("stream", "invalid_message")
			continue
		}
		l.dispatch(msg)
	}
}

func (l *Link) dispatch(msg *proto.StreamMessage) {
	switch msg.Kind {
	case proto.StreamKindDeviceResponse:
		if !l.hostCorr.Deliver(uint32(msg.Seq), msg.DeviceResp, nil) {
			l.logger.Warn("stream: response for unknown request dropped", "seq", msg.Seq)
		}
	case proto.StreamKindHostResponse:
		if !l.deviceCorr.Deliver(uint32(msg.Seq), msg.HostResp, nil) {
			l.logger.Warn("stream: response for unknown request dropped", "seq", msg.Seq)
		}
	case proto.StreamKindDeviceRequest:
		if l.onPeerDeviceCmd == nil {
			return
		}
		resp := l.onPeerDeviceCmd(msg.DeviceCmd)
		l.enqueue(&proto.StreamMessage{Seq: msg.Seq, Kind: proto.StreamKindHostResponse, HostResp: resp})
	case proto.StreamKindHostRequest:
		if l.onPeerHostCmd == nil {
			return
		}
		resp := l.onPeerHostCmd(msg.HostCmd)
		l.enqueue(&proto.StreamMessage{Seq: msg.Seq, Kind: proto.StreamKindDeviceResponse, DeviceResp: resp})
	}
}

func (l *Link) enqueue(msg *proto.StreamMessage) {
	select {
	case l.outbound <- msg:
	case <-l.closed:
	}
}

// writerLoop is the writer task: pop a message, encode,
// write header + payload.
func (l *Link) writerLoop() {
	for {
		select {
		case msg := <-l.outbound:
			payload := proto.EncodeStreamMessage(msg)
			if err := wire.WriteStreamFrame(l.conn, payload); err != nil {
				l.logger.Warn("stream: write failed, disconnecting", "error", err)
				l.Close()
				return
			}
			metrics.IncPacket("stream", metrics.DirectionOutbound, metrics.StatusSuccess)
		case <-l.closed:
			return
		}
	}
}
