package ble

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cse115a/memori-transport/pkg/correlation"
	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/metrics"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/cse115a/memori-transport/pkg/wire"
	"tinygo.org/x/bluetooth"
)

// outboundDepth bounds the embedded peripheral's sender queue. When the
// queue is full, senders block until the writer task drains it.
const outboundDepth = 5

// Peripheral is the device-role BLE link driver: it advertises a GATT
// server exposing the NUS-style RX/TX pair and the Battery Service, and
// drives the advertise/connect/disconnect lifecycle.
type Peripheral struct {
	adapter *bluetooth.Adapter
	cfg     transport.Config
	logger  *logger.Logger
	state   transport.ConnState

	rxChar      bluetooth.Characteristic
	txChar      bluetooth.Characteristic
	batteryChar bluetooth.Characteristic

	batteryLevel atomic.Uint32
	started      atomic.Bool

	seq        *correlation.Counter
	deviceCorr *correlation.Array[*proto.HostResponse]

	onHostCmd func(*proto.HostCommand) *proto.DeviceResponse

	outbound chan []byte
	closed   chan struct{}
}

// NewPeripheral constructs a Peripheral bound to the default adapter.
func NewPeripheral(cfg transport.Config, log *logger.Logger) *Peripheral {
	if log == nil {
		log = logger.Global()
	}
	p := &Peripheral{
		adapter:    bluetooth.DefaultAdapter,
		cfg:        cfg,
		logger:     log,
		seq:        correlation.NewCounter(1),
		deviceCorr: correlation.NewArray[*proto.HostResponse](),
		outbound:   make(chan []byte, outboundDepth),
		closed:     make(chan struct{}),
	}
	p.batteryLevel.Store(100)
	return p
}

// SetHostCommandHandler installs the handler invoked for every
// HostCommand the central writes to RX.
func (p *Peripheral) SetHostCommandHandler(h func(*proto.HostCommand) *proto.DeviceResponse) {
	p.onHostCmd = h
}

// SetBatteryLevel updates the value served by the Battery Service level
// characteristic, independent of the correlation path.
func (p *Peripheral) SetBatteryLevel(level uint8) {
	p.batteryLevel.Store(uint32(level))
	if p.started.Load() {
		p.batteryChar.Write([]byte{level})
	}
}

// Start enables the adapter, registers the GATT services, and begins
// advertising under AdvertisedName. It returns once advertising starts;
// it does not block for a central to connect.
func (p *Peripheral) Start() error {
	if err := p.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			p.state.Set(transport.StateConnected)
			metrics.SetConnected("ble", true)
		} else {
			p.state.Set(transport.StateDisconnected)
			metrics.SetConnected("ble", false)
			p.deviceCorr.AbortAll(transport.ErrInternalError)
			p.advertise()
		}
	})

	err := p.adapter.AddService(&bluetooth.Service{
		UUID: nusServiceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  nusRXCharUUID,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					p.onRXWrite(value)
				},
				Handle: &p.rxChar,
			},
			{
				UUID:   nusTXCharUUID,
				Flags:  bluetooth.CharacteristicNotifyPermission,
				Handle: &p.txChar,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ble: add nus service: %w", err)
	}

	err = p.adapter.AddService(&bluetooth.Service{
		UUID: batteryServiceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  batteryLevelCharUUID,
				Flags: bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
				Handle: &p.batteryChar,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ble: add battery service: %w", err)
	}
	p.batteryChar.Write([]byte{byte(p.batteryLevel.Load())})
	p.started.Store(true)

	go p.writerLoop()
	return p.advertise()
}

func (p *Peripheral) advertise() error {
	adv := p.adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    AdvertisedName,
		ServiceUUIDs: []bluetooth.UUID{nusServiceUUID},
	})
	if err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	return adv.Start()
}

func (p *Peripheral) onRXWrite(value []byte) {
	pkt, err := proto.DecodeBlePacket(value)
	if err != nil {
		p.logger.Warn("ble: invalid write skipped", "error", err)
		metrics.IncError("ble", "invalid_message")
		return
	}
	switch {
	case pkt.Side == proto.BleSideHost && pkt.Role == proto.BleRoleCommand:
		if p.onHostCmd == nil {
			return
		}
		resp := p.onHostCmd(pkt.HostCmd)
		p.enqueue(&proto.BlePacket{ID: pkt.ID, Side: proto.BleSideHost, Role: proto.BleRoleResponse, DeviceResp: resp})
	case pkt.Side == proto.BleSideDevice && pkt.Role == proto.BleRoleResponse:
		if !p.deviceCorr.Deliver(uint32(pkt.ID), pkt.HostResp, nil) {
			p.logger.Warn("ble: response for unknown or stale request dropped", "id", pkt.ID)
		}
	default:
		// Device-origin packets arriving on RX indicate a misbehaving
		// central; drop them.
		p.logger.Warn("ble: unexpected packet on rx ignored", "id", pkt.ID, "side", pkt.Side, "role", pkt.Role)
	}
	metrics.IncPacket("ble", metrics.DirectionInbound, metrics.StatusSuccess)
}

func (p *Peripheral) enqueue(pkt *proto.BlePacket) {
	payload, err := proto.EncodeBlePacket(pkt)
	if err != nil {
		p.logger.Warn("ble: packet encode failed", "error", err)
		return
	}
	buf, err := wire.WriteBLEFrame(payload)
	if err != nil {
		p.logger.Warn("ble: packet too large to send", "error", err)
		return
	}
	select {
	case p.outbound <- buf:
	case <-p.closed:
	}
}

func (p *Peripheral) writerLoop() {
	for {
		select {
		case buf := <-p.outbound:
			if _, err := p.txChar.Write(buf); err != nil {
				p.logger.Warn("ble: notify failed", "error", err)
				metrics.IncError("ble", "write_failed")
				continue
			}
			metrics.IncPacket("ble", metrics.DirectionOutbound, metrics.StatusSuccess)
		case <-p.closed:
			return
		}
	}
}

// IsConnected reports whether a central is currently connected.
func (p *Peripheral) IsConnected() bool {
	return p.state.IsConnected()
}

// Close stops advertising and tears down the writer task.
func (p *Peripheral) Close() error {
	select {
	case <-p.closed:
		return nil
	default:
	}
	close(p.closed)
	p.deviceCorr.AbortAll(transport.ErrInternalError)
	return p.adapter.DefaultAdvertisement().Stop()
}

// SendDeviceCommand issues cmd over TX and awaits the matching
// HostResponse over RX, correlated by a fixed-size Array rather than a
// map. The ids step by 2, so they use two of the Array's MaxInflight
// slots: a third concurrent request overwrites the oldest pending one.
func (p *Peripheral) SendDeviceCommand(ctx context.Context, cmd *proto.DeviceCommand) (*proto.HostResponse, error) {
	if !p.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	id := p.seq.Next()
	ch := p.deviceCorr.Reserve(id)
	p.enqueue(&proto.BlePacket{ID: proto.MessageID(id), Side: proto.BleSideDevice, Role: proto.BleRoleCommand, DeviceCmd: cmd})

	timer := time.NewTimer(p.cfg.EffectiveTimeout(true))
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-timer.C:
		p.deviceCorr.Cancel(id)
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		p.deviceCorr.Cancel(id)
		return nil, ctx.Err()
	case <-p.closed:
		return nil, transport.ErrInternalError
	}
}
