package ble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cse115a/memori-transport/pkg/correlation"
	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/metrics"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/cse115a/memori-transport/pkg/wire"
	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"
)

// Central is the host-role BLE link driver: it scans for the device
// peripheral, connects, and exchanges BlePacket frames over the NUS-style
// RX/TX characteristic pair. It satisfies the same Link shape as
// stream.Link so pkg/host can use either transport interchangeably.
type Central struct {
	adapter *bluetooth.Adapter
	cfg     transport.Config
	logger  *logger.Logger
	state   transport.ConnState

	device   bluetooth.Device
	remoteRX bluetooth.DeviceCharacteristic // we write HostCommand/HostResponse here
	remoteTX bluetooth.DeviceCharacteristic // we subscribe for DeviceCommand/DeviceResponse here
	battery  bluetooth.DeviceCharacteristic

	seq      *correlation.Counter
	hostCorr *correlation.Table[*proto.DeviceResponse]

	onPeerDeviceCmd func(*proto.DeviceCommand) *proto.HostResponse

	outbound chan []byte
	closed   chan struct{}
}

// NewCentral constructs a Central bound to the default system adapter.
func NewCentral(cfg transport.Config, log *logger.Logger) *Central {
	if log == nil {
		log = logger.Global()
	}
	return &Central{
		adapter:  bluetooth.DefaultAdapter,
		cfg:      cfg,
		logger:   log,
		seq:      correlation.NewCounter(0),
		hostCorr: correlation.NewTable[*proto.DeviceResponse](),
		outbound: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

// Connect enables the adapter, scans for a peripheral advertising
// AdvertisedName, connects, and discovers the NUS and Battery services.
func (c *Central) Connect(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	found := make(chan bluetooth.ScanResult, 1)
	err := c.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if strings.Contains(result.LocalName(), AdvertisedName) {
			a.StopScan()
			select {
			case found <- result:
			default:
			}
		}
	})
	if err != nil {
		return fmt.Errorf("ble: scan: %w", err)
	}

	var scanResult bluetooth.ScanResult
	select {
	case scanResult = <-found:
	case <-ctx.Done():
		c.adapter.StopScan()
		return ctx.Err()
	}

	device, err := c.adapter.Connect(scanResult.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("ble: connect: %w", err)
	}
	c.device = device

	if err := c.discover(); err != nil {
		device.Disconnect()
		return err
	}

	c.logger = c.logger.ForSession("ble", uuid.NewString())
	c.state.Set(transport.StateConnected)
	metrics.SetConnected("ble", true)
	go c.writerLoop()
	return nil
}

func (c *Central) discover() error {
	services, err := c.device.DiscoverServices([]bluetooth.UUID{nusServiceUUID, batteryServiceUUID})
	if err != nil {
		return fmt.Errorf("ble: discover services: %w", err)
	}
	for _, svc := range services {
		switch svc.UUID() {
		case nusServiceUUID:
			chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{nusRXCharUUID, nusTXCharUUID})
			if err != nil {
				return fmt.Errorf("ble: discover nus characteristics: %w", err)
			}
			for _, ch := range chars {
				switch ch.UUID() {
				case nusRXCharUUID:
					c.remoteRX = ch
				case nusTXCharUUID:
					c.remoteTX = ch
				}
			}
		case batteryServiceUUID:
			chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{batteryLevelCharUUID})
			if err != nil {
				return fmt.Errorf("ble: discover battery characteristic: %w", err)
			}
			if len(chars) == 1 {
				c.battery = chars[0]
			}
		}
	}
	if err := c.remoteTX.EnableNotifications(c.onNotify); err != nil {
		return fmt.Errorf("ble: enable tx notifications: %w", err)
	}
	return nil
}

func (c *Central) onNotify(value []byte) {
	pkt, err := proto.DecodeBlePacket(value)
	if err != nil {
		c.logger.Warn("ble: invalid notification skipped", "error", err)
		metrics.IncError("ble", "invalid_message")
		return
	}
	switch {
	case pkt.Side == proto.BleSideHost && pkt.Role == proto.BleRoleResponse:
		if !c.hostCorr.Deliver(uint32(pkt.ID), pkt.DeviceResp, nil) {
			c.logger.Warn("ble: response for unknown request dropped", "id", pkt.ID)
		}
	case pkt.Side == proto.BleSideDevice && pkt.Role == proto.BleRoleCommand:
		if c.onPeerDeviceCmd == nil {
			return
		}
		resp := c.onPeerDeviceCmd(pkt.DeviceCmd)
		out := &proto.BlePacket{ID: pkt.ID, Side: proto.BleSideDevice, Role: proto.BleRoleResponse, HostResp: resp}
		c.enqueue(out)
	}
	metrics.IncPacket("ble", metrics.DirectionInbound, metrics.StatusSuccess)
}

func (c *Central) enqueue(pkt *proto.BlePacket) {
	payload, err := proto.EncodeBlePacket(pkt)
	if err != nil {
		c.logger.Warn("ble: packet encode failed", "error", err)
		return
	}
	buf, err := wire.WriteBLEFrame(payload)
	if err != nil {
		c.logger.Warn("ble: packet too large to send", "error", err)
		return
	}
	select {
	case c.outbound <- buf:
	case <-c.closed:
	}
}

func (c *Central) writerLoop() {
	for {
		select {
		case buf := <-c.outbound:
			if _, err := c.remoteRX.WriteWithoutResponse(buf); err != nil {
				c.logger.Warn("ble: write failed, disconnecting", "error", err)
				metrics.IncError("ble", "write_failed")
				c.Close()
				return
			}
			metrics.IncPacket("ble", metrics.DirectionOutbound, metrics.StatusSuccess)
		case <-c.closed:
			return
		}
	}
}

// SetDeviceCommandHandler installs the function this Central calls when
// the device issues a DeviceCommand over the notify characteristic.
func (c *Central) SetDeviceCommandHandler(h func(*proto.DeviceCommand) *proto.HostResponse) {
	c.onPeerDeviceCmd = h
}

// IsConnected reports whether the connection is established.
func (c *Central) IsConnected() bool {
	return c.state.IsConnected()
}

// Close disconnects from the peripheral and fails pending requests.
func (c *Central) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	close(c.closed)
	c.state.Set(transport.StateDisconnected)
	metrics.SetConnected("ble", false)
	c.hostCorr.Abort(transport.ErrInternalError)
	return c.device.Disconnect()
}

// SendHostCommand issues cmd over RX and awaits the matching DeviceResponse
// over TX, correlated by MessageID the way stream.Link correlates frames.
func (c *Central) SendHostCommand(ctx context.Context, cmd *proto.HostCommand) (*proto.DeviceResponse, error) {
	if !c.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	id := c.seq.Next()
	ch := c.hostCorr.Reserve(id)
	metrics.SetInflight("ble", c.hostCorr.Len())
	defer func() { metrics.SetInflight("ble", c.hostCorr.Len()) }()
	c.enqueue(&proto.BlePacket{ID: proto.MessageID(id), Side: proto.BleSideHost, Role: proto.BleRoleCommand, HostCmd: cmd})

	timer := time.NewTimer(c.cfg.EffectiveTimeout(false))
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-timer.C:
		c.hostCorr.Cancel(id)
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		c.hostCorr.Cancel(id)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, transport.ErrInternalError
	}
}

// ReadBatteryLevel performs a native GATT read of the Battery Service
// level characteristic, bypassing the correlation path entirely — any
// generic BLE battery-service client can do the same against the
// peripheral without speaking our wire protocol at all.
func (c *Central) ReadBatteryLevel() (uint8, error) {
	buf := make([]byte, 1)
	n, err := c.battery.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("ble: read battery level: %w", err)
	}
	if n < 1 {
		return 0, transport.ErrInvalidMessage
	}
	return buf[0], nil
}
