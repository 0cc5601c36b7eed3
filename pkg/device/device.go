// Package device implements the device-side endpoint façade, the
// host-command handler that answers the host's requests, and the
// per-widget refresh scheduler that the handler spawns out of SetState.
package device

import (
	"context"

	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
)

// Link is the transport shape the device endpoint needs; both
// *stream.Link (RoleDevice) and *ble.Peripheral satisfy it.
type Link interface {
	SendDeviceCommand(ctx context.Context, cmd *proto.DeviceCommand) (*proto.HostResponse, error)
	SetHostCommandHandler(func(*proto.HostCommand) *proto.DeviceResponse)
	IsConnected() bool
	Close() error
}

// Endpoint is the device-side façade over a connected Link: operations are
// only meaningful while the underlying Link reports Connected.
type Endpoint struct {
	link   Link
	store  *store
	logger *logger.Logger
}

// New wires up an Endpoint around an already-constructed Link. The
// background refresh tasks spawned out of SetState call the Endpoint's
// own RefreshData, the same call the device would make on its own
// initiative.
func New(link Link, log *logger.Logger) *Endpoint {
	if log == nil {
		log = logger.Global()
	}
	e := &Endpoint{link: link, logger: log}
	e.store = newStore(log, e.RefreshData)
	link.SetHostCommandHandler(e.handleHostCommand)
	return e
}

// IsConnected reports whether the underlying link is up.
func (e *Endpoint) IsConnected() bool {
	return e.link.IsConnected()
}

// Disconnect tears down the link, aborting the reader/writer tasks and
// failing any in-flight futures.
func (e *Endpoint) Disconnect() error {
	return e.link.Close()
}

// Ping asks the host to acknowledge liveness.
func (e *Endpoint) Ping(ctx context.Context) error {
	resp, err := e.link.SendDeviceCommand(ctx, &proto.DeviceCommand{Kind: proto.DeviceCommandPing})
	if err != nil {
		return err
	}
	if resp.Kind != proto.HostResponsePing {
		return transport.ErrProtocolIssue
	}
	return nil
}

// RefreshData asks the host for the current payload of widget id.
func (e *Endpoint) RefreshData(ctx context.Context, id model.WidgetID) (model.WidgetPayload, error) {
	resp, err := e.link.SendDeviceCommand(ctx, &proto.DeviceCommand{Kind: proto.DeviceCommandRefreshData, WidgetID: id})
	if err != nil {
		return model.WidgetPayload{}, err
	}
	if resp.Kind != proto.HostResponseRefreshData {
		return model.WidgetPayload{}, transport.ErrProtocolIssue
	}
	if resp.Err != nil {
		return model.WidgetPayload{}, resp.Err
	}
	return resp.Payload, nil
}

// handleHostCommand is the device's "server", invoked by the link
// for every HostCommand the host issues.
func (e *Endpoint) handleHostCommand(cmd *proto.HostCommand) *proto.DeviceResponse {
	switch cmd.Kind {
	case proto.HostCommandGetWidget:
		return e.store.getWidget(cmd.WidgetID)
	case proto.HostCommandSetState:
		return e.store.setState(cmd.State)
	case proto.HostCommandSetConfig:
		return e.store.setConfig(cmd.Config)
	case proto.HostCommandGetBatteryLevel:
		return &proto.DeviceResponse{Kind: proto.DeviceResponseBatteryLevel, BatteryLevel: e.BatteryLevel()}
	case proto.HostCommandPing:
		return &proto.DeviceResponse{Kind: proto.DeviceResponsePong}
	default:
		// An unknown command kind still gets an answer so the host's
		// correlation entry resolves; the variant mismatch surfaces there
		// as a protocol issue.
		e.logger.Warn("device: unknown host command", "kind", cmd.Kind)
		return &proto.DeviceResponse{Kind: proto.DeviceResponseSuccess}
	}
}

// BatteryLevel returns the device's locally held battery level. On the
// BLE link this value also backs the native Battery Service
// characteristic, served directly without going through this handler.
func (e *Endpoint) BatteryLevel() uint8 {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.batteryLevel
}

// SetBatteryLevel updates the locally held battery level, and the link's
// own copy when the link serves one (as *ble.Peripheral does).
func (e *Endpoint) SetBatteryLevel(level uint8) {
	e.store.mu.Lock()
	e.store.batteryLevel = level
	e.store.mu.Unlock()
	if b, ok := e.link.(interface{ SetBatteryLevel(uint8) }); ok {
		b.SetBatteryLevel(level)
	}
}

// SetMaxRefreshTasks overrides the default bound on refresh tasks per
// SetState. Called once at startup, right after the Endpoint is created.
func (e *Endpoint) SetMaxRefreshTasks(n int) {
	if n > 0 {
		e.store.maxTasks = n
	}
}

// SeedConfig applies cfg to the device's local display configuration
// directly, bypassing the host-command path. Used at startup, right after
// the Endpoint is created, to apply the device process's own configured
// defaults (e.g. dark mode).
func (e *Endpoint) SeedConfig(cfg model.DeviceConfig) {
	e.store.setConfig(cfg)
}
