// Package host implements the host-side endpoint façade: the
// companion app's view of the connection, exposing set_state, get_widget,
// get_battery_level, and set_device_config as awaiting request/response
// calls over whichever Link is wired in.
package host

import (
	"context"

	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
)

// Link is the transport shape the host endpoint needs; both
// *stream.Link (RoleHost) and *ble.Central satisfy it.
type Link interface {
	SendHostCommand(ctx context.Context, cmd *proto.HostCommand) (*proto.DeviceResponse, error)
	SetDeviceCommandHandler(func(*proto.DeviceCommand) *proto.HostResponse)
	IsConnected() bool
	Close() error
}

// DataSource answers the device-initiated commands (DeviceCommandPing and
// DeviceCommandRefreshData). This is the command-dispatch shim the host
// GUI owns; it is out of scope here, so callers supply their own
// implementation. NoopDataSource is provided for standalone use.
type DataSource interface {
	Ping() error
	RefreshData(ctx context.Context, id model.WidgetID) (model.WidgetPayload, error)
}

// NoopDataSource answers Ping unconditionally and RefreshData with
// WidgetNotFound; it exists so a host endpoint can be wired up without an
// application-supplied DataSource for smoke-testing the link itself.
type NoopDataSource struct{}

func (NoopDataSource) Ping() error { return nil }

func (NoopDataSource) RefreshData(context.Context, model.WidgetID) (model.WidgetPayload, error) {
	return model.WidgetPayload{}, transport.ErrWidgetNotFound
}

// Endpoint is the host-side façade over a connected Link.
type Endpoint struct {
	link   Link
	ds     DataSource
	logger *logger.Logger
}

// New wires an Endpoint around an already-constructed Link and installs
// the device-command handler backed by ds.
func New(link Link, ds DataSource, log *logger.Logger) *Endpoint {
	if log == nil {
		log = logger.Global()
	}
	if ds == nil {
		ds = NoopDataSource{}
	}
	e := &Endpoint{link: link, ds: ds, logger: log}
	link.SetDeviceCommandHandler(e.handlePeerDeviceCommand)
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

// SetState replaces the device's entire memory state.
func (e *Endpoint) SetState(ctx context.Context, state model.MemoryState) error {
	resp, err := e.link.SendHostCommand(ctx, &proto.HostCommand{Kind: proto.HostCommandSetState, State: state})
	if err != nil {
		return err
	}
	if resp.Kind != proto.DeviceResponseSetState {
		return transport.ErrProtocolIssue
	}
	return resp.Err
}

// GetWidget asks the device for one widget's payload.
func (e *Endpoint) GetWidget(ctx context.Context, id model.WidgetID) (model.WidgetPayload, error) {
	resp, err := e.link.SendHostCommand(ctx, &proto.HostCommand{Kind: proto.HostCommandGetWidget, WidgetID: id})
	if err != nil {
		return model.WidgetPayload{}, err
	}
	if resp.Kind != proto.DeviceResponseWidgetGet {
		return model.WidgetPayload{}, transport.ErrProtocolIssue
	}
	if resp.Err != nil {
		return model.WidgetPayload{}, resp.Err
	}
	return resp.Payload, nil
}

// GetBatteryLevel asks the device for its battery level.
func (e *Endpoint) GetBatteryLevel(ctx context.Context) (uint8, error) {
	resp, err := e.link.SendHostCommand(ctx, &proto.HostCommand{Kind: proto.HostCommandGetBatteryLevel})
	if err != nil {
		return 0, err
	}
	if resp.Kind != proto.DeviceResponseBatteryLevel {
		return 0, transport.ErrProtocolIssue
	}
	return resp.BatteryLevel, resp.Err
}

// SetDeviceConfig applies device-wide display configuration.
func (e *Endpoint) SetDeviceConfig(ctx context.Context, cfg model.DeviceConfig) error {
	resp, err := e.link.SendHostCommand(ctx, &proto.HostCommand{Kind: proto.HostCommandSetConfig, Config: cfg})
	if err != nil {
		return err
	}
	if resp.Kind != proto.DeviceResponseConfigSet {
		return transport.ErrProtocolIssue
	}
	return resp.Err
}

// handlePeerDeviceCommand answers the device's own initiated commands by
// delegating to the application-supplied DataSource.
func (e *Endpoint) handlePeerDeviceCommand(cmd *proto.DeviceCommand) *proto.HostResponse {
	switch cmd.Kind {
	case proto.DeviceCommandPing:
		if err := e.ds.Ping(); err != nil {
			return &proto.HostResponse{Kind: proto.HostResponsePing, Err: err}
		}
		return &proto.HostResponse{Kind: proto.HostResponsePing}
	case proto.DeviceCommandRefreshData:
		payload, err := e.ds.RefreshData(context.Background(), cmd.WidgetID)
		if err != nil {
			return &proto.HostResponse{Kind: proto.HostResponseRefreshData, Err: err}
		}
		return &proto.HostResponse{Kind: proto.HostResponseRefreshData, Payload: payload}
	default:
		return &proto.HostResponse{Kind: proto.HostResponsePing, Err: transport.ErrInvalidMessage}
	}
}
