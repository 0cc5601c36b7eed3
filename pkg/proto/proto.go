// Package proto defines the closed set of message variants exchanged
// between host and device, split into the four families from the data
// model: device-originated commands and their host responses, and
// host-originated commands and their device responses. Every packet
// carries a MessageID used for request/response correlation.
package proto

import "github.com/cse115a/memori-transport/pkg/model"

// MessageID is assigned by the initiator of a request; responses echo it
// unchanged. It is a wrapping counter — collisions within the timeout
// window are prevented by the window being far smaller than 2^32
// issuances at any realistic request rate.
type MessageID uint32

// DeviceCommandKind discriminates the DeviceCommand sum.
type DeviceCommandKind uint32

const (
	// DeviceCommandPing asks the host to acknowledge liveness.
	DeviceCommandPing DeviceCommandKind = iota
	// DeviceCommandRefreshData asks the host for the current payload of
	// a widget the device holds.
	DeviceCommandRefreshData
)

// DeviceCommand is issued by the device and answered by a HostResponse.
type DeviceCommand struct {
	Kind DeviceCommandKind
	// WidgetID is meaningful only when Kind == DeviceCommandRefreshData.
	WidgetID model.WidgetID
}

// HostResponseKind discriminates the HostResponse sum.
type HostResponseKind uint32

const (
	// HostResponsePing answers DeviceCommandPing.
	HostResponsePing HostResponseKind = iota
	// HostResponseRefreshData answers DeviceCommandRefreshData.
	HostResponseRefreshData
)

// HostResponse answers a DeviceCommand. Err is non-nil when the host's
// handling of the command failed; it is forwarded to the caller verbatim.
type HostResponse struct {
	Kind HostResponseKind
	// Payload holds the refreshed widget data when Kind ==
	// HostResponseRefreshData and Err == nil.
	Payload model.WidgetPayload
	Err     error
}

// HostCommandKind discriminates the HostCommand sum.
type HostCommandKind uint32

const (
	// HostCommandGetWidget asks the device for one widget's payload.
	HostCommandGetWidget HostCommandKind = iota
	// HostCommandSetState replaces the device's entire memory state.
	HostCommandSetState
	// HostCommandSetConfig applies device-wide display configuration.
	HostCommandSetConfig
	// HostCommandGetBatteryLevel asks the device for its battery level.
	HostCommandGetBatteryLevel
	// HostCommandPing asks the device to acknowledge liveness.
	HostCommandPing
)

// HostCommand is issued by the host and answered by a DeviceResponse.
type HostCommand struct {
	Kind HostCommandKind
	// WidgetID is meaningful only when Kind == HostCommandGetWidget.
	WidgetID model.WidgetID
	// State is meaningful only when Kind == HostCommandSetState.
	State model.MemoryState
	// Config is meaningful only when Kind == HostCommandSetConfig.
	Config model.DeviceConfig
}

// DeviceResponseKind discriminates the DeviceResponse sum.
type DeviceResponseKind uint32

const (
	// DeviceResponseWidgetGet answers HostCommandGetWidget.
	DeviceResponseWidgetGet DeviceResponseKind = iota
	// DeviceResponseSetState answers HostCommandSetState.
	DeviceResponseSetState
	// DeviceResponseConfigSet answers HostCommandSetConfig.
	DeviceResponseConfigSet
	// DeviceResponseBatteryLevel answers HostCommandGetBatteryLevel.
	DeviceResponseBatteryLevel
	// DeviceResponsePong answers HostCommandPing.
	DeviceResponsePong
	// DeviceResponseSuccess is a bare acknowledgement. Like
	// DeviceResponsePong it carries no payload on the wire.
	DeviceResponseSuccess
)

// DeviceResponse answers a HostCommand. Err is non-nil when the device's
// handling of the command failed; it is forwarded to the caller verbatim.
// Pong and Success are bare acknowledgements and never carry Err.
type DeviceResponse struct {
	Kind DeviceResponseKind
	// Payload holds the widget data when Kind == DeviceResponseWidgetGet
	// and Err == nil.
	Payload model.WidgetPayload
	// BatteryLevel holds 0..100 when Kind == DeviceResponseBatteryLevel.
	BatteryLevel uint8
	Err          error
}
