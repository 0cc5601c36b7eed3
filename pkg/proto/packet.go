package proto

import (
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/cse115a/memori-transport/pkg/wire"
)

// StreamKind discriminates the four StreamMessage payload shapes carried
// over the length-prefixed stream link. "Request" is the device's or
// host's own command family; the field is named Request on the wire to
// mirror which side originates it, not what type of response it is.
type StreamKind uint32

const (
	// StreamKindDeviceRequest carries a DeviceCommand.
	StreamKindDeviceRequest StreamKind = iota
	// StreamKindHostResponse carries a HostResponse.
	StreamKindHostResponse
	// StreamKindHostRequest carries a HostCommand.
	StreamKindHostRequest
	// StreamKindDeviceResponse carries a DeviceResponse.
	StreamKindDeviceResponse
)

// StreamMessage is the unit exchanged over the length-prefixed TCP link.
// By convention, odd Seq values originate from the device and even
// values from the host.
type StreamMessage struct {
	Seq        MessageID
	Kind       StreamKind
	DeviceCmd  *DeviceCommand
	HostResp   *HostResponse
	HostCmd    *HostCommand
	DeviceResp *DeviceResponse
}

// EncodeStreamMessage serializes m into the canonical wire contract
// consumed by pkg/wire's stream frame writer.
func EncodeStreamMessage(m *StreamMessage) []byte {
	w := wire.NewWriter()
	w.WriteUint32(uint32(m.Seq))
	w.WriteDiscriminant(uint32(m.Kind))
	switch m.Kind {
	case StreamKindDeviceRequest:
		w.WriteRaw(EncodeDeviceCommand(m.DeviceCmd))
	case StreamKindHostResponse:
		w.WriteRaw(EncodeHostResponse(m.HostResp))
	case StreamKindHostRequest:
		w.WriteRaw(EncodeHostCommand(m.HostCmd))
	case StreamKindDeviceResponse:
		w.WriteRaw(EncodeDeviceResponse(m.DeviceResp))
	}
	return w.Bytes()
}

// DecodeStreamMessage deserializes a StreamMessage from a full frame
// payload (the 4-byte length header is handled by pkg/wire separately).
func DecodeStreamMessage(payload []byte) (*StreamMessage, error) {
	r := wire.NewReader(payload)
	seq, err := r.ReadUint32()
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	kind, err := r.ReadDiscriminant()
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	m := &StreamMessage{Seq: MessageID(seq), Kind: StreamKind(kind)}
	switch m.Kind {
	case StreamKindDeviceRequest:
		m.DeviceCmd, err = DecodeDeviceCommand(r)
	case StreamKindHostResponse:
		m.HostResp, err = DecodeHostResponse(r)
	case StreamKindHostRequest:
		m.HostCmd, err = DecodeHostCommand(r)
	case StreamKindDeviceResponse:
		m.DeviceResp, err = DecodeDeviceResponse(r)
	default:
		return nil, transport.ErrInvalidMessage
	}
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	return m, nil
}

// BleSide tags which peer's sub-vocabulary a BlePacket payload belongs
// to.
type BleSide uint32

const (
	// BleSideHost carries a HostCommand or HostResponse.
	BleSideHost BleSide = iota
	// BleSideDevice carries a DeviceCommand or DeviceResponse.
	BleSideDevice
)

// BleRole tags whether a BlePacket payload is a command or a response,
// within its BleSide.
type BleRole uint32

const (
	// BleRoleCommand marks a HostCommand/DeviceCommand payload.
	BleRoleCommand BleRole = iota
	// BleRoleResponse marks a DeviceResponse/HostResponse payload.
	BleRoleResponse
)

// BlePacket is the unit exchanged over a single 128-byte BLE
// characteristic write or notification.
type BlePacket struct {
	ID   MessageID
	Side BleSide
	Role BleRole

	HostCmd    *HostCommand
	DeviceResp *DeviceResponse
	DeviceCmd  *DeviceCommand
	HostResp   *HostResponse
}

// EncodeBlePacket serializes p. The caller is responsible for padding the
// result to wire.BLECharSize via wire.WriteBLEFrame.
func EncodeBlePacket(p *BlePacket) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteUint32(uint32(p.ID))
	w.WriteDiscriminant(uint32(p.Side))
	w.WriteDiscriminant(uint32(p.Role))
	switch {
	case p.Side == BleSideHost && p.Role == BleRoleCommand:
		w.WriteRaw(EncodeHostCommand(p.HostCmd))
	case p.Side == BleSideHost && p.Role == BleRoleResponse:
		w.WriteRaw(EncodeDeviceResponse(p.DeviceResp))
	case p.Side == BleSideDevice && p.Role == BleRoleCommand:
		w.WriteRaw(EncodeDeviceCommand(p.DeviceCmd))
	case p.Side == BleSideDevice && p.Role == BleRoleResponse:
		w.WriteRaw(EncodeHostResponse(p.HostResp))
	default:
		return nil, transport.ErrInvalidMessage
	}
	return w.Bytes(), nil
}

// DecodeBlePacket deserializes the first valid BlePacket found at the
// start of frame, ignoring any trailing zero padding.
func DecodeBlePacket(frame []byte) (*BlePacket, error) {
	r := wire.NewReader(frame)
	id, err := r.ReadUint32()
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	side, err := r.ReadDiscriminant()
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	role, err := r.ReadDiscriminant()
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	p := &BlePacket{ID: MessageID(id), Side: BleSide(side), Role: BleRole(role)}
	switch {
	case p.Side == BleSideHost && p.Role == BleRoleCommand:
		p.HostCmd, err = DecodeHostCommand(r)
	case p.Side == BleSideHost && p.Role == BleRoleResponse:
		p.DeviceResp, err = DecodeDeviceResponse(r)
	case p.Side == BleSideDevice && p.Role == BleRoleCommand:
		p.DeviceCmd, err = DecodeDeviceCommand(r)
	case p.Side == BleSideDevice && p.Role == BleRoleResponse:
		p.HostResp, err = DecodeHostResponse(r)
	default:
		return nil, transport.ErrInvalidMessage
	}
	if err != nil {
		return nil, transport.ErrInvalidMessage
	}
	return p, nil
}
