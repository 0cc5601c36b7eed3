package proto

import (
	"time"

	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/cse115a/memori-transport/pkg/wire"
)

func durationFromNanos(v uint64) time.Duration {
	return time.Duration(v)
}

// result discriminants on the wire: 0 = Ok, 1 = Err.
const (
	resultOk  = 0
	resultErr = 1
)

func writeResult(w *wire.Writer, err error) {
	te, ok := err.(*transport.Error)
	if err == nil {
		w.WriteDiscriminant(resultOk)
		return
	}
	w.WriteDiscriminant(resultErr)
	if ok {
		w.WriteUint32(uint32(te.Kind))
	} else {
		w.WriteUint32(uint32(transport.ErrKindInternalError))
	}
}

func readResult(r *wire.Reader) (err error, decErr error) {
	d, decErr := r.ReadDiscriminant()
	if decErr != nil {
		return nil, decErr
	}
	if d == resultOk {
		return nil, nil
	}
	kind, decErr := r.ReadUint32()
	if decErr != nil {
		return nil, decErr
	}
	return &transport.Error{Kind: transport.ErrorKind(kind)}, nil
}

func writeWidgetPayload(w *wire.Writer, p model.WidgetPayload) {
	w.WriteString(p.Kind)
	w.WriteBytes(p.Data)
}

func readWidgetPayload(r *wire.Reader) (model.WidgetPayload, error) {
	kind, err := r.ReadString()
	if err != nil {
		return model.WidgetPayload{}, err
	}
	data, err := r.ReadBytes()
	if err != nil {
		return model.WidgetPayload{}, err
	}
	return model.WidgetPayload{Kind: kind, Data: data}, nil
}

func writeMemoryState(w *wire.Writer, s model.MemoryState) {
	w.WriteVarUint(uint64(len(s.Widgets)))
	for id, wd := range s.Widgets {
		w.WriteUint32(uint32(id))
		writeWidgetPayload(w, wd.Payload)
		w.WriteUint64(uint64(wd.UpdatePeriod))
	}
	w.WriteUint32(uint32(s.ActiveLayout))
	w.WriteVarUint(uint64(len(s.Layouts)))
	for _, l := range s.Layouts {
		w.WriteString(l.Name)
		w.WriteVarUint(uint64(len(l.WidgetIDs)))
		for _, id := range l.WidgetIDs {
			w.WriteUint32(uint32(id))
		}
	}
}

func readMemoryState(r *wire.Reader) (model.MemoryState, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return model.MemoryState{}, err
	}
	widgets := make(map[model.WidgetID]model.WidgetDescriptor, n)
	for i := uint64(0); i < n; i++ {
		idv, err := r.ReadUint32()
		if err != nil {
			return model.MemoryState{}, err
		}
		payload, err := readWidgetPayload(r)
		if err != nil {
			return model.MemoryState{}, err
		}
		periodv, err := r.ReadUint64()
		if err != nil {
			return model.MemoryState{}, err
		}
		id := model.WidgetID(idv)
		widgets[id] = model.WidgetDescriptor{
			ID:           id,
			Payload:      payload,
			UpdatePeriod: durationFromNanos(periodv),
		}
	}
	activeLayout, err := r.ReadUint32()
	if err != nil {
		return model.MemoryState{}, err
	}
	ln, err := r.ReadVarUint()
	if err != nil {
		return model.MemoryState{}, err
	}
	layouts := make([]model.Layout, 0, ln)
	for i := uint64(0); i < ln; i++ {
		name, err := r.ReadString()
		if err != nil {
			return model.MemoryState{}, err
		}
		wn, err := r.ReadVarUint()
		if err != nil {
			return model.MemoryState{}, err
		}
		ids := make([]model.WidgetID, 0, wn)
		for j := uint64(0); j < wn; j++ {
			idv, err := r.ReadUint32()
			if err != nil {
				return model.MemoryState{}, err
			}
			ids = append(ids, model.WidgetID(idv))
		}
		layouts = append(layouts, model.Layout{Name: name, WidgetIDs: ids})
	}
	return model.MemoryState{
		Widgets:      widgets,
		ActiveLayout: int(activeLayout),
		Layouts:      layouts,
	}, nil
}

func writeDeviceConfig(w *wire.Writer, c model.DeviceConfig) {
	w.WriteBool(c.DarkMode)
}

func readDeviceConfig(r *wire.Reader) (model.DeviceConfig, error) {
	v, err := r.ReadBool()
	if err != nil {
		return model.DeviceConfig{}, err
	}
	return model.DeviceConfig{DarkMode: v}, nil
}

// EncodeDeviceCommand serializes a DeviceCommand.
func EncodeDeviceCommand(c *DeviceCommand) []byte {
	w := wire.NewWriter()
	w.WriteDiscriminant(uint32(c.Kind))
	if c.Kind == DeviceCommandRefreshData {
		w.WriteUint32(uint32(c.WidgetID))
	}
	return w.Bytes()
}

// DecodeDeviceCommand deserializes a DeviceCommand.
func DecodeDeviceCommand(r *wire.Reader) (*DeviceCommand, error) {
	d, err := r.ReadDiscriminant()
	if err != nil {
		return nil, err
	}
	c := &DeviceCommand{Kind: DeviceCommandKind(d)}
	switch c.Kind {
	case DeviceCommandPing:
	case DeviceCommandRefreshData:
		id, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		c.WidgetID = model.WidgetID(id)
	default:
		return nil, transport.ErrInvalidMessage
	}
	return c, nil
}

// EncodeHostResponse serializes a HostResponse.
func EncodeHostResponse(resp *HostResponse) []byte {
	w := wire.NewWriter()
	w.WriteDiscriminant(uint32(resp.Kind))
	switch resp.Kind {
	case HostResponsePing:
		writeResult(w, resp.Err)
	case HostResponseRefreshData:
		writeResult(w, resp.Err)
		if resp.Err == nil {
			writeWidgetPayload(w, resp.Payload)
		}
	}
	return w.Bytes()
}

// DecodeHostResponse deserializes a HostResponse.
func DecodeHostResponse(r *wire.Reader) (*HostResponse, error) {
	d, err := r.ReadDiscriminant()
	if err != nil {
		return nil, err
	}
	resp := &HostResponse{Kind: HostResponseKind(d)}
	switch resp.Kind {
	case HostResponsePing:
		resp.Err, err = readResult(r)
	case HostResponseRefreshData:
		resp.Err, err = readResult(r)
		if err == nil && resp.Err == nil {
			resp.Payload, err = readWidgetPayload(r)
		}
	default:
		return nil, transport.ErrInvalidMessage
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// EncodeHostCommand serializes a HostCommand.
func EncodeHostCommand(cmd *HostCommand) []byte {
	w := wire.NewWriter()
	w.WriteDiscriminant(uint32(cmd.Kind))
	switch cmd.Kind {
	case HostCommandGetWidget:
		w.WriteUint32(uint32(cmd.WidgetID))
	case HostCommandSetState:
		writeMemoryState(w, cmd.State)
	case HostCommandSetConfig:
		writeDeviceConfig(w, cmd.Config)
	case HostCommandGetBatteryLevel, HostCommandPing:
	}
	return w.Bytes()
}

// DecodeHostCommand deserializes a HostCommand.
func DecodeHostCommand(r *wire.Reader) (*HostCommand, error) {
	d, err := r.ReadDiscriminant()
	if err != nil {
		return nil, err
	}
	cmd := &HostCommand{Kind: HostCommandKind(d)}
	switch cmd.Kind {
	case HostCommandGetWidget:
		id, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		cmd.WidgetID = model.WidgetID(id)
	case HostCommandSetState:
		cmd.State, err = readMemoryState(r)
	case HostCommandSetConfig:
		cmd.Config, err = readDeviceConfig(r)
	case HostCommandGetBatteryLevel, HostCommandPing:
	default:
		return nil, transport.ErrInvalidMessage
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeDeviceResponse serializes a DeviceResponse.
func EncodeDeviceResponse(resp *DeviceResponse) []byte {
	w := wire.NewWriter()
	w.WriteDiscriminant(uint32(resp.Kind))
	switch resp.Kind {
	case DeviceResponseWidgetGet:
		writeResult(w, resp.Err)
		if resp.Err == nil {
			writeWidgetPayload(w, resp.Payload)
		}
	case DeviceResponseSetState, DeviceResponseConfigSet:
		writeResult(w, resp.Err)
	case DeviceResponseBatteryLevel:
		w.WriteUint8(resp.BatteryLevel)
	case DeviceResponsePong, DeviceResponseSuccess:
		// bare acknowledgements, no payload
	}
	return w.Bytes()
}

// DecodeDeviceResponse deserializes a DeviceResponse.
func DecodeDeviceResponse(r *wire.Reader) (*DeviceResponse, error) {
	d, err := r.ReadDiscriminant()
	if err != nil {
		return nil, err
	}
	resp := &DeviceResponse{Kind: DeviceResponseKind(d)}
	switch resp.Kind {
	case DeviceResponseWidgetGet:
		resp.Err, err = readResult(r)
		if err == nil && resp.Err == nil {
			resp.Payload, err = readWidgetPayload(r)
		}
	case DeviceResponseSetState, DeviceResponseConfigSet:
		resp.Err, err = readResult(r)
	case DeviceResponseBatteryLevel:
		resp.BatteryLevel, err = r.ReadUint8()
	case DeviceResponsePong, DeviceResponseSuccess:
	default:
		return nil, transport.ErrInvalidMessage
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
