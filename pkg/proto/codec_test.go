package proto

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/transport"
	"github.com/cse115a/memori-transport/pkg/wire"
)

func TestStreamMessageRoundTrip(t *testing.T) {
	msg := &StreamMessage{
		Seq:  7,
		Kind: StreamKindHostRequest,
		HostCmd: &HostCommand{
			Kind: HostCommandSetState,
			State: model.MemoryState{
				Widgets: map[model.WidgetID]model.WidgetDescriptor{
					3: {ID: 3, Payload: model.WidgetPayload{Kind: "text", Data: []byte("hi")}, UpdatePeriod: 2 * time.Second},
				},
				ActiveLayout: 1,
				Layouts:      []model.Layout{{Name: "home", WidgetIDs: []model.WidgetID{3}}},
			},
		},
	}
	encoded := EncodeStreamMessage(msg)

	var buf bytes.Buffer
	if err := wire.WriteStreamFrame(&buf, encoded); err != nil {
		t.Fatal(err)
	}
	payload, err := wire.ReadStreamFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeStreamMessage(payload)
	if err != nil {
		t.Fatal(err)
	}
	if got.Seq != msg.Seq || got.Kind != msg.Kind {
		t.Fatalf("header mismatch: %+v", got)
	}
	wd := got.HostCmd.State.Widgets[3]
	if wd.Payload.Kind != "text" || string(wd.Payload.Data) != "hi" || wd.UpdatePeriod != 2*time.Second {
		t.Fatalf("widget mismatch: %+v", wd)
	}
	if got.HostCmd.State.ActiveLayout != 1 || len(got.HostCmd.State.Layouts) != 1 {
		t.Fatalf("layout mismatch: %+v", got.HostCmd.State)
	}
}

func TestBlePacketRoundTripIgnoresTrailingZeros(t *testing.T) {
	p := &BlePacket{
		ID:   42,
		Side: BleSideDevice,
		Role: BleRoleCommand,
		DeviceCmd: &DeviceCommand{
			Kind:     DeviceCommandRefreshData,
			WidgetID: 9,
		},
	}
	encoded, err := EncodeBlePacket(p)
	if err != nil {
		t.Fatal(err)
	}
	framed, err := wire.WriteBLEFrame(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(framed) != wire.BLECharSize {
		t.Fatalf("expected fixed frame size, got %d", len(framed))
	}
	got, err := DecodeBlePacket(framed)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 42 || got.Side != BleSideDevice || got.Role != BleRoleCommand {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.DeviceCmd.Kind != DeviceCommandRefreshData || got.DeviceCmd.WidgetID != 9 {
		t.Fatalf("payload mismatch: %+v", got.DeviceCmd)
	}
}

func TestEmptyStreamPayloadIsInvalidMessage(t *testing.T) {
	_, err := DecodeStreamMessage(nil)
	if !errors.Is(err, transport.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage for empty payload, got %v", err)
	}
}

func TestDeviceResponseErrRoundTrip(t *testing.T) {
	resp := &DeviceResponse{Kind: DeviceResponseWidgetGet, Err: transport.ErrWidgetNotFound}
	encoded := EncodeDeviceResponse(resp)
	got, err := DecodeDeviceResponse(wire.NewReader(encoded))
	if err != nil {
		t.Fatal(err)
	}
	te, ok := got.Err.(*transport.Error)
	if !ok || te.Kind != transport.ErrKindWidgetNotFound {
		t.Fatalf("expected WidgetNotFound, got %v", got.Err)
	}
}

func TestBatteryLevelRoundTrip(t *testing.T) {
	resp := &DeviceResponse{Kind: DeviceResponseBatteryLevel, BatteryLevel: 73}
	got, err := DecodeDeviceResponse(wire.NewReader(EncodeDeviceResponse(resp)))
	if err != nil {
		t.Fatal(err)
	}
	if got.BatteryLevel != 73 {
		t.Fatalf("expected 73, got %d", got.BatteryLevel)
	}
}
