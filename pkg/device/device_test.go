package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
)

// fakeLink is an in-memory Link double: it lets the test drive
// handleHostCommand directly and capture what the endpoint sends out as
// its own DeviceCommand initiator calls.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
	handler   func(*proto.HostCommand) *proto.DeviceResponse
	sent      []*proto.DeviceCommand
	reply     *proto.HostResponse
	replyErr  error
}

func (f *fakeLink) SendDeviceCommand(ctx context.Context, cmd *proto.DeviceCommand) (*proto.HostResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	f.mu.Unlock()
	return f.reply, f.replyErr
}

func (f *fakeLink) SetHostCommandHandler(h func(*proto.HostCommand) *proto.DeviceResponse) {
	f.handler = h
}

func (f *fakeLink) IsConnected() bool { return f.connected }
func (f *fakeLink) Close() error      { f.connected = false; return nil }

func TestGetWidgetHitAndMiss(t *testing.T) {
	link := &fakeLink{connected: true}
	ep := New(link, nil)

	resp := link.handler(&proto.HostCommand{Kind: proto.HostCommandGetWidget, WidgetID: 1})
	if resp.Err != transport.ErrWidgetNotFound {
		t.Fatalf("expected WidgetNotFound for empty store, got %v", resp.Err)
	}

	state := model.NewMemoryState()
	state.Widgets[1] = model.WidgetDescriptor{ID: 1, Payload: model.WidgetPayload{Kind: "text", Data: []byte("hi")}}
	setResp := link.handler(&proto.HostCommand{Kind: proto.HostCommandSetState, State: state})
	if setResp.Err != nil {
		t.Fatalf("unexpected SetState error: %v", setResp.Err)
	}

	resp = link.handler(&proto.HostCommand{Kind: proto.HostCommandGetWidget, WidgetID: 1})
	if resp.Err != nil || string(resp.Payload.Data) != "hi" {
		t.Fatalf("unexpected widget lookup result: %+v", resp)
	}
	_ = ep
}

func TestSetStateRejectsTooManyPeriodicWidgets(t *testing.T) {
	link := &fakeLink{connected: true}
	New(link, nil)

	state := model.NewMemoryState()
	for i := 0; i < MaxRefreshTasks+1; i++ {
		id := model.WidgetID(i)
		state.Widgets[id] = model.WidgetDescriptor{ID: id, UpdatePeriod: time.Minute}
	}

	resp := link.handler(&proto.HostCommand{Kind: proto.HostCommandSetState, State: state})
	if resp.Err != transport.ErrInternalError {
		t.Fatalf("expected InternalError when exceeding MaxRefreshTasks, got %v", resp.Err)
	}
}

func TestRefreshTaskStopsAfterGenerationChange(t *testing.T) {
	link := &fakeLink{connected: true, reply: &proto.HostResponse{Kind: proto.HostResponseRefreshData, Payload: model.WidgetPayload{Kind: "text", Data: []byte("v2")}}}
	New(link, nil)

	state := model.NewMemoryState()
	state.Widgets[1] = model.WidgetDescriptor{ID: 1, UpdatePeriod: 10 * time.Millisecond, Payload: model.WidgetPayload{Kind: "text", Data: []byte("v1")}}
	link.handler(&proto.HostCommand{Kind: proto.HostCommandSetState, State: state})

	time.Sleep(35 * time.Millisecond)

	// Superseding SetState bumps the generation; the old task must stop
	// touching the store once it next wakes.
	newState := model.NewMemoryState()
	newState.Widgets[1] = model.WidgetDescriptor{ID: 1, Payload: model.WidgetPayload{Kind: "text", Data: []byte("frozen")}}
	link.handler(&proto.HostCommand{Kind: proto.HostCommandSetState, State: newState})

	time.Sleep(35 * time.Millisecond)

	resp := link.handler(&proto.HostCommand{Kind: proto.HostCommandGetWidget, WidgetID: 1})
	if string(resp.Payload.Data) != "frozen" {
		t.Fatalf("expected the superseded generation's task to stop mutating state, got %q", resp.Payload.Data)
	}
}

func TestPingProtocolMismatchIsProtocolIssue(t *testing.T) {
	link := &fakeLink{connected: true, reply: &proto.HostResponse{Kind: proto.HostResponseRefreshData}}
	ep := New(link, nil)

	err := ep.Ping(context.Background())
	if err != transport.ErrProtocolIssue {
		t.Fatalf("expected ErrProtocolIssue on kind mismatch, got %v", err)
	}
}
