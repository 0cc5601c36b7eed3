package host

import (
	"context"
	"sync"
	"testing"

	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
)

type fakeLink struct {
	mu        sync.Mutex
	connected bool
	handler   func(*proto.DeviceCommand) *proto.HostResponse
	reply     *proto.DeviceResponse
	replyErr  error
	lastCmd   *proto.HostCommand
}

func (f *fakeLink) SendHostCommand(ctx context.Context, cmd *proto.HostCommand) (*proto.DeviceResponse, error) {
	f.mu.Lock()
	f.lastCmd = cmd
	f.mu.Unlock()
	return f.reply, f.replyErr
}

func (f *fakeLink) SetDeviceCommandHandler(h func(*proto.DeviceCommand) *proto.HostResponse) {
	f.handler = h
}

func (f *fakeLink) IsConnected() bool { return f.connected }
func (f *fakeLink) Close() error      { f.connected = false; return nil }

func TestGetWidgetReturnsPayload(t *testing.T) {
	link := &fakeLink{connected: true, reply: &proto.DeviceResponse{
		Kind:    proto.DeviceResponseWidgetGet,
		Payload: model.WidgetPayload{Kind: "text", Data: []byte("hello")},
	}}
	ep := New(link, nil, nil)

	payload, err := ep.GetWidget(context.Background(), model.WidgetID(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload.Data) != "hello" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGetWidgetKindMismatchIsProtocolIssue(t *testing.T) {
	link := &fakeLink{connected: true, reply: &proto.DeviceResponse{Kind: proto.DeviceResponsePong}}
	ep := New(link, nil, nil)

	_, err := ep.GetWidget(context.Background(), model.WidgetID(1))
	if err != transport.ErrProtocolIssue {
		t.Fatalf("expected ErrProtocolIssue, got %v", err)
	}
}

func TestDefaultDataSourceAnswersPing(t *testing.T) {
	link := &fakeLink{connected: true}
	New(link, nil, nil)

	resp := link.handler(&proto.DeviceCommand{Kind: proto.DeviceCommandPing})
	if resp.Kind != proto.HostResponsePing || resp.Err != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDefaultDataSourceRefreshDataIsWidgetNotFound(t *testing.T) {
	link := &fakeLink{connected: true}
	New(link, nil, nil)

	resp := link.handler(&proto.DeviceCommand{Kind: proto.DeviceCommandRefreshData, WidgetID: model.WidgetID(9)})
	if resp.Err != transport.ErrWidgetNotFound {
		t.Fatalf("expected WidgetNotFound from NoopDataSource, got %v", resp.Err)
	}
}
