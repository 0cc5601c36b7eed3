package stream

import (
	"context"
	"testing"
	"time"

	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
)

func TestDialListenRequestResponseRoundTrip(t *testing.T) {
	cfg := transport.Config{RequestTimeout: 2 * time.Second, DeviceGrace: time.Second}
	ln, err := Listen("127.0.0.1:0", cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	acceptCh := make(chan *Link, 1)
	go func() {
		link, err := ln.Accept(context.Background())
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		acceptCh <- link
	}()

	hostLink, err := Dial(context.Background(), ln.Addr().String(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer hostLink.Close()

	deviceLink := <-acceptCh
	defer deviceLink.Close()

	deviceLink.SetHostCommandHandler(func(cmd *proto.HostCommand) *proto.DeviceResponse {
		if cmd.Kind != proto.HostCommandGetBatteryLevel {
			t.Errorf("unexpected command kind %v", cmd.Kind)
		}
		return &proto.DeviceResponse{Kind: proto.DeviceResponseBatteryLevel, BatteryLevel: 10}
	})

	hostLink.SetDeviceCommandHandler(func(cmd *proto.DeviceCommand) *proto.HostResponse {
		if cmd.Kind != proto.DeviceCommandPing {
			t.Errorf("unexpected command kind %v", cmd.Kind)
		}
		return &proto.HostResponse{Kind: proto.HostResponsePing}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := hostLink.SendHostCommand(ctx, &proto.HostCommand{Kind: proto.HostCommandGetBatteryLevel})
	if err != nil {
		t.Fatalf("get battery level: %v", err)
	}
	if resp.BatteryLevel != 10 {
		t.Fatalf("expected battery level 10, got %d", resp.BatteryLevel)
	}

	hresp, err := deviceLink.SendDeviceCommand(ctx, &proto.DeviceCommand{Kind: proto.DeviceCommandPing})
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if hresp.Kind != proto.HostResponsePing {
		t.Fatalf("unexpected response kind %v", hresp.Kind)
	}
}

func TestSendAfterCloseFailsNotConnected(t *testing.T) {
	cfg := transport.Config{RequestTimeout: time.Second, DeviceGrace: time.Second}
	ln, err := Listen("127.0.0.1:0", cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	acceptCh := make(chan *Link, 1)
	go func() {
		link, _ := ln.Accept(context.Background())
		acceptCh <- link
	}()

	hostLink, err := Dial(context.Background(), ln.Addr().String(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	<-acceptCh
	hostLink.Close()

	_, err = hostLink.SendHostCommand(context.Background(), &proto.HostCommand{Kind: proto.HostCommandPing})
	if err != transport.ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestTimeoutFreesCorrelationEntry(t *testing.T) {
	cfg := transport.Config{RequestTimeout: 50 * time.Millisecond, DeviceGrace: 0}
	ln, err := Listen("127.0.0.1:0", cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	acceptCh := make(chan *Link, 1)
	go func() {
		link, _ := ln.Accept(context.Background())
		acceptCh <- link
	}()

	hostLink, err := Dial(context.Background(), ln.Addr().String(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer hostLink.Close()
	deviceLink := <-acceptCh
	defer deviceLink.Close()
	// No handler installed on the device side: the GetWidget request is
	// never answered, forcing a timeout.

	_, err = hostLink.SendHostCommand(context.Background(), &proto.HostCommand{Kind: proto.HostCommandGetWidget, WidgetID: model.WidgetID(1)})
	if err != transport.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if hostLink.hostCorr.Len() != 0 {
		t.Fatalf("expected correlation table to be empty after timeout, got %d entries", hostLink.hostCorr.Len())
	}
}
