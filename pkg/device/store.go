package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cse115a/memori-transport/pkg/logger"
	"github.com/cse115a/memori-transport/pkg/model"
	"github.com/cse115a/memori-transport/pkg/proto"
	"github.com/cse115a/memori-transport/pkg/transport"
)

// MaxRefreshTasks is the default bound on how many periodic refresh
// goroutines a single SetState may spawn. Exceeding the bound fails the
// request rather than silently dropping widgets.
const MaxRefreshTasks = 32

// RefreshFunc fetches the current payload for a widget from the host, the
// same call the endpoint façade's RefreshData makes on the device's own
// initiative.
type RefreshFunc func(ctx context.Context, id model.WidgetID) (model.WidgetPayload, error)

// store owns the device's memory state and refresh-generation counter.
// Every SetState bumps the generation, which cooperatively cancels
// every refresh task born under a previous generation.
type store struct {
	mu           sync.Mutex
	state        model.MemoryState
	config       model.DeviceConfig
	batteryLevel uint8
	generation   atomic.Uint32
	cancelPrev   context.CancelFunc
	maxTasks     int

	refresh RefreshFunc
	logger  *logger.Logger
}

func newStore(log *logger.Logger, refresh RefreshFunc) *store {
	return &store{
		state:        model.NewMemoryState(),
		batteryLevel: 100,
		maxTasks:     MaxRefreshTasks,
		refresh:      refresh,
		logger:       log,
	}
}

// getWidget answers HostCommandGetWidget.
func (s *store) getWidget(id model.WidgetID) *proto.DeviceResponse {
	s.mu.Lock()
	w, ok := s.state.Widgets[id]
	s.mu.Unlock()
	if !ok {
		return &proto.DeviceResponse{Kind: proto.DeviceResponseWidgetGet, Err: transport.ErrWidgetNotFound}
	}
	return &proto.DeviceResponse{Kind: proto.DeviceResponseWidgetGet, Payload: w.Payload}
}

// setState answers HostCommandSetState: replace the state, bump the
// generation to cancel previously running refresh tasks, then spawn one
// refresh task per widget with a nonzero UpdatePeriod.
func (s *store) setState(newState model.MemoryState) *proto.DeviceResponse {
	s.mu.Lock()
	s.state = newState
	gen := s.generation.Add(1)
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelPrev = cancel

	periodic := make([]model.WidgetDescriptor, 0, len(newState.Widgets))
	for _, w := range newState.Widgets {
		if w.UpdatePeriod > 0 {
			periodic = append(periodic, w)
		}
	}
	s.mu.Unlock()

	if len(periodic) > s.maxTasks {
		return &proto.DeviceResponse{Kind: proto.DeviceResponseSetState, Err: transport.ErrInternalError}
	}
	for _, w := range periodic {
		go s.runRefreshTask(ctx, gen, w)
	}
	return &proto.DeviceResponse{Kind: proto.DeviceResponseSetState}
}

// setConfig answers HostCommandSetConfig.
func (s *store) setConfig(cfg model.DeviceConfig) *proto.DeviceResponse {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	return &proto.DeviceResponse{Kind: proto.DeviceResponseConfigSet}
}

// runRefreshTask is the per-widget refresh task lifecycle:
// sleep for the widget's period, check the generation is still
// current, and if so call RefreshData and update the stored entry.
func (s *store) runRefreshTask(ctx context.Context, birthGen uint32, w model.WidgetDescriptor) {
	ticker := time.NewTicker(w.UpdatePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.generation.Load() != birthGen {
			return
		}
		payload, err := s.refresh(ctx, w.ID)
		if err != nil {
			s.logger.Warn("device: refresh task failed, continuing", "widget", w.ID, "error", err)
			continue
		}
		s.mu.Lock()
		if s.generation.Load() == birthGen {
			if entry, ok := s.state.Widgets[w.ID]; ok {
				entry.Payload = payload
				s.state.Widgets[w.ID] = entry
			}
		}
		s.mu.Unlock()
	}
}
