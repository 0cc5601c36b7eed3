// Package model defines the upstream data types the transport carries but
// does not interpret: widget payloads, device memory state, and device
// configuration. The real rendering and persistence of these types lives
// above this repository; here they are opaque values with a wire shape.
package model

import "time"

// WidgetID identifies a widget slot on the device. Equality is by value.
type WidgetID uint32

// WidgetPayload is the opaque content exchanged for a single widget. Kind
// tags what the bytes mean to the upper layer; the transport never
// inspects Data.
type WidgetPayload struct {
	Kind string
	Data []byte
}

// WidgetDescriptor is one entry of a MemoryState's widget map. UpdatePeriod
// of zero means the widget has no periodic refresh task.
type WidgetDescriptor struct {
	ID           WidgetID
	Payload      WidgetPayload
	UpdatePeriod time.Duration
}

// Layout names an ordered arrangement of widgets on the display. Its
// geometry is out of scope here; only the widget membership matters to the
// transport's serialization contract.
type Layout struct {
	Name      string
	WidgetIDs []WidgetID
}

// MemoryState is the device's complete display state, as pushed by the
// host via SetState.
type MemoryState struct {
	Widgets      map[WidgetID]WidgetDescriptor
	ActiveLayout int
	Layouts      []Layout
}

// NewMemoryState returns an empty, ready-to-use MemoryState.
func NewMemoryState() MemoryState {
	return MemoryState{Widgets: make(map[WidgetID]WidgetDescriptor)}
}

// DeviceConfig holds device-wide display preferences pushed by the host.
type DeviceConfig struct {
	DarkMode bool
}
