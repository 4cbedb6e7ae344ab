package models

import (
	"errors"
	"fmt"
	"math"
)

// Kind tags the closed set of event records carried on the bus.
type Kind string

const (
	KindHostMetrics Kind = "host_metrics"
	KindPower       Kind = "power"
	KindWireless    Kind = "wireless"
	KindBluetooth   Kind = "bluetooth"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{KindHostMetrics, KindPower, KindWireless, KindBluetooth}

// ParseKind validates a kind name read from configuration.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Event is implemented only by the records in this package.
type Event interface {
	Kind() Kind
	Payload() Payload
	isEvent()
}

var schemas = map[Kind][]Field{
	KindHostMetrics: {
		{Name: "cpu_usage", Type: FieldFloat32},
		{Name: "total_memory", Type: FieldUint64},
		{Name: "available_memory", Type: FieldUint64},
	},
	KindPower: {
		{Name: "status", Type: FieldString},
		{Name: "percentage", Type: FieldFloat32},
	},
	KindWireless: {
		{Name: "signal_strength", Type: FieldString},
		{Name: "is_connected", Type: FieldBool},
		{Name: "is_enabled", Type: FieldBool},
		{Name: "frequency", Type: FieldString},
		{Name: "ssid", Type: FieldString},
	},
	KindBluetooth: {
		{Name: "is_connected", Type: FieldBool},
		{Name: "is_enabled", Type: FieldBool},
	},
}

// Schema returns the ordered field set of a kind, or nil for unknown kinds.
func Schema(kind Kind) []Field {
	fields := schemas[kind]
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Decode turns a received payload into the record for kind.
func Decode(kind Kind, p Payload) (Event, error) {
	switch kind {
	case KindHostMetrics:
		return DecodeHostMetrics(p)
	case KindPower:
		return DecodePower(p)
	case KindWireless:
		return DecodeWireless(p)
	case KindBluetooth:
		return DecodeBluetooth(p)
	}
	return nil, &DecodeError{Kind: kind, Reason: "unknown event kind"}
}

var (
	ErrCPUOutOfRange     = errors.New("cpu usage outside 0-100")
	ErrAvailableExceeded = errors.New("available memory exceeds total memory")
)

// HostMetricsEvent is a single CPU and memory reading.
type HostMetricsEvent struct {
	CPUUsage        float32 `json:"cpu_usage" yaml:"cpu_usage"`
	TotalMemory     uint64  `json:"total_memory" yaml:"total_memory"`
	AvailableMemory uint64  `json:"available_memory" yaml:"available_memory"`
}

// NewHostMetrics builds a reading from raw collector values, clamping them
// into the ranges Validate enforces.
func NewHostMetrics(cpuUsage float64, total, available uint64) HostMetricsEvent {
	switch {
	case math.IsNaN(cpuUsage) || cpuUsage < 0:
		cpuUsage = 0
	case cpuUsage > 100:
		cpuUsage = 100
	}
	if available > total {
		available = total
	}
	return HostMetricsEvent{
		CPUUsage:        float32(cpuUsage),
		TotalMemory:     total,
		AvailableMemory: available,
	}
}

func (HostMetricsEvent) Kind() Kind { return KindHostMetrics }
func (HostMetricsEvent) isEvent()   {}

func (e HostMetricsEvent) Payload() Payload {
	return Payload{
		"cpu_usage":        e.CPUUsage,
		"total_memory":     e.TotalMemory,
		"available_memory": e.AvailableMemory,
	}
}

// Validate checks the reading invariants.
func (e HostMetricsEvent) Validate() error {
	if math.IsNaN(float64(e.CPUUsage)) || e.CPUUsage < 0 || e.CPUUsage > 100 {
		return ErrCPUOutOfRange
	}
	if e.AvailableMemory > e.TotalMemory {
		return ErrAvailableExceeded
	}
	return nil
}

// UsedMemory is total minus available.
func (e HostMetricsEvent) UsedMemory() uint64 {
	return e.TotalMemory - e.AvailableMemory
}

// MemoryPercent is the used share of total memory, 0 when total is unknown.
func (e HostMetricsEvent) MemoryPercent() float64 {
	if e.TotalMemory == 0 {
		return 0
	}
	return float64(e.UsedMemory()) / float64(e.TotalMemory) * 100
}

func DecodeHostMetrics(p Payload) (HostMetricsEvent, error) {
	var e HostMetricsEvent
	var err error
	if e.CPUUsage, err = p.getFloat32(KindHostMetrics, "cpu_usage"); err != nil {
		return HostMetricsEvent{}, err
	}
	if e.TotalMemory, err = p.getUint64(KindHostMetrics, "total_memory"); err != nil {
		return HostMetricsEvent{}, err
	}
	if e.AvailableMemory, err = p.getUint64(KindHostMetrics, "available_memory"); err != nil {
		return HostMetricsEvent{}, err
	}
	return e, nil
}

// PowerEvent reports battery state.
type PowerEvent struct {
	Status     string  `json:"status" yaml:"status"`
	Percentage float32 `json:"percentage" yaml:"percentage"`
}

func (PowerEvent) Kind() Kind { return KindPower }
func (PowerEvent) isEvent()   {}

func (e PowerEvent) Payload() Payload {
	return Payload{
		"status":     e.Status,
		"percentage": e.Percentage,
	}
}

func DecodePower(p Payload) (PowerEvent, error) {
	var e PowerEvent
	var err error
	if e.Status, err = p.getString(KindPower, "status"); err != nil {
		return PowerEvent{}, err
	}
	if e.Percentage, err = p.getFloat32(KindPower, "percentage"); err != nil {
		return PowerEvent{}, err
	}
	return e, nil
}

// WirelessEvent reports the state of the wireless link.
type WirelessEvent struct {
	SignalStrength string `json:"signal_strength" yaml:"signal_strength"`
	IsConnected    bool   `json:"is_connected" yaml:"is_connected"`
	IsEnabled      bool   `json:"is_enabled" yaml:"is_enabled"`
	Frequency      string `json:"frequency" yaml:"frequency"`
	SSID           string `json:"ssid" yaml:"ssid"`
}

func (WirelessEvent) Kind() Kind { return KindWireless }
func (WirelessEvent) isEvent()   {}

func (e WirelessEvent) Payload() Payload {
	return Payload{
		"signal_strength": e.SignalStrength,
		"is_connected":    e.IsConnected,
		"is_enabled":      e.IsEnabled,
		"frequency":       e.Frequency,
		"ssid":            e.SSID,
	}
}

func DecodeWireless(p Payload) (WirelessEvent, error) {
	var e WirelessEvent
	var err error
	if e.SignalStrength, err = p.getString(KindWireless, "signal_strength"); err != nil {
		return WirelessEvent{}, err
	}
	if e.IsConnected, err = p.getBool(KindWireless, "is_connected"); err != nil {
		return WirelessEvent{}, err
	}
	if e.IsEnabled, err = p.getBool(KindWireless, "is_enabled"); err != nil {
		return WirelessEvent{}, err
	}
	if e.Frequency, err = p.getString(KindWireless, "frequency"); err != nil {
		return WirelessEvent{}, err
	}
	if e.SSID, err = p.getString(KindWireless, "ssid"); err != nil {
		return WirelessEvent{}, err
	}
	return e, nil
}

// BluetoothEvent reports the state of the bluetooth adapter.
type BluetoothEvent struct {
	IsConnected bool `json:"is_connected" yaml:"is_connected"`
	IsEnabled   bool `json:"is_enabled" yaml:"is_enabled"`
}

func (BluetoothEvent) Kind() Kind { return KindBluetooth }
func (BluetoothEvent) isEvent()   {}

func (e BluetoothEvent) Payload() Payload {
	return Payload{
		"is_connected": e.IsConnected,
		"is_enabled":   e.IsEnabled,
	}
}

func DecodeBluetooth(p Payload) (BluetoothEvent, error) {
	var e BluetoothEvent
	var err error
	if e.IsConnected, err = p.getBool(KindBluetooth, "is_connected"); err != nil {
		return BluetoothEvent{}, err
	}
	if e.IsEnabled, err = p.getBool(KindBluetooth, "is_enabled"); err != nil {
		return BluetoothEvent{}, err
	}
	return e, nil
}
