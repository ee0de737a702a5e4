package devices

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is the JSON envelope for a device request:
//
//	{"kind": "share_fs", "config": {"fs_type": "virtio-fs", ...}}
type Request struct {
	Kind   Kind            `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ParseRequest decodes a device request envelope.
// Kinds without a dedicated variant decode to *OtherDevice; whether they can
// be attached is decided when the device is applied, not here.
func ParseRequest(data []byte) (Device, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req.Device()
}

// Device converts the envelope into a typed device.
func (r Request) Device() (Device, error) {
	switch r.Kind {
	case "":
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidRequest)
	case KindShareFs:
		var d ShareFsDevice
		if err := decodeConfig(r.Config, &d); err != nil {
			return nil, err
		}
		return &d, nil
	case KindHybridVsock:
		var d HybridVsockDevice
		if err := decodeConfig(r.Config, &d); err != nil {
			return nil, err
		}
		return &d, nil
	default:
		return &OtherDevice{DeviceKind: r.Kind}, nil
	}
}

// NewRequest builds the envelope for a device, the inverse of Request.Device.
func NewRequest(d Device) (Request, error) {
	req := Request{Kind: d.Kind()}
	if _, ok := d.(*OtherDevice); ok {
		return req, nil
	}
	cfg, err := json.Marshal(d)
	if err != nil {
		return Request{}, fmt.Errorf("marshal device config: %w", err)
	}
	req.Config = cfg
	return req, nil
}

func decodeConfig(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: config is required", ErrInvalidRequest)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
