package s2

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var (
	// ErrUnknownMessage is returned when message_type names no known message.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrMalformedMessage is returned for invalid JSON or missing required fields.
	ErrMalformedMessage = errors.New("malformed message")
)

// DecodeError describes a frame that could not be decoded. MessageType and
// MessageID are filled in as far as the frame allowed.
type DecodeError struct {
	Kind        error
	MessageType string
	MessageID   ID
	Detail      string
}

func (e *DecodeError) Error() string {
	if e.MessageType != "" {
		return fmt.Sprintf("s2: %v (%s): %s", e.Kind, e.MessageType, e.Detail)
	}
	return fmt.Sprintf("s2: %v: %s", e.Kind, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

var registry = map[MessageType]func() Message{
	TypeHandshake:               func() Message { return &Handshake{} },
	TypeHandshakeResponse:       func() Message { return &HandshakeResponse{} },
	TypeResourceManagerDetails:  func() Message { return &ResourceManagerDetails{} },
	TypeSelectControlType:       func() Message { return &SelectControlType{} },
	TypeSessionRequest:          func() Message { return &SessionRequest{} },
	TypeReceptionStatus:         func() Message { return &ReceptionStatus{} },
	TypeRevokeObject:            func() Message { return &RevokeObject{} },
	TypePowerMeasurement:        func() Message { return &PowerMeasurement{} },
	TypePowerForecast:           func() Message { return &PowerForecast{} },
	TypeInstructionStatusUpdate: func() Message { return &InstructionStatusUpdate{} },
	TypeFRBCSystemDescription:   func() Message { return &FRBCSystemDescription{} },
	TypeFRBCInstruction:         func() Message { return &FRBCInstruction{} },
	TypeFRBCStorageStatus:       func() Message { return &FRBCStorageStatus{} },
	TypeFRBCActuatorStatus:      func() Message { return &FRBCActuatorStatus{} },
	TypeFRBCLeakageBehaviour:    func() Message { return &FRBCLeakageBehaviour{} },
	TypeFRBCUsageForecast:       func() Message { return &FRBCUsageForecast{} },
	TypePEBCPowerConstraints:    func() Message { return &PEBCPowerConstraints{} },
	TypePEBCInstruction:         func() Message { return &PEBCInstruction{} },
}

// KnownTypes lists every message type the codec can decode.
func KnownTypes() []MessageType {
	types := make([]MessageType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

type envelope struct {
	MessageType string `json:"message_type"`
	MessageID   ID     `json:"message_id"`
}

// Encode serializes a message with its message_type discriminator.
func Encode(msg Message) ([]byte, error) {
	if msg == nil || reflect.ValueOf(msg).IsNil() {
		return nil, errors.New("s2: cannot encode nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("s2: encode %s: %w", msg.Type(), err)
	}
	typ, err := json.Marshal(string(msg.Type()))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(body)+len(typ)+17)
	buf = append(buf, `{"message_type":`...)
	buf = append(buf, typ...)
	if len(body) > 2 {
		buf = append(buf, ',')
	}
	return append(buf, body[1:]...), nil
}

// Decode parses a frame into its concrete message type. Errors are
// *DecodeError wrapping ErrUnknownMessage or ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Kind: ErrMalformedMessage, Detail: err.Error()}
	}
	if env.MessageType == "" {
		return nil, &DecodeError{Kind: ErrMalformedMessage, MessageID: env.MessageID, Detail: "missing message_type"}
	}
	factory, ok := registry[MessageType(env.MessageType)]
	if !ok {
		return nil, &DecodeError{Kind: ErrUnknownMessage, MessageType: env.MessageType, MessageID: env.MessageID, Detail: "no such message"}
	}
	msg := factory()
	if err := checkRequired(data, reflect.TypeOf(msg).Elem(), ""); err != nil {
		return nil, &DecodeError{Kind: ErrMalformedMessage, MessageType: env.MessageType, MessageID: env.MessageID, Detail: err.Error()}
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, &DecodeError{Kind: ErrMalformedMessage, MessageType: env.MessageType, MessageID: env.MessageID, Detail: err.Error()}
	}
	return msg, nil
}

// StatusFor maps a decode error to the ReceptionStatus reported to the peer.
func StatusFor(err error) ReceptionStatusValue {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrUnknownMessage):
		return StatusInvalidMessage
	case errors.Is(err, ErrMalformedMessage):
		return StatusInvalidData
	default:
		return StatusPermanentError
	}
}

var timeType = reflect.TypeOf(time.Time{})

// checkRequired walks t alongside the raw JSON. Fields whose json tag lacks
// omitempty are required to be present, and non-nullable ones must not be null.
func checkRequired(raw json.RawMessage, t reflect.Type, path string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return nil
	case t.Kind() == reflect.Struct:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("%s: expected object", fieldPath(path))
		}
		return checkStruct(obj, raw, t, path)
	case t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%s: expected array", fieldPath(path))
		}
		for i, item := range items {
			if err := checkRequired(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkStruct(obj map[string]json.RawMessage, raw json.RawMessage, t reflect.Type, path string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if f.Anonymous && tag == "" {
			if err := checkRequired(raw, f.Type, path); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		value, present := obj[name]
		if !present {
			if strings.Contains(opts, "omitempty") {
				continue
			}
			return fmt.Errorf("missing required field %q", joinPath(path, name))
		}
		if string(value) == "null" {
			if strings.Contains(opts, "omitempty") || nullable(f.Type) {
				continue
			}
			return fmt.Errorf("missing required field %q", joinPath(path, name))
		}
		if err := checkRequired(value, f.Type, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// nullable reports whether JSON null is a meaningful value for t.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func fieldPath(path string) string {
	if path == "" {
		return "message"
	}
	return path
}
