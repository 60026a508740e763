// Package transcoder encodes arbitrary value graphs into a self-describing
// CBOR document and back. Custom value types are handled by registered
// transcodings; on the wire they appear as a two-key mapping with a
// reserved type tag, and the decoder dispatches on that tag.
package transcoder

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/Unholster/eventsourcing/pkg/domain"
)

const (
	// TypeTagKey is the reserved mapping key naming a transcoding.
	TypeTagKey = "_type_"

	// DataKey is the reserved mapping key carrying the encoded body.
	DataKey = "_data_"
)

// Transcoding converts one custom value type to and from the transcoder's
// primitive forms (null, bool, integer, float, string, byte string,
// sequence, string-keyed mapping).
type Transcoding interface {
	// Name is the unique short tag written to the wire.
	Name() string

	// Type is the concrete Go type this transcoding handles.
	Type() reflect.Type

	// Encode converts a value of Type to a primitive or mapping.
	Encode(value any) (any, error)

	// Decode converts the primitive form back to a value of Type.
	Decode(data any) (any, error)
}

// Transcoder turns value maps into self-describing byte strings. The
// registry is populated at construction time and read-only afterwards, so
// a Transcoder may be shared across goroutines.
type Transcoder struct {
	byName map[string]Transcoding
	byType map[reflect.Type]Transcoding
	enc    cbor.EncMode
	dec    cbor.DecMode
}

// New creates a Transcoder with the built-in transcodings (UUIDs,
// arbitrary-precision decimals, timestamps) already registered.
func New() *Transcoder {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("transcoder: invalid encode options: %v", err))
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("transcoder: invalid decode options: %v", err))
	}

	t := &Transcoder{
		byName: make(map[string]Transcoding),
		byType: make(map[reflect.Type]Transcoding),
		enc:    enc,
		dec:    dec,
	}
	for _, tc := range []Transcoding{UUIDAsHex{}, DecimalAsStr{}, DatetimeAsISO{}} {
		if err := t.Register(tc); err != nil {
			panic(err)
		}
	}
	return t
}

// Register adds a transcoding. Names and target types must be unique.
func (t *Transcoder) Register(tc Transcoding) error {
	if _, dup := t.byName[tc.Name()]; dup {
		return fmt.Errorf("transcoding name %q already registered", tc.Name())
	}
	if _, dup := t.byType[tc.Type()]; dup {
		return fmt.Errorf("transcoding for type %s already registered", tc.Type())
	}
	t.byName[tc.Name()] = tc
	t.byType[tc.Type()] = tc
	return nil
}

// Encode serializes a value graph into a self-describing byte string.
func (t *Transcoder) Encode(value any) ([]byte, error) {
	lowered, err := t.lower(value)
	if err != nil {
		return nil, err
	}
	data, err := t.enc.Marshal(lowered)
	if err != nil {
		return nil, &domain.TranscodingError{Tag: fmt.Sprintf("%T", value), Reason: err.Error()}
	}
	return data, nil
}

// Decode deserializes a byte string produced by Encode.
func (t *Transcoder) Decode(data []byte) (any, error) {
	var raw any
	if err := t.dec.Unmarshal(data, &raw); err != nil {
		return nil, &domain.TranscodingError{Tag: "cbor", Reason: err.Error()}
	}
	return t.raise(raw)
}

// lower replaces registered custom values with their tagged wire form and
// validates that everything else is a supported primitive.
func (t *Transcoder) lower(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if tc, ok := t.byType[reflect.TypeOf(v)]; ok {
		body, err := tc.Encode(v)
		if err != nil {
			return nil, &domain.TranscodingError{Tag: tc.Name(), Reason: err.Error()}
		}
		lowered, err := t.lower(body)
		if err != nil {
			return nil, err
		}
		return map[string]any{TypeTagKey: tc.Name(), DataKey: lowered}, nil
	}

	switch x := v.(type) {
	case bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			lowered, err := t.lower(item)
			if err != nil {
				return nil, err
			}
			out[i] = lowered
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			lowered, err := t.lower(item)
			if err != nil {
				return nil, err
			}
			out[k] = lowered
		}
		return out, nil
	default:
		return nil, &domain.TranscodingError{
			Tag:    fmt.Sprintf("%T", v),
			Reason: "no transcoding registered for value type",
		}
	}
}

// raise dispatches tagged mappings to their transcoding and recurses into
// containers. Unknown tags fail, naming the missing transcoding.
func (t *Transcoder) raise(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if tag, tagged := x[TypeTagKey].(string); tagged && len(x) == 2 {
			body, hasBody := x[DataKey]
			if hasBody {
				tc, known := t.byName[tag]
				if !known {
					return nil, &domain.TranscodingError{Tag: tag, Reason: "no transcoding registered for type tag"}
				}
				raised, err := t.raise(body)
				if err != nil {
					return nil, err
				}
				value, err := tc.Decode(raised)
				if err != nil {
					return nil, &domain.TranscodingError{Tag: tag, Reason: err.Error()}
				}
				return value, nil
			}
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			raised, err := t.raise(item)
			if err != nil {
				return nil, err
			}
			out[k] = raised
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			raised, err := t.raise(item)
			if err != nil {
				return nil, err
			}
			out[i] = raised
		}
		return out, nil
	default:
		return v, nil
	}
}
