package transcoder

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// timestampLayout keeps microsecond precision and the timezone offset.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// UUIDAsHex transcodes 128-bit identifiers as 32-character hex strings.
type UUIDAsHex struct{}

func (UUIDAsHex) Name() string       { return "uuid_hex" }
func (UUIDAsHex) Type() reflect.Type { return reflect.TypeOf(uuid.UUID{}) }

func (UUIDAsHex) Encode(value any) (any, error) {
	u, ok := value.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("expected uuid.UUID, got %T", value)
	}
	return fmt.Sprintf("%x", [16]byte(u)), nil
}

func (UUIDAsHex) Decode(data any) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("expected hex string, got %T", data)
	}
	return uuid.Parse(s)
}

// DecimalAsStr transcodes arbitrary-precision decimals as their exact
// string representation.
type DecimalAsStr struct{}

func (DecimalAsStr) Name() string       { return "decimal_str" }
func (DecimalAsStr) Type() reflect.Type { return reflect.TypeOf(decimal.Decimal{}) }

func (DecimalAsStr) Encode(value any) (any, error) {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil, fmt.Errorf("expected decimal.Decimal, got %T", value)
	}
	return d.String(), nil
}

func (DecimalAsStr) Decode(data any) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("expected decimal string, got %T", data)
	}
	return decimal.NewFromString(s)
}

// DatetimeAsISO transcodes wall-clock timestamps with microsecond
// precision and timezone offset.
type DatetimeAsISO struct{}

func (DatetimeAsISO) Name() string       { return "datetime_iso" }
func (DatetimeAsISO) Type() reflect.Type { return reflect.TypeOf(time.Time{}) }

func (DatetimeAsISO) Encode(value any) (any, error) {
	ts, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", value)
	}
	return ts.Truncate(time.Microsecond).Format(timestampLayout), nil
}

func (DatetimeAsISO) Decode(data any) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("expected timestamp string, got %T", data)
	}
	return time.Parse(timestampLayout, s)
}
