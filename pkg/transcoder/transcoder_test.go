package transcoder_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/transcoder"
)

func roundTrip(t *testing.T, tc *transcoder.Transcoder, value any) any {
	t.Helper()
	data, err := tc.Encode(value)
	require.NoError(t, err)
	decoded, err := tc.Decode(data)
	require.NoError(t, err)
	return decoded
}

func TestPrimitiveRoundTrip(t *testing.T) {
	tc := transcoder.New()

	t.Run("scalars", func(t *testing.T) {
		assert.Equal(t, nil, roundTrip(t, tc, nil))
		assert.Equal(t, true, roundTrip(t, tc, true))
		assert.Equal(t, int64(42), roundTrip(t, tc, int64(42)))
		assert.Equal(t, int64(-7), roundTrip(t, tc, -7))
		assert.Equal(t, 3.5, roundTrip(t, tc, 3.5))
		assert.Equal(t, "hello", roundTrip(t, tc, "hello"))
		assert.Equal(t, []byte{0x01, 0x02}, roundTrip(t, tc, []byte{0x01, 0x02}))
	})

	t.Run("containers", func(t *testing.T) {
		in := map[string]any{
			"items": []any{int64(1), "two", 3.0},
			"inner": map[string]any{"flag": false},
		}
		assert.Equal(t, in, roundTrip(t, tc, in))
	})
}

func TestCustomTypeRoundTrip(t *testing.T) {
	tc := transcoder.New()

	id := uuid.New()
	assert.Equal(t, id, roundTrip(t, tc, id))

	d := decimal.RequireFromString("123.4567890123456789")
	got := roundTrip(t, tc, d).(decimal.Decimal)
	assert.True(t, d.Equal(got), "expected %s, got %s", d, got)

	loc := time.FixedZone("", -3*60*60)
	ts := time.Date(2024, 5, 17, 10, 30, 15, 123456000, loc)
	gotTS := roundTrip(t, tc, ts).(time.Time)
	assert.True(t, ts.Equal(gotTS), "expected %s, got %s", ts, gotTS)

	nested := map[string]any{
		"id":     id,
		"amount": d,
		"when":   ts,
	}
	gotNested := roundTrip(t, tc, nested).(map[string]any)
	assert.Equal(t, id, gotNested["id"])
	assert.True(t, d.Equal(gotNested["amount"].(decimal.Decimal)))
	assert.True(t, ts.Equal(gotNested["when"].(time.Time)))
}

func TestUnknownTypeTagFailsNamingTag(t *testing.T) {
	tc := transcoder.New()

	// Encode with a transcoding the decoder will not have.
	data, err := tc.Encode(map[string]any{
		transcoder.TypeTagKey: "custom_thing",
		transcoder.DataKey:    "opaque",
	})
	require.NoError(t, err)

	_, err = tc.Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTranscoding)
	assert.Contains(t, err.Error(), "custom_thing")
}

func TestUnregisteredValueTypeFailsOnEncode(t *testing.T) {
	tc := transcoder.New()

	type custom struct{ A int }
	_, err := tc.Encode(map[string]any{"v": custom{A: 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTranscoding)
}

type tuple struct {
	X int64
	Y int64
}

type tupleTranscoding struct{}

func (tupleTranscoding) Name() string       { return "tuple_xy" }
func (tupleTranscoding) Type() reflect.Type { return reflect.TypeOf(tuple{}) }

func (tupleTranscoding) Encode(value any) (any, error) {
	tp := value.(tuple)
	return []any{tp.X, tp.Y}, nil
}

func (tupleTranscoding) Decode(data any) (any, error) {
	pair, ok := data.([]any)
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("expected two-element sequence, got %T", data)
	}
	return tuple{X: pair[0].(int64), Y: pair[1].(int64)}, nil
}

func TestRegisteredTranscoding(t *testing.T) {
	tc := transcoder.New()
	require.NoError(t, tc.Register(tupleTranscoding{}))

	in := tuple{X: 3, Y: 4}
	assert.Equal(t, in, roundTrip(t, tc, in))

	err := tc.Register(tupleTranscoding{})
	require.Error(t, err, "duplicate registration must fail")
}

func TestDecodeBodyMismatch(t *testing.T) {
	tc := transcoder.New()
	require.NoError(t, tc.Register(tupleTranscoding{}))

	data, err := tc.Encode(map[string]any{
		transcoder.TypeTagKey: "tuple_xy",
		transcoder.DataKey:    "not a sequence",
	})
	require.NoError(t, err)

	_, err = tc.Decode(data)
	require.Error(t, err)
	var terr *domain.TranscodingError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "tuple_xy", terr.Tag)
}
