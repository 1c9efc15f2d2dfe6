package wire

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint8RoundTripAllValues(t *testing.T) {
	buf := NewBuffer(256)
	for v := 0; v <= math.MaxUint8; v++ {
		buf.PutUint8(uint8(v))
	}
	require.Equal(t, 256, buf.Len())

	for want := 0; want <= math.MaxUint8; want++ {
		got, err := buf.GetUint8()
		require.NoError(t, err)
		require.Equal(t, uint8(want), got)
	}
	assert.Equal(t, 0, buf.Unread())
}

func TestPutUint8IntRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"zero", 0, false},
		{"max", 255, false},
		{"negative", -1, true},
		{"too large", 256, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(0)
			err := buf.PutUint8Int(tt.value)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, []byte{byte(tt.value)}, buf.Bytes())
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRange))
			var re *RangeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, int64(tt.value), re.Value)
			assert.Equal(t, 0, buf.Len(), "nothing may be written on a range error")
		})
	}
}

func TestUint32BigEndian(t *testing.T) {
	buf := NewBuffer(4)
	buf.PutUint32(2)
	assert.Equal(t, []byte{0, 0, 0, 2}, buf.Bytes())

	buf.Reset()
	buf.PutUint32(0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
}

func TestUint32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 2, 255, 256, 65535, 1 << 24, 1000000, math.MaxUint32 - 1, math.MaxUint32}
	buf := NewBuffer(0)
	for _, v := range values {
		buf.PutUint32(v)
	}
	for _, want := range values {
		got, err := buf.GetUint32()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPutUint32IntRange(t *testing.T) {
	buf := NewBuffer(0)
	require.NoError(t, buf.PutUint32Int(math.MaxUint32))
	assert.ErrorIs(t, buf.PutUint32Int(math.MaxUint32+1), ErrRange)
	assert.ErrorIs(t, buf.PutUint32Int(-5), ErrRange)
	assert.Equal(t, 4, buf.Len())
}

func TestStringEncoding(t *testing.T) {
	buf := NewBuffer(0)
	require.NoError(t, buf.PutString("hello"))
	assert.Equal(t, []byte{0, 0, 0, 5, 104, 101, 108, 108, 111}, buf.Bytes())

	got, err := buf.GetString()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestStringRoundTrip(t *testing.T) {
	values := []string{"", "a", "hello, im robot", "héllo wörld", "日本語テキスト", "emoji 🚀 ok", string(make([]byte, 4096))}
	buf := NewBuffer(0)
	for _, s := range values {
		require.NoError(t, buf.PutString(s))
	}
	for _, want := range values {
		got, err := buf.GetString()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestStringLengthIsByteLength(t *testing.T) {
	buf := NewBuffer(0)
	require.NoError(t, buf.PutString("é"))
	assert.Equal(t, []byte{0, 0, 0, 2, 0xC3, 0xA9}, buf.Bytes())
}

func TestMixedSequence(t *testing.T) {
	buf := NewBuffer(0)
	buf.PutUint8(1)
	buf.PutUint32(2)
	require.NoError(t, buf.PutString("hello"))
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0, 5, 104, 101, 108, 108, 111}, buf.Bytes())

	parse := FromBytes(buf.Bytes())
	u8, err := parse.GetUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), u8)
	u32, err := parse.GetUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), u32)
	s, err := parse.GetString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestGetUnderflow(t *testing.T) {
	buf := FromBytes([]byte{0, 0, 1})

	_, err := buf.GetUint32()
	require.ErrorIs(t, err, ErrUnderflow)
	assert.Equal(t, 0, buf.ReadOffset(), "failed read must not advance the cursor")

	var ue *UnderflowError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 4, ue.Need)
	assert.Equal(t, 3, ue.Have)

	empty := NewBuffer(0)
	_, err = empty.GetUint8()
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestGetStringShortBody(t *testing.T) {
	// Prefix claims 10 bytes, only 3 follow.
	buf := FromBytes([]byte{0, 0, 0, 10, 'a', 'b', 'c'})
	_, err := buf.GetString()
	require.ErrorIs(t, err, ErrUnderflow)
	assert.Equal(t, 0, buf.ReadOffset())
	assert.Equal(t, 7, buf.Unread())
}

func TestGetStringHugePrefix(t *testing.T) {
	buf := FromBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'x'})
	_, err := buf.GetString()
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestBytesIgnoresReadCursor(t *testing.T) {
	buf := NewBuffer(0)
	buf.PutUint8(7)
	buf.PutUint8(8)
	_, err := buf.GetUint8()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8}, buf.Bytes())
	assert.Equal(t, []byte{8}, buf.Rest())
}

func TestFromBytesNoCopy(t *testing.T) {
	src := []byte{1, 2, 3}
	buf := FromBytes(src)
	src[0] = 9
	got, err := buf.GetUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), got)
	assert.Equal(t, 3, buf.Len())
}

func TestFromBytesAppendGrows(t *testing.T) {
	buf := FromBytes([]byte{1})
	buf.PutUint32(2)
	assert.Equal(t, []byte{1, 0, 0, 0, 2}, buf.Bytes())
}

func TestGrowPreservesData(t *testing.T) {
	buf := NewBuffer(1)
	for i := 0; i < 1000; i++ {
		buf.PutUint32(uint32(i))
	}
	require.Equal(t, 4000, buf.Len())
	for i := 0; i < 1000; i++ {
		v, err := buf.GetUint32()
		require.NoError(t, err)
		require.Equal(t, uint32(i), v)
	}
}
