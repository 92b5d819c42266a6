package webtransportpeer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeVideoDatagram_HeaderLayout(t *testing.T) {
	buf := encodeVideoDatagram(0x01020304, 0x0506, true, []byte{0xAA, 0xBB})

	require := assert.New(t)
	require.Len(buf, videoDatagramHeaderLen+2)
	require.Equal([]byte{0x01, 0x02, 0x03, 0x04}, buf[0:4])
	require.Equal([]byte{0x05, 0x06}, buf[4:6])
	require.Equal(byte(1), buf[6])
	require.Equal([]byte{0xAA, 0xBB}, buf[7:])
}

func TestEncodeVideoDatagram_NotLastClearsMarkerByte(t *testing.T) {
	buf := encodeVideoDatagram(0, 0, false, nil)
	assert.Equal(t, byte(0), buf[6])
	assert.Len(t, buf, videoDatagramHeaderLen)
}
