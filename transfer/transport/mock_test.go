package transport

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchlabs/rch/rchapi"
)

func TestMockDialAndPreflightDefaults(t *testing.T) {
	m := NewMock(4)
	sess, err := m.Dial(context.Background(), rchapi.Worker{ID: "w1"})
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	res, err := sess.Preflight(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.FreeSlots)
	assert.Empty(t, res.Missing)
}

func TestMockDialError(t *testing.T) {
	m := NewMock(1)
	m.SetDialError(errors.New("connection refused"))

	_, err := m.Dial(context.Background(), rchapi.Worker{ID: "w1"})
	require.Error(t, err)
}

func TestMockStreamDrainsThenEOF(t *testing.T) {
	m := NewMock(1)
	sess, err := m.Dial(context.Background(), rchapi.Worker{ID: "w1"})
	require.NoError(t, err)
	stream, err := sess.OpenStream(context.Background())
	require.NoError(t, err)

	_, err = stream.Write([]byte("payload"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := stream.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	_, err = stream.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMockStreamWriteAfterCloseFails(t *testing.T) {
	m := NewMock(1)
	sess, err := m.Dial(context.Background(), rchapi.Worker{ID: "w1"})
	require.NoError(t, err)
	stream, err := sess.OpenStream(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	_, err = stream.Write([]byte("too late"))
	assert.Error(t, err)
}
