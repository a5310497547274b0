package network

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionWriteFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	conn := NewConnection(server)

	readDone := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(client)
		readDone <- data
	}()

	require.NoError(t, conn.WriteFrame([]byte("hello\x00")))
	require.NoError(t, conn.WriteFrame([]byte("world\x00")))
	require.NoError(t, conn.Close())

	assert.Equal(t, []byte("hello\x00world\x00"), <-readDone)
}

func TestConnectionWriteAfterClose(t *testing.T) {
	_, server := net.Pipe()
	conn := NewConnection(server)

	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())

	err := conn.WriteFrame([]byte("late\x00"))
	assert.Error(t, err)

	// Close is idempotent
	assert.NoError(t, conn.Close())
}

func TestConnectionRead(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	conn := NewConnection(server)
	defer conn.Close()

	go func() {
		client.Write([]byte("09alice;pw\x00"))
	}()

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(buf[:n], []byte("09alice;pw\x00")))
}
