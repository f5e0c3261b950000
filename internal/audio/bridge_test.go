package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEmptyReturnsSilence(t *testing.T) {
	b := NewBridge(1024)

	buf := bytes.Repeat([]byte{0xFF}, 64)
	n, err := b.Read(buf)

	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Equal(t, make([]byte, 64), buf)
}

func TestWriteReadFIFO(t *testing.T) {
	b := NewBridge(1024)

	_, err := b.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = b.Write([]byte{5, 6})
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{4, 5, 6}, buf)

	assert.Equal(t, 0, b.Buffered())
}

func TestWriteBlocksUntilRead(t *testing.T) {
	b := NewBridge(8)

	_, err := b.Write(make([]byte, 6))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = b.Write(make([]byte, 6))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("write should block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 6)
	_, err = b.Read(buf)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after read drained space")
	}
}

func TestFlushDiscardsPendingData(t *testing.T) {
	b := NewBridge(1024)

	_, err := b.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	b.Flush()

	buf := bytes.Repeat([]byte{0xFF}, 4)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, make([]byte, 4), buf, "no stale data survives a flush")
}

func TestFlushWakesBlockedWriter(t *testing.T) {
	b := NewBridge(8)

	_, err := b.Write(make([]byte, 8))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = b.Write(make([]byte, 4))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Flush()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush did not wake the blocked writer")
	}
}

func TestReadNeverExceedsWritten(t *testing.T) {
	b := NewBridge(256)

	const total = 100 * 1024
	go func() {
		chunk := bytes.Repeat([]byte{0xAB}, 64)
		for written := 0; written < total; written += len(chunk) {
			_, _ = b.Write(chunk)
		}
	}()

	var data int
	buf := make([]byte, 96)
	deadline := time.Now().Add(5 * time.Second)
	for data < total {
		require.Less(t, time.Now(), deadline, "reader starved")

		n, err := b.Read(buf)
		require.NoError(t, err)
		for _, v := range buf[:n] {
			if v == 0xAB {
				data++
			}
		}
	}

	assert.Equal(t, total, data)
}

func TestSinkForwardsSignalsAndBytes(t *testing.T) {
	b := NewBridge(1024)
	signals := make(chan SinkEvent, 2)
	sink := NewSink(b, signals)

	sink.Start()
	assert.Equal(t, SinkStart, <-signals)

	_, err := sink.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Buffered())

	sink.Stop()
	assert.Equal(t, SinkStop, <-signals)
	assert.Equal(t, 0, b.Buffered(), "stop flushes the bridge")
}

func TestSinkDropsSignalWhenReceiverGone(t *testing.T) {
	b := NewBridge(1024)
	signals := make(chan SinkEvent) // no receiver, zero capacity
	sink := NewSink(b, signals)

	done := make(chan struct{})
	go func() {
		sink.Start()
		sink.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink blocked on a gone receiver")
	}
}
