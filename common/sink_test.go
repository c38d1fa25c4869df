package common

import (
	"bufio"
	"bytes"
	"testing"

	assert "github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriterSink(t *testing.T) {
	var b bytes.Buffer
	s, err := NewWriterSink(&b)
	assert.NoError(t, err)

	assert.NoError(t, s.WriteLine("first"))
	assert.NoError(t, s.WriteLine("second\n"))
	assert.NoError(t, s.Flush())
	assert.Equal(t, "first\nsecond\n", b.String(), "Each line should be newline terminated once")
}

func TestWriterSinkFlushesBufferedWriter(t *testing.T) {
	var b bytes.Buffer
	w := bufio.NewWriter(&b)
	s, err := NewWriterSink(w)
	assert.NoError(t, err)

	assert.NoError(t, s.WriteLine("buffered"))
	assert.Equal(t, "", b.String(), "Line should be held in the buffer")
	assert.NoError(t, s.Flush())
	assert.Equal(t, "buffered\n", b.String(), "Flush should reach the underlying writer")
}

func TestNilSinksRejected(t *testing.T) {
	_, err := NewWriterSink(nil)
	assert.True(t, IsConfigError(err), "Expecting a ConfigError")

	_, err = NewZapSink(nil)
	assert.True(t, IsConfigError(err), "Expecting a ConfigError")
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s, err := NewZapSink(zap.New(core))
	assert.NoError(t, err)

	assert.NoError(t, s.WriteLine("MGMT-LoginStart target:h user:u\n"))
	assert.NoError(t, s.Flush())

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "MGMT-LoginStart target:h user:u", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}
