package util

import (
	"bytes"
	"sync"
)

// maxPooledBuf bounds the capacity of buffers returned to the pool so
// that one large command output does not pin memory.
const maxPooledBuf = 1 << 20

// bufPool provides reusable buffers for capturing remote output.
var bufPool = sync.Pool{ //nolint:gochecknoglobals
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer retrieves an empty buffer from the pool.  Callers must
// return it with [PutBuffer] when finished.
func GetBuffer() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

// PutBuffer resets buf and returns it to the pool.  Oversized buffers
// are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuf {
		return
	}
	buf.Reset()
	bufPool.Put(buf)
}
