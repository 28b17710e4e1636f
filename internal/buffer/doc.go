// Package buffer implements the audio buffer variants and the manager that
// owns them.
//
// # Variants
//
// Five types implement buffer.Buffer:
//
//   - MemoryBuffer: flat in-process storage that grows up to MaxMemoryMB
//   - DiskBuffer: positioned I/O on a file, one chunk of scratch memory
//   - StreamingBuffer: a file read through an LRU cache of chunks
//   - RingBuffer: fixed-capacity circular storage for the real-time thread
//   - PooledBuffer: fixed storage drawn from and returned to the pool
//
// Buffers are created through a Manager:
//
//	mgr, err := buffer.NewManager(buffer.ManagerConfig{MaxMemoryMB: 512}, logger)
//
//	cfg := pkgbuffer.Config{
//	    SampleRate:  44100,
//	    Channels:    2,
//	    BufferSize:  8192,
//	    MaxMemoryMB: 20,
//	}
//	buf, err := mgr.CreateBuffer("vocals", pkgbuffer.TypeMemory, cfg)
//
//	n, err := buf.Write(frames)
//	err = buf.Seek(0)
//	out, err := buf.Read(n)
//
//	removed, err := mgr.RemoveBuffer("vocals")
//
// # Budget
//
// Each buffer reserves the most memory it can ever hold when it is created:
// MaxMemoryMB for memory buffers, BufferSize frames for ring and pooled
// buffers, the cache for streaming buffers and one chunk for disk buffers.
// A creation that would push the reservations past the manager budget fails
// with a MemoryExhaustedError and the id reports StateError until removed.
//
// # Thread Safety
//
// The manager is safe for concurrent use. A buffer is safe for concurrent use
// only when created with ThreadSafe; its lock is held for one copy or one
// chunk of file I/O. Metrics are atomic counters and never take the buffer
// lock. Operations on different buffers never contend.
//
// # States
//
// Buffers start in StateCreated and become StateActive on the first
// successful operation. Budget and I/O faults move them to StateError, after
// which every operation fails with ErrBufferFaulted. RemoveBuffer moves them
// to StateClosed; holders of the removed buffer then get ErrBufferClosed.
package buffer
