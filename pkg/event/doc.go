// Package event defines the payloads that leave the buffer manager.
//
// # Lifecycle notifications
//
// The manager reports buffer creation, removal, failed creation and runtime
// faults as Lifecycle values. Publishers wrap them in CloudEvents 1.0
// envelopes whose type is the Kind:
//
//	audiobuf.buffer.created
//	audiobuf.buffer.removed
//	audiobuf.buffer.failed
//	audiobuf.buffer.faulted
//
// # Snapshots
//
// Snapshot is a point-in-time copy of a buffer's frames. Encoders turn it into
// WAV, Parquet or Avro files and storage writers upload those files:
//
//	snap := &event.Snapshot{
//	    BufferID:   "vocals",
//	    SampleRate: 48000,
//	    Channels:   2,
//	    Samples:    samples,
//	}
//	fmt.Println(snap.Frames(), snap.Duration())
package event
