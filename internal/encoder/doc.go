// Package encoder writes buffer snapshots to audio and analytics file formats.
//
// # Supported Formats
//
//   - WAV: integer PCM playable by any audio tool
//   - Parquet: one row per sample, for columnar analysis
//   - Avro: one record per frame in an object container file
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(event.FormatWAV, "pcm16")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := enc.Encode(path, snapshot)
//
// # Compression Options
//
//	WAV:     "pcm16" (default), "pcm24"
//	Parquet: "snappy" (default), "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "gzip" (default, whole file), "deflate", "snappy" (per block), "uncompressed"
//
// Snapshots without a whole frame are rejected with ErrEmptySnapshot.
//
// Encoder instances hold no per-call state and are safe for concurrent use.
package encoder
