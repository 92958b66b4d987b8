// Package wav writes and inspects canonical 44-byte-header PCM WAV files.
// Files are streamed with placeholder sizes and patched in place once the
// amount of audio is known.
package wav
