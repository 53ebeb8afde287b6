package session

import "bytes"

// DetachByte (Ctrl+B) detaches from the session instead of being sent.
const DetachByte byte = 0x02

// splitAtDetach returns the part of chunk to forward and whether the chunk
// contained DetachByte. Bytes after the first DetachByte are dropped.
func splitAtDetach(chunk []byte) (forward []byte, detach bool) {
	i := bytes.IndexByte(chunk, DetachByte)
	if i < 0 {
		return chunk, false
	}
	return chunk[:i], true
}
