package overlay

import (
	"encoding/binary"

	"github.com/auriora/edenfs/internal/fserrors"
)

// EncodeHeader renders h into its fixed HeaderSize-byte wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Tag)
	binary.BigEndian.PutUint32(buf[1:5], h.Version)
	putTimestamp(buf[5:17], h.Atime)
	putTimestamp(buf[17:29], h.Mtime)
	putTimestamp(buf[29:41], h.Ctime)
	return buf
}

// DecodeHeader parses a HeaderSize-byte prefix back into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fserrors.Newf(fserrors.CorruptSnapshot, "overlay header truncated: need %d bytes, got %d", HeaderSize, len(buf))
	}
	h := Header{
		Tag:     HeaderTag(buf[0]),
		Version: binary.BigEndian.Uint32(buf[1:5]),
		Atime:   getTimestamp(buf[5:17]),
		Mtime:   getTimestamp(buf[17:29]),
		Ctime:   getTimestamp(buf[29:41]),
	}
	if h.Version != HeaderVersion {
		return Header{}, fserrors.Newf(fserrors.CorruptSnapshot, "unsupported overlay header version %d", h.Version)
	}
	return h, nil
}

func putTimestamp(buf []byte, ts Timestamp) {
	binary.BigEndian.PutUint64(buf[0:8], uint64(ts.Seconds))
	binary.BigEndian.PutUint32(buf[8:12], ts.Nanoseconds)
}

func getTimestamp(buf []byte) Timestamp {
	return Timestamp{
		Seconds:     int64(binary.BigEndian.Uint64(buf[0:8])),
		Nanoseconds: binary.BigEndian.Uint32(buf[8:12]),
	}
}
