package ingest

// sanitize.go provides streaming readers that clean up common raw-export
// problems before the CSV parser sees the bytes:
//
//   - bomSkipper removes a leading UTF-8 BOM (0xEF 0xBB 0xBF), commonly
//     added by Windows export tools.
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly.
//
// Both operate in O(buffer) memory so arbitrarily large exports never need to
// be loaded whole for cleanup.

import (
	"io"
	"unicode/utf8"
)

// wrapReader applies BOM skipping and UTF-8 sanitization in that order.
func wrapReader(r io.Reader) io.Reader {
	return &utf8Sanitizer{r: &bomSkipper{r: r}}
}

// bomSkipper drops a UTF-8 byte order mark from the start of the stream.
type bomSkipper struct {
	r        io.Reader
	checked  bool
	buffered []byte
	eof      bool
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var head [3]byte
		n, err := io.ReadFull(b.r, head[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if !(n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF) {
			b.buffered = append(b.buffered, head[:n]...)
		}
		if err == io.EOF {
			b.eof = true
		} else if err != nil {
			return 0, err
		}
	}
	if len(b.buffered) > 0 {
		n := copy(p, b.buffered)
		b.buffered = b.buffered[n:]
		return n, nil
	}
	if b.eof {
		return 0, io.EOF
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?'. A multi-byte sequence
// split across two reads is carried over in pending rather than mangled.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := copy(p, s.pending)
	s.pending = s.pending[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}

	// Hold back an incomplete trailing sequence for the next read. At EOF
	// there is no next read, so the tail falls through to replacement.
	if err != io.EOF {
		if tail := incompleteTail(p[:n]); tail > 0 {
			s.pending = append(s.pending, p[n-tail:n]...)
			n -= tail
		}
	}

	if !utf8.Valid(p[:n]) {
		n = replaceInvalid(p[:n])
	}
	return n, err
}

// replaceInvalid rewrites data in place, substituting '?' for each invalid
// byte, and returns the new length. A single-byte replacement keeps the
// buffer from growing mid-stream.
func replaceInvalid(data []byte) int {
	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTail returns how many bytes at the end of data form the start of
// a multi-byte sequence whose remainder has not been read yet.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 { // start of a multi-byte sequence
			if seqLen(b) > i {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 { // not a continuation byte
			return 0
		}
	}
	return 0
}

// seqLen returns the declared length of a UTF-8 sequence with lead byte b.
func seqLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
