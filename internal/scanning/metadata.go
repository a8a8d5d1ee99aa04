package scanning

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"
)

// SampleTextKey is the PNG text keyword holding the lines drawn onto a sample fixture
const SampleTextKey = "sample_text"

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var errNotPNG = errors.New("not a PNG image")

type pngChunk struct {
	typ   string
	data  []byte
	start int // offset of the length field
	end   int // offset just past the CRC
}

// readChunks walks the chunk list of a PNG stream
func readChunks(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errNotPNG
	}

	var chunks []pngChunk
	off := len(pngSignature)
	for off+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[off : off+4]))
		end := off + 12 + length
		if length < 0 || end > len(data) {
			return nil, fmt.Errorf("truncated %q chunk", data[off+4:off+8])
		}
		chunks = append(chunks, pngChunk{
			typ:   string(data[off+4 : off+8]),
			data:  data[off+8 : off+8+length],
			start: off,
			end:   end,
		})
		if string(data[off+4:off+8]) == "IEND" {
			break
		}
		off = end
	}
	return chunks, nil
}

// ReadPNGText returns the value of the tEXt, zTXt or iTXt entry named key
func ReadPNGText(data []byte, key string) (string, bool) {
	chunks, err := readChunks(data)
	if err != nil {
		return "", false
	}

	for _, c := range chunks {
		var (
			value string
			ok    bool
		)
		switch c.typ {
		case "tEXt":
			value, ok = decodeTEXt(c.data, key)
		case "zTXt":
			value, ok = decodeZTXt(c.data, key)
		case "iTXt":
			value, ok = decodeITXt(c.data, key)
		}
		if ok {
			return value, true
		}
	}
	return "", false
}

// WritePNGText inserts a text entry directly after the IHDR chunk. Values that fit
// Latin-1 go into tEXt, anything else into an uncompressed iTXt.
func WritePNGText(data []byte, key, value string) ([]byte, error) {
	chunks, err := readChunks(data)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || chunks[0].typ != "IHDR" {
		return nil, errors.New("PNG has no IHDR chunk")
	}

	var chunk []byte
	if latin1, ok := toLatin1(value); ok {
		chunk = encodeChunk("tEXt", concat([]byte(key), []byte{0}, latin1))
	} else {
		// keyword, NUL, compression flag, method, language tag NUL, translated keyword NUL, text
		chunk = encodeChunk("iTXt", concat([]byte(key), []byte{0, 0, 0, 0, 0}, []byte(value)))
	}

	insertAt := chunks[0].end
	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:insertAt]...)
	out = append(out, chunk...)
	out = append(out, data[insertAt:]...)
	return out, nil
}

func decodeTEXt(data []byte, key string) (string, bool) {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || string(keyword) != key {
		return "", false
	}
	return fromLatin1(rest), true
}

func decodeZTXt(data []byte, key string) (string, bool) {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || string(keyword) != key || len(rest) < 1 {
		return "", false
	}
	text, err := inflate(rest[1:])
	if err != nil {
		return "", false
	}
	return fromLatin1(text), true
}

func decodeITXt(data []byte, key string) (string, bool) {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || string(keyword) != key || len(rest) < 2 {
		return "", false
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	// language tag and translated keyword
	for i := 0; i < 2; i++ {
		if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
			return "", false
		}
	}
	if compressed {
		text, err := inflate(rest)
		if err != nil {
			return "", false
		}
		rest = text
	}
	if !utf8.Valid(rest) {
		return "", false
	}
	return string(rest), true
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func encodeChunk(typ string, data []byte) []byte {
	out := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(out[:4], uint32(len(data)))
	copy(out[4:8], typ)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[4:]))
}

func toLatin1(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, false
		}
		out = append(out, byte(r))
	}
	return out, true
}

func fromLatin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
