// Package artifact reads and writes the on-disk blobs produced by training:
// the fitted vocabulary and one file per classifier. Every file carries a
// metadata envelope (kind, model id, vocabulary version) next to its payload
// and a CRC32 footer, and is written through a temp file and a rename so a
// serving process never observes a half-written artifact.
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

// MagicBytes identifies a valid .fnda artifact file.
const (
	MagicBytes    uint32 = 0x464E4441
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 8
	Extension            = ".fnda"
)

// Artifact kinds.
const (
	KindVocabulary = "vocabulary"
	KindClassifier = "classifier"
)

var ErrCorrupt = errors.New("corrupt artifact")

// Meta is the envelope stored ahead of every payload.
type Meta struct {
	Kind              string    `json:"kind"`
	ModelID           string    `json:"model_id,omitempty"`
	Family            string    `json:"family,omitempty"`
	VocabularyVersion string    `json:"vocabulary_version,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Encode serialises meta and payload into the artifact wire format:
// a fixed header, the JSON meta, the JSON payload and a CRC32 footer over
// both JSON sections.
func Encode(meta Meta, payload any) ([]byte, error) {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact meta: %w", err)
	}
	payloadData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact payload: %w", err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(meta.CreatedAt.Unix()))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(metaData)))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(payloadData)))

	crc := crc32.NewIEEE()
	crc.Write(metaData)
	crc.Write(payloadData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())

	var b bytes.Buffer
	b.Grow(HeaderSize + len(metaData) + len(payloadData) + FooterSize)
	b.Write(header)
	b.Write(metaData)
	b.Write(payloadData)
	b.Write(footer)
	return b.Bytes(), nil
}

// Decode validates data and returns its meta and raw JSON payload.
func Decode(data []byte) (Meta, json.RawMessage, error) {
	var meta Meta
	if len(data) < HeaderSize+FooterSize {
		return meta, nil, fmt.Errorf("%w: %d bytes is shorter than header and footer", ErrCorrupt, len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicBytes {
		return meta, nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return meta, nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, version)
	}
	metaSize := binary.LittleEndian.Uint64(data[16:24])
	payloadSize := binary.LittleEndian.Uint64(data[24:32])
	body := uint64(len(data) - HeaderSize - FooterSize)
	if metaSize > body || payloadSize > body || metaSize+payloadSize != body {
		return meta, nil, fmt.Errorf("%w: section sizes %d+%d do not match body of %d bytes", ErrCorrupt, metaSize, payloadSize, body)
	}
	metaStart := uint64(HeaderSize)
	payloadStart := metaStart + metaSize
	payloadEnd := payloadStart + payloadSize

	want := binary.LittleEndian.Uint32(data[payloadEnd : payloadEnd+4])
	if got := crc32.ChecksumIEEE(data[metaStart:payloadEnd]); got != want {
		return meta, nil, fmt.Errorf("%w: checksum %08x, expected %08x", ErrCorrupt, got, want)
	}
	if err := json.Unmarshal(data[metaStart:payloadStart], &meta); err != nil {
		return meta, nil, fmt.Errorf("%w: parsing meta: %v", ErrCorrupt, err)
	}
	payload := make(json.RawMessage, payloadSize)
	copy(payload, data[payloadStart:payloadEnd])
	return meta, payload, nil
}
