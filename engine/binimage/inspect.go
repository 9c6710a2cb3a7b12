package binimage

import (
	"bufio"
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// ChunkInfo describes one chunk of an image for inspection tools
type ChunkInfo struct {
	Name        string
	StorageSize uint64
	DataSize    uint64
}

// ImageInfo is the header plus the chunk directory of an image
type ImageInfo struct {
	Version    string
	Compressed bool
	Chunks     []ChunkInfo
}

// Inspect reads an image's framing without reconstructing the engine.
// Compressed images are detected and unwrapped.
func Inspect(in io.Reader) (*ImageInfo, error) {
	br := bufio.NewReader(in)
	info := &ImageInfo{}

	peek, err := br.Peek(len(ImagePrefix))
	var src io.Reader = br
	if err != nil || !bytes.Equal(peek, []byte(ImagePrefix)) {
		src = brotli.NewReader(br)
		info.Compressed = true
	}

	if err := readHeader(src); err != nil {
		return nil, err
	}
	info.Version = ImageVersion

	for {
		name, err := readLenPrefixed(src)
		if err != nil {
			return nil, err
		}
		if len(name) == 0 {
			break
		}
		storage, err := readLenPrefixed(src)
		if err != nil {
			return nil, err
		}
		data, err := readLenPrefixed(src)
		if err != nil {
			return nil, err
		}
		info.Chunks = append(info.Chunks, ChunkInfo{
			Name:        string(name),
			StorageSize: uint64(len(storage)),
			DataSize:    uint64(len(data)),
		})
	}
	return info, nil
}
