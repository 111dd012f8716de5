package ir

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

var magic = [4]byte{'P', 'B', 'C', '1'}

// ImageVersion is bumped whenever the instruction set or the image layout
// changes.
const ImageVersion = 1

var ErrBadImage = errors.New("bad image")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ir: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Source is one file read while building an image.
type Source struct {
	Path   string   `cbor:"1,keyasint"`
	Digest [32]byte `cbor:"2,keyasint"`
}

// Image is a self-contained snapshot of every compiled function reachable
// from an entry point. It runs without the compiler.
type Image struct {
	Version   int         `cbor:"1,keyasint"`
	BuildID   string      `cbor:"2,keyasint,omitempty"`
	Entry     DefID       `cbor:"3,keyasint"`
	EntryName string      `cbor:"4,keyasint"`
	Functions []*Function `cbor:"5,keyasint"`
	Sources   []Source    `cbor:"6,keyasint,omitempty"`

	byID map[DefID]*Function
}

// NewImage builds an image with functions sorted by DefID.
func NewImage(entry *Function, fns []*Function, sources []Source) *Image {
	sorted := append([]*Function(nil), fns...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Image{
		Version:   ImageVersion,
		Entry:     entry.ID,
		EntryName: entry.Name,
		Functions: sorted,
		Sources:   sources,
	}
}

// Function looks up a compiled function by id.
func (img *Image) Function(id DefID) (*Function, error) {
	if img.byID == nil {
		img.byID = make(map[DefID]*Function, len(img.Functions))
		for _, fn := range img.Functions {
			img.byID[fn.ID] = fn
		}
	}
	fn, ok := img.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: no function #%d", ErrBadImage, id)
	}
	return fn, nil
}

// EntryFunction returns the function the image was built for.
func (img *Image) EntryFunction() (*Function, error) {
	return img.Function(img.Entry)
}

// MarshalImage serializes an image: a four byte magic followed by CBOR.
func MarshalImage(img *Image) ([]byte, error) {
	body, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("ir: marshal image: %w", err)
	}
	out := make([]byte, 0, len(magic)+len(body))
	out = append(out, magic[:]...)
	return append(out, body...), nil
}

// UnmarshalImage deserializes an image written by MarshalImage.
func UnmarshalImage(data []byte) (*Image, error) {
	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("%w: missing magic header", ErrBadImage)
	}
	var img Image
	if err := cbor.Unmarshal(data[len(magic):], &img); err != nil {
		return nil, fmt.Errorf("ir: unmarshal image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadImage, img.Version, ImageVersion)
	}
	if _, err := img.EntryFunction(); err != nil {
		return nil, err
	}
	return &img, nil
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic[:])
}

func WriteImageFile(filename string, img *Image) error {
	data, err := MarshalImage(img)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

func ReadImageFile(filename string) (*Image, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return UnmarshalImage(data)
}
