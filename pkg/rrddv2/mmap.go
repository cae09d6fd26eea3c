package rrddv2

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// ReadFile memory-maps path read-only, parses the v2 header and metadata
// from it, and closes the mapping before returning. The mapping is held
// only for the duration of the parse, per the resource policy in spec §5.
func ReadFile(path string) (*Header, *Metadata, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("rrddv2: mmap open %s: %w", path, err)
	}
	defer r.Close()

	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, nil, fmt.Errorf("rrddv2: mmap read %s: %w", path, err)
	}

	hdr, err := ParseHeader(buf)
	if err != nil {
		return nil, nil, err
	}
	md, err := ParseMetadata(hdr.Metadata)
	if err != nil {
		return nil, nil, err
	}
	return hdr, md, nil
}
