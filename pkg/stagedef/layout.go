package stagedef

// section is one decoded region of the source image. ref disambiguates
// regions of the same kind: the collision header index for per-header
// chunks, the model name arena index for name strings, -1 otherwise.
type section struct {
	kind  ChunkKind
	start int
	size  int
	ref   int
}

func (s section) end() int { return s.start + s.size }

// layout pairs the raw source image with its decoded sections, kept in
// file order. The encoder walks it to reproduce the image byte for byte,
// shifting downstream sections only where an edit changed a size. Bytes
// between sections are opaque and copied verbatim.
type layout struct {
	src      []byte
	sections []section
}

// placement is a section's position in the output image. effSize is the
// footprint actually reserved: grown sections round their growth up to
// four bytes so everything downstream keeps its alignment, shrunken
// sections keep their old footprint and zero-fill the tail.
type placement struct {
	sec      section
	newStart int
	newSize  int
	effSize  int
}

// region maps one span of the source image to its position in the output.
type region struct {
	oldStart int
	newStart int
	size     int
}

// addrMap is a piecewise old-to-new address translation built from every
// span the encoder lays out, sections and verbatim gaps alike. Pointers
// the stage does not model semantically are pushed through it so they
// still land on the bytes they pointed at.
type addrMap struct {
	regions []region
}

func (m *addrMap) add(oldStart, newStart, size int) {
	if size <= 0 {
		return
	}
	m.regions = append(m.regions, region{oldStart: oldStart, newStart: newStart, size: size})
}

// translate maps a source-image address to its output address. Addresses
// that fall outside every known span come back unchanged; zero is the
// null pointer and is never translated.
func (m *addrMap) translate(ptr uint32) uint32 {
	if ptr == 0 {
		return 0
	}
	p := int(ptr)
	for _, r := range m.regions {
		if p >= r.oldStart && p < r.oldStart+r.size {
			return uint32(r.newStart + (p - r.oldStart))
		}
	}
	return ptr
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}

func effectiveSize(oldSize, newSize int) int {
	if newSize <= oldSize {
		return oldSize
	}
	return oldSize + roundUp4(newSize-oldSize)
}
