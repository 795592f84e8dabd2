package core

import (
	"fmt"
)

// ObjectStream represents a PDF object stream (/Type /ObjStm). Objects stored
// in it are referenced from xref streams by type-2 entries.
type ObjectStream struct {
	stream  *Stream
	n       int
	first   int
	extends *IndirectRef

	decoded []byte
	offsets []objectStreamOffset
	objects map[int]Object // index -> parsed object
}

// objectStreamOffset pairs an object number with its offset relative to /First.
type objectStreamOffset struct {
	ObjNum int
	Offset int
}

// NewObjectStream validates the stream dictionary. Decoding is deferred until
// the first object is requested.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}

	if t, ok := stream.Dict.GetName("Type"); !ok || t != "ObjStm" {
		return nil, fmt.Errorf("stream is not an object stream, got type: %v", stream.Dict.Get("Type"))
	}

	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has invalid /N: %v", stream.Dict.Get("N"))
	}
	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has invalid /First: %v", stream.Dict.Get("First"))
	}

	var extends *IndirectRef
	if obj := stream.Dict.Get("Extends"); obj != nil {
		ref, ok := obj.(IndirectRef)
		if !ok {
			return nil, fmt.Errorf("invalid /Extends type: %T", obj)
		}
		extends = &ref
	}

	return &ObjectStream{
		stream:  stream,
		n:       int(n),
		first:   int(first),
		extends: extends,
		objects: make(map[int]Object),
	}, nil
}

// N returns the number of objects declared by the stream.
func (s *ObjectStream) N() int { return s.n }

// First returns the offset of the first object in the decoded data.
func (s *ObjectStream) First() int { return s.first }

// Extends returns the object stream this one extends, or nil.
func (s *ObjectStream) Extends() *IndirectRef { return s.extends }

func (s *ObjectStream) decode() error {
	if s.decoded != nil {
		return nil
	}

	decoded, err := s.stream.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	if s.first > len(decoded) {
		return fmt.Errorf("/First (%d) exceeds decoded data length (%d)", s.first, len(decoded))
	}

	// The header is N pairs of "objNum offset".
	parser := NewParser(decoded[:s.first])
	offsets := make([]objectStreamOffset, 0, s.n)
	for i := 0; i < s.n; i++ {
		num, err1 := parser.ParseObject()
		off, err2 := parser.ParseObject()
		if err1 != nil || err2 != nil {
			return fmt.Errorf("object stream header truncated at pair %d", i)
		}
		numInt, ok1 := num.(Int)
		offInt, ok2 := off.(Int)
		if !ok1 || !ok2 {
			return fmt.Errorf("object stream header pair %d is not two integers", i)
		}
		offsets = append(offsets, objectStreamOffset{ObjNum: int(numInt), Offset: int(offInt)})
	}

	s.decoded = decoded
	s.offsets = offsets
	return nil
}

// GetObjectByIndex parses the object at the given header position. It
// returns the object and its object number.
func (s *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := s.decode(); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(s.offsets) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(s.offsets))
	}

	entry := s.offsets[index]
	if obj, ok := s.objects[index]; ok {
		return obj, entry.ObjNum, nil
	}

	start := s.first + entry.Offset
	if start < s.first || start >= len(s.decoded) {
		return nil, 0, fmt.Errorf("object offset %d outside decoded data of %d bytes", start, len(s.decoded))
	}
	end := len(s.decoded)
	if index+1 < len(s.offsets) {
		// Offsets are normally increasing; otherwise parse to the end.
		if next := s.first + s.offsets[index+1].Offset; next > start && next <= end {
			end = next
		}
	}

	obj, err := NewParser(s.decoded[start:end]).ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}

	s.objects[index] = obj
	return obj, entry.ObjNum, nil
}

// GetObjectByNumber finds an object by its object number and returns it with
// its index.
func (s *ObjectStream) GetObjectByNumber(objNum int) (Object, int, error) {
	if err := s.decode(); err != nil {
		return nil, 0, err
	}
	for i, entry := range s.offsets {
		if entry.ObjNum == objNum {
			obj, _, err := s.GetObjectByIndex(i)
			return obj, i, err
		}
	}
	return nil, 0, fmt.Errorf("object %d not found in object stream", objNum)
}

// ObjectNumbers returns the object numbers stored in the stream, in header order.
func (s *ObjectStream) ObjectNumbers() ([]int, error) {
	if err := s.decode(); err != nil {
		return nil, err
	}
	nums := make([]int, len(s.offsets))
	for i, entry := range s.offsets {
		nums[i] = entry.ObjNum
	}
	return nums, nil
}

// ContainsObject reports whether objNum is stored in this stream.
func (s *ObjectStream) ContainsObject(objNum int) (bool, error) {
	nums, err := s.ObjectNumbers()
	if err != nil {
		return false, err
	}
	for _, n := range nums {
		if n == objNum {
			return true, nil
		}
	}
	return false, nil
}
