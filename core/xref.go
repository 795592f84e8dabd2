package core

import (
	"bytes"
	"fmt"
	"strconv"
)

// XRefEntry represents a single cross-reference entry. Classic tables only
// produce free and in-use entries; xref streams add compressed entries that
// live inside an object stream.
type XRefEntry struct {
	Offset     int64 // Byte offset in file (for in-use objects) or next free object number (for free objects)
	Generation int   // Generation number
	InUse      bool  // true if object is in use, false if free

	Compressed   bool // stored in an object stream
	StreamNumber int  // object number of the containing object stream
	StreamIndex  int  // index within the object stream
}

// XRefTable represents a PDF cross-reference table
type XRefTable struct {
	Entries map[int]*XRefEntry // Map from object number to XRef entry
	Trailer Dict               // Trailer dictionary
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: make(Dict),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or updates an XRef entry
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// Size returns the number of entries in the table
func (x *XRefTable) Size() int {
	return len(x.Entries)
}

// XRefParser parses cross-reference sections of a PDF held in memory.
type XRefParser struct {
	data []byte
}

// NewXRefParser creates a new XRef parser over the whole file.
func NewXRefParser(data []byte) *XRefParser {
	return &XRefParser{data: data}
}

var (
	startxrefKeyword = []byte("startxref")
	xrefKeyword      = []byte("xref")
	trailerKeyword   = []byte("trailer")
)

// FindXRef returns the offset recorded after the last "startxref" keyword.
func (x *XRefParser) FindXRef() (int64, error) {
	tail := x.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, startxrefKeyword)
	if idx == -1 {
		return 0, fmt.Errorf("startxref not found in PDF")
	}

	base := int64(len(x.data) - len(tail) + idx + len(startxrefKeyword))
	tok, err := NewLexerAt(x.data, base).NextToken()
	if err != nil || tok.Type != TokenInteger {
		return 0, fmt.Errorf("invalid startxref format")
	}
	offset, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid xref offset: %w", err)
	}
	if offset < 0 || offset >= int64(len(x.data)) {
		return 0, fmt.Errorf("xref offset %d outside file of %d bytes", offset, len(x.data))
	}
	return offset, nil
}

// isXRefStream reports whether the section at offset is an xref stream
// ("n g obj") rather than a classic "xref" table.
func (x *XRefParser) isXRefStream(offset int64) (bool, error) {
	tok, err := NewLexerAt(x.data, offset).NextToken()
	if err != nil {
		return false, err
	}
	switch {
	case tok.Type == TokenKeyword && bytes.Equal(tok.Value, xrefKeyword):
		return false, nil
	case tok.Type == TokenInteger:
		return true, nil
	default:
		return false, fmt.Errorf("no cross-reference section at offset %d", offset)
	}
}

// ParseXRef parses the cross-reference section (table or stream) at offset.
// For hybrid files the /XRefStm stream referenced by a classic trailer is
// merged into the result.
func (x *XRefParser) ParseXRef(offset int64) (*XRefTable, error) {
	isStream, err := x.isXRefStream(offset)
	if err != nil {
		return nil, err
	}
	if isStream {
		return x.parseXRefStreamAt(offset)
	}

	table, err := x.parseXRefTable(offset)
	if err != nil {
		return nil, err
	}

	if stmOff, ok := table.Trailer.GetInt("XRefStm"); ok {
		hidden, err := x.parseXRefStreamAt(int64(stmOff))
		if err == nil {
			for num, entry := range hidden.Entries {
				if existing, ok := table.Entries[num]; !ok || !existing.InUse {
					table.Entries[num] = entry
				}
			}
		}
	}
	return table, nil
}

// parseXRefTable parses a classic table: "xref", subsections of
// "first count" followed by "offset gen n|f" triples, then the trailer.
func (x *XRefParser) parseXRefTable(offset int64) (*XRefTable, error) {
	lex := NewLexerAt(x.data, offset)
	tok, err := lex.NextToken()
	if err != nil || tok.Type != TokenKeyword || !bytes.Equal(tok.Value, xrefKeyword) {
		return nil, fmt.Errorf("expected 'xref' keyword at offset %d", offset)
	}

	table := NewXRefTable()
	for {
		tok, err := lex.NextToken()
		if err != nil {
			return nil, fmt.Errorf("reading xref subsection: %w", err)
		}
		if tok.Type == TokenKeyword && bytes.Equal(tok.Value, trailerKeyword) {
			break
		}
		if tok.Type != TokenInteger {
			return nil, fmt.Errorf("invalid subsection header at offset %d", tok.Pos)
		}
		first, _ := strconv.Atoi(string(tok.Value))

		tok, err = lex.NextToken()
		if err != nil || tok.Type != TokenInteger {
			return nil, fmt.Errorf("invalid subsection count near offset %d", lex.Pos())
		}
		count, _ := strconv.Atoi(string(tok.Value))

		for i := 0; i < count; i++ {
			entry, err := x.parseEntry(lex)
			if err != nil {
				return nil, fmt.Errorf("failed to parse xref entry %d: %w", first+i, err)
			}
			table.Set(first+i, entry)
		}
	}

	trailer, err := x.parseTrailer(lex.Pos())
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer: %w", err)
	}
	table.Trailer = trailer
	return table, nil
}

// parseEntry reads one "offset generation flag" triple.
func (x *XRefParser) parseEntry(lex *Lexer) (*XRefEntry, error) {
	var fields [3]*Token
	for i := range fields {
		tok, err := lex.NextToken()
		if err != nil {
			return nil, err
		}
		fields[i] = tok
	}
	if fields[0].Type != TokenInteger || fields[1].Type != TokenInteger {
		return nil, fmt.Errorf("malformed entry near offset %d", fields[0].Pos)
	}

	offset, err := strconv.ParseInt(string(fields[0].Value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: %w", fields[0].Value, err)
	}
	generation, err := strconv.Atoi(string(fields[1].Value))
	if err != nil {
		return nil, fmt.Errorf("invalid generation %q: %w", fields[1].Value, err)
	}

	switch string(fields[2].Value) {
	case "n":
		return &XRefEntry{Offset: offset, Generation: generation, InUse: true}, nil
	case "f":
		return &XRefEntry{Offset: offset, Generation: generation}, nil
	default:
		return nil, fmt.Errorf("invalid in-use flag: %q", fields[2].Value)
	}
}

// parseTrailer parses the dictionary that follows the "trailer" keyword.
func (x *XRefParser) parseTrailer(offset int64) (Dict, error) {
	obj, err := NewParserAt(x.data, offset).ParseObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer dictionary: %w", err)
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("trailer is not a dictionary, got %T", obj)
	}
	return dict, nil
}

// parseXRefStreamAt parses the indirect object at offset as an xref stream.
func (x *XRefParser) parseXRefStreamAt(offset int64) (*XRefTable, error) {
	indirect, err := NewParserAt(x.data, offset).ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream object: %w", err)
	}
	stream, ok := indirect.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object at offset %d is not a stream", offset)
	}
	return ParseXRefStream(stream)
}

// ParseXRefStream decodes a cross-reference stream (/Type /XRef). The
// stream dictionary doubles as the trailer.
func ParseXRefStream(stream *Stream) (*XRefTable, error) {
	if t, _ := stream.Dict.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("stream is not an xref stream")
	}

	wArr, ok := stream.Dict.GetArray("W")
	if !ok || len(wArr) < 3 {
		return nil, fmt.Errorf("xref stream has invalid /W")
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		n, ok := wArr.GetInt(i)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("xref stream has invalid /W entry %d", i)
		}
		w[i] = int(n)
	}
	rowSize := w[0] + w[1] + w[2]
	if rowSize == 0 {
		return nil, fmt.Errorf("xref stream has zero-width rows")
	}

	size, _ := stream.Dict.GetInt("Size")
	index := []int{0, int(size)}
	if idxArr, ok := stream.Dict.GetArray("Index"); ok {
		index = index[:0]
		for i := range idxArr {
			n, ok := idxArr.GetInt(i)
			if !ok {
				return nil, fmt.Errorf("xref stream has invalid /Index")
			}
			index = append(index, int(n))
		}
		if len(index)%2 != 0 {
			return nil, fmt.Errorf("xref stream /Index has odd length")
		}
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	table := NewXRefTable()
	table.Trailer = stream.Dict

	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowSize > len(data) {
				// Truncated data: keep the rows that were complete.
				return table, nil
			}
			row := data[pos : pos+rowSize]
			pos += rowSize

			typ := int64(1)
			if w[0] > 0 {
				typ = readBigEndianInt(row[:w[0]], w[0])
			}
			f2 := readBigEndianInt(row[w[0]:w[0]+w[1]], w[1])
			f3 := readBigEndianInt(row[w[0]+w[1]:], w[2])

			switch typ {
			case 0:
				table.Set(first+j, &XRefEntry{Offset: f2, Generation: int(f3)})
			case 1:
				table.Set(first+j, &XRefEntry{Offset: f2, Generation: int(f3), InUse: true})
			case 2:
				table.Set(first+j, &XRefEntry{
					InUse:        true,
					Compressed:   true,
					StreamNumber: int(f2),
					StreamIndex:  int(f3),
				})
			default:
				// Unknown types are reserved and read as null objects.
			}
		}
	}
	return table, nil
}

// readBigEndianInt reads a big-endian unsigned integer of width bytes.
func readBigEndianInt(data []byte, width int) int64 {
	var v int64
	for i := 0; i < width && i < len(data); i++ {
		v = v<<8 | int64(data[i])
	}
	return v
}

// ParseAllXRefs parses the section named by startxref and every earlier
// section reachable through /Prev. Tables are returned oldest first.
func (x *XRefParser) ParseAllXRefs() ([]*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, fmt.Errorf("failed to find xref: %w", err)
	}

	var tables []*XRefTable
	seen := make(map[int64]bool)
	for {
		if seen[offset] {
			break // /Prev loop
		}
		seen[offset] = true

		table, err := x.ParseXRef(offset)
		if err != nil {
			if len(tables) == 0 {
				return nil, fmt.Errorf("failed to parse xref at offset %d: %w", offset, err)
			}
			// A broken older section loses only superseded history.
			break
		}
		tables = append([]*XRefTable{table}, tables...)

		prev, ok := table.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = int64(prev)
	}
	return tables, nil
}

// MergeXRefTables merges tables given oldest first. Later entries override
// earlier ones and trailer keys are merged with the newest value winning.
func MergeXRefTables(tables ...*XRefTable) *XRefTable {
	merged := NewXRefTable()
	for _, table := range tables {
		for objNum, entry := range table.Entries {
			merged.Set(objNum, entry)
		}
		for k, v := range table.Trailer {
			merged.Trailer[k] = v
		}
	}
	return merged
}

var objKeyword = []byte("obj")

// RebuildXRef reconstructs a table by scanning the file for "num gen obj"
// headers. Later definitions of the same object win. The trailer is merged
// from every "trailer" dictionary found; it may lack /Root when the file
// only has xref streams, in which case callers look for the catalog.
func RebuildXRef(data []byte) *XRefTable {
	table := NewXRefTable()

	for pos := 0; ; {
		idx := bytes.Index(data[pos:], objKeyword)
		if idx < 0 {
			break
		}
		at := pos + idx
		pos = at + len(objKeyword)

		if pos < len(data) && (isAlpha(data[pos]) || isDigit(data[pos])) {
			continue
		}
		num, gen, start, ok := objectHeaderBefore(data, at)
		if !ok {
			continue
		}
		table.Set(num, &XRefEntry{Offset: int64(start), Generation: gen, InUse: true})
	}

	for pos := 0; ; {
		idx := bytes.Index(data[pos:], trailerKeyword)
		if idx < 0 {
			break
		}
		pos += idx + len(trailerKeyword)
		obj, err := NewParserAt(data, int64(pos)).ParseObject()
		if err != nil {
			continue
		}
		if dict, ok := obj.(Dict); ok {
			for k, v := range dict {
				table.Trailer[k] = v
			}
		}
	}

	return table
}

// objectHeaderBefore matches "num ws gen ws" immediately before the "obj"
// keyword at position at.
func objectHeaderBefore(data []byte, at int) (num, gen, start int, ok bool) {
	i := at - 1
	if i < 0 || !isWhitespace(data[i]) {
		return 0, 0, 0, false
	}
	for i >= 0 && isWhitespace(data[i]) {
		i--
	}
	genEnd := i + 1
	for i >= 0 && isDigit(data[i]) {
		i--
	}
	genStart := i + 1
	if genStart == genEnd || i < 0 || !isWhitespace(data[i]) {
		return 0, 0, 0, false
	}
	for i >= 0 && isWhitespace(data[i]) {
		i--
	}
	numEnd := i + 1
	for i >= 0 && isDigit(data[i]) {
		i--
	}
	numStart := i + 1
	if numStart == numEnd {
		return 0, 0, 0, false
	}
	if i >= 0 && !isWhitespace(data[i]) && !isDelimiter(data[i]) {
		return 0, 0, 0, false
	}

	n, err1 := strconv.Atoi(string(data[numStart:numEnd]))
	g, err2 := strconv.Atoi(string(data[genStart:genEnd]))
	if err1 != nil || err2 != nil {
		return 0, 0, 0, false
	}
	return n, g, numStart, true
}
