package core

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver is an interface for resolving indirect references.
// This allows the parser to resolve indirect stream lengths when needed.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// maxNesting bounds array/dictionary nesting so hostile input cannot blow the stack.
const maxNesting = 512

// Parser parses PDF objects from an in-memory buffer using a Lexer for tokenization.
// It supports parsing all PDF object types including indirect objects and streams.
type Parser struct {
	lexer        *Lexer
	data         []byte
	currentToken *Token // Current token being processed
	peekToken    *Token // Next token (lookahead)
	resolver     ReferenceResolver
	depth        int
	err          error // first lexer error, reported on the next parse call
}

// NewParser creates a new PDF parser over data, starting at offset 0.
func NewParser(data []byte) *Parser {
	return NewParserAt(data, 0)
}

// NewParserAt creates a parser over data starting at the given offset.
// It loads the first two tokens for lookahead.
func NewParserAt(data []byte, offset int64) *Parser {
	p := &Parser{
		lexer: NewLexerAt(data, offset),
		data:  data,
	}
	p.nextToken()
	p.nextToken()
	return p
}

// SetReferenceResolver sets the reference resolver for the parser.
// This is needed to resolve indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// nextToken advances the parser to the next token by shifting the lookahead.
func (p *Parser) nextToken() {
	p.currentToken = p.peekToken

	// Binary data follows "stream"; parseStream reads it directly.
	if p.currentToken != nil &&
		p.currentToken.Type == TokenKeyword &&
		string(p.currentToken.Value) == "stream" {
		p.peekToken = nil
		return
	}

	token, err := p.lexer.NextToken()
	if err != nil {
		if p.err == nil {
			p.err = err
		}
		token = &Token{Type: TokenEOF, Pos: p.lexer.Pos()}
	}
	p.peekToken = token
}

// skipComments skips over any consecutive comment tokens.
func (p *Parser) skipComments() {
	for p.currentToken != nil && p.currentToken.Type == TokenComment {
		p.nextToken()
	}
}

// ParseObject parses and returns the next PDF object from the input.
// It handles all PDF object types: null, boolean, integer, real, string,
// name, array, dictionary, and indirect references.
func (p *Parser) ParseObject() (Object, error) {
	p.skipComments()

	if p.err != nil {
		return nil, p.err
	}
	if p.currentToken == nil {
		return nil, fmt.Errorf("unexpected end of input")
	}

	switch p.currentToken.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenKeyword:
		keyword := string(p.currentToken.Value)
		switch keyword {
		case "null":
			p.nextToken()
			return Null{}, nil
		case "true":
			p.nextToken()
			return Bool(true), nil
		case "false":
			p.nextToken()
			return Bool(false), nil
		default:
			return nil, fmt.Errorf("unexpected keyword %q at position %d", keyword, p.currentToken.Pos)
		}

	case TokenInteger:
		return p.parseNumber()

	case TokenReal:
		val, err := strconv.ParseFloat(string(p.currentToken.Value), 64)
		if err != nil {
			// Malformed reals such as "-" or "1.2.3" read as zero.
			val = 0
		}
		p.nextToken()
		return Real(val), nil

	case TokenString:
		val := String(p.currentToken.Value)
		p.nextToken()
		return val, nil

	case TokenHexString:
		digits := p.currentToken.Value
		if len(digits)%2 != 0 {
			digits = append(append([]byte(nil), digits...), '0')
		}
		decoded := make([]byte, hex.DecodedLen(len(digits)))
		if _, err := hex.Decode(decoded, digits); err != nil {
			return nil, fmt.Errorf("invalid hex string: %w", err)
		}
		p.nextToken()
		return String(decoded), nil

	case TokenName:
		val := Name(p.currentToken.Value)
		p.nextToken()
		return val, nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDict()

	default:
		return nil, fmt.Errorf("unexpected token type %v at position %d", p.currentToken.Type, p.currentToken.Pos)
	}
}

// parseNumber parses an integer, real number, or indirect reference.
// Indirect references are detected by lookahead: "num gen R" pattern.
func (p *Parser) parseNumber() (Object, error) {
	firstToken := string(p.currentToken.Value)

	firstInt, err := strconv.ParseInt(firstToken, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(firstToken, 64)
		if ferr != nil {
			f = 0
		}
		p.nextToken()
		return Real(f), nil
	}

	if p.peekToken != nil && p.peekToken.Type == TokenInteger {
		secondInt, err := strconv.ParseInt(string(p.peekToken.Value), 10, 64)
		if err == nil {
			// Save the lexer so a plain "int int" pair can be rewound.
			saved := *p.lexer
			savedCurrent, savedPeek := p.currentToken, p.peekToken

			p.nextToken() // second integer
			if p.peekToken != nil && p.peekToken.Type == TokenIndirectRef {
				p.nextToken() // R
				p.nextToken() // past R
				return IndirectRef{
					Number:     int(firstInt),
					Generation: int(secondInt),
				}, nil
			}

			*p.lexer = saved
			p.currentToken, p.peekToken = savedCurrent, savedPeek
		}
	}

	p.nextToken()
	return Int(firstInt), nil
}

// parseArray parses a PDF array "[obj1 obj2 ...]".
func (p *Parser) parseArray() (Object, error) {
	if p.depth >= maxNesting {
		return nil, fmt.Errorf("array nesting exceeds %d levels", maxNesting)
	}
	p.depth++
	defer func() { p.depth-- }()

	p.nextToken() // [

	arr := Array{}
	for {
		p.skipComments()

		if p.currentToken == nil {
			return nil, fmt.Errorf("unexpected end of input in array")
		}
		switch p.currentToken.Type {
		case TokenArrayEnd:
			p.nextToken()
			return arr, nil
		case TokenEOF:
			return nil, fmt.Errorf("unexpected EOF in array")
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing array element: %w", err)
		}
		arr = append(arr, obj)
	}
}

// parseDict parses a PDF dictionary "<< /Key value ... >>".
func (p *Parser) parseDict() (Object, error) {
	if p.depth >= maxNesting {
		return nil, fmt.Errorf("dictionary nesting exceeds %d levels", maxNesting)
	}
	p.depth++
	defer func() { p.depth-- }()

	p.nextToken() // <<

	dict := make(Dict)
	for {
		p.skipComments()

		if p.currentToken == nil {
			return nil, fmt.Errorf("unexpected end of input in dictionary")
		}
		switch p.currentToken.Type {
		case TokenDictEnd:
			p.nextToken()
			return dict, nil
		case TokenEOF:
			return nil, fmt.Errorf("unexpected EOF in dictionary")
		case TokenName:
		default:
			return nil, fmt.Errorf("expected name for dictionary key, got %v at position %d", p.currentToken.Type, p.currentToken.Pos)
		}

		key := string(p.currentToken.Value)
		p.nextToken()

		// A key directly followed by ">>" has no value; treat it as null.
		if p.currentToken != nil && p.currentToken.Type == TokenDictEnd {
			p.nextToken()
			return dict, nil
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing dictionary value for key '%s': %w", key, err)
		}

		// A null value is equivalent to the key being absent.
		if _, isNull := value.(Null); isNull {
			continue
		}
		dict[key] = value
	}
}

// ParseIndirectObject parses an indirect object definition.
// Format: "num gen obj <object> endobj" or "num gen obj <dict> stream ... endstream endobj"
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipComments()
	if p.err != nil {
		return nil, p.err
	}

	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}

	if p.currentToken == nil || p.currentToken.Type != TokenKeyword || string(p.currentToken.Value) != "obj" {
		return nil, fmt.Errorf("expected 'obj' keyword for object %d", num)
	}
	p.nextToken()

	var obj Object
	if p.currentToken != nil && p.currentToken.Type == TokenKeyword && string(p.currentToken.Value) == "endobj" {
		// "n g obj endobj" is an empty object, read as null
		obj = Null{}
	} else {
		obj, err = p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing indirect object value: %w", err)
		}
	}

	if p.currentToken != nil && p.currentToken.Type == TokenKeyword && string(p.currentToken.Value) == "stream" {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("stream must follow a dictionary")
		}
		stream, err := p.parseStream(dict)
		if err != nil {
			return nil, fmt.Errorf("error parsing stream: %w", err)
		}
		obj = stream
	}

	// A missing endobj is common in damaged files and harmless once the
	// value has been read.
	if p.currentToken != nil && p.currentToken.Type == TokenKeyword && string(p.currentToken.Value) == "endobj" {
		p.nextToken()
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

func (p *Parser) expectInt(what string) (int, error) {
	if p.currentToken == nil || p.currentToken.Type != TokenInteger {
		return 0, fmt.Errorf("expected %s", what)
	}
	n, err := strconv.Atoi(string(p.currentToken.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	p.nextToken()
	return n, nil
}

var endstreamKeyword = []byte("endstream")

// parseStream parses a stream object after the "stream" keyword.
// It reads the data according to /Length and falls back to scanning for
// "endstream" when the declared length is missing or wrong.
func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	p.lexer.SkipStreamEOL()
	dataStart := p.lexer.Pos()

	length, lengthErr := p.streamLength(dict)

	var data []byte
	if lengthErr == nil && p.endstreamFollows(dataStart+int64(length)) {
		data = p.data[dataStart : dataStart+int64(length)]
		p.lexer.SetPos(dataStart + int64(length))
	} else {
		idx := bytes.Index(p.data[dataStart:], endstreamKeyword)
		if idx < 0 {
			if lengthErr != nil {
				return nil, lengthErr
			}
			return nil, fmt.Errorf("stream at position %d has no endstream", dataStart)
		}
		end := dataStart + int64(idx)
		data = trimTrailingEOL(p.data[dataStart:end])
		p.lexer.SetPos(end)
	}

	token, err := p.lexer.NextToken()
	if err != nil {
		return nil, fmt.Errorf("failed to read token after stream data: %w", err)
	}
	if token.Type != TokenKeyword || string(token.Value) != "endstream" {
		return nil, fmt.Errorf("expected 'endstream' keyword, got %q", token.Value)
	}

	// Reload the parser's lookahead after the binary section.
	p.currentToken = nil
	p.peekToken = nil
	p.nextToken()
	p.nextToken()

	return &Stream{Dict: dict, Data: data}, nil
}

// streamLength reads /Length, resolving it through the reference resolver if needed.
func (p *Parser) streamLength(dict Dict) (int, error) {
	switch v := dict.Get("Length").(type) {
	case Int:
		if v < 0 {
			return 0, fmt.Errorf("invalid stream length: %d", v)
		}
		return int(v), nil
	case IndirectRef:
		if p.resolver == nil {
			return 0, fmt.Errorf("indirect reference for stream length requires a reference resolver")
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve stream length reference: %w", err)
		}
		n, ok := resolved.(Int)
		if !ok || n < 0 {
			return 0, fmt.Errorf("stream length reference resolved to %v", resolved)
		}
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("stream dictionary missing 'Length' entry")
	default:
		return 0, fmt.Errorf("invalid type for stream length: %T", v)
	}
}

// endstreamFollows reports whether "endstream" appears at offset, allowing
// for intervening whitespace.
func (p *Parser) endstreamFollows(offset int64) bool {
	if offset < 0 || offset > int64(len(p.data)) {
		return false
	}
	rest := p.data[offset:]
	i := 0
	for i < len(rest) && isWhitespace(rest[i]) {
		i++
	}
	return bytes.HasPrefix(rest[i:], endstreamKeyword)
}

func trimTrailingEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
