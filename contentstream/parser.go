package contentstream

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tsawler/pagesweep/core"
)

// maxNesting bounds operand array and dictionary nesting.
const maxNesting = 256

// Operation represents a single content stream operation consisting of an
// operator and its operands. Operands are PDF objects that precede the operator.
//
// An inline image is reported as one operation with operator "BI" whose only
// operand is the image dictionary; its data is skipped.
type Operation struct {
	Operator string        // The operator (e.g., "Tj", "Tm", "q")
	Operands []core.Object // The operands
}

// Parser parses PDF content streams into a sequence of operations.
// A Parser holds its own operand stack and is used for one stream.
type Parser struct {
	data  []byte
	pos   int
	ops   []Operation
	stack []core.Object
	depth int
}

// NewParser creates a new content stream parser for the given data.
func NewParser(data []byte) *Parser {
	return &Parser{
		data: data,
		ops:  make([]Operation, 0),
	}
}

// Parse parses the content stream and returns all operations in order.
// On a syntax error the operations read before it are returned with the
// error.
func (p *Parser) Parse() ([]Operation, error) {
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			break
		}
		if err := p.parseNext(); err != nil {
			return p.ops, err
		}
	}
	return p.ops, nil
}

// parseNext parses the next token, which is either an operand (pushed onto the
// stack) or an operator (which consumes the operand stack and creates an Operation).
func (p *Parser) parseNext() error {
	start := p.pos
	c := p.data[p.pos]

	if isLetter(c) || c == '\'' || c == '"' {
		word := p.readRegular()
		switch word {
		case "true":
			p.stack = append(p.stack, core.Bool(true))
		case "false":
			p.stack = append(p.stack, core.Bool(false))
		case "null":
			p.stack = append(p.stack, core.Null{})
		case "BI":
			p.stack = nil
			return p.parseInlineImage(start)
		default:
			p.emit(word)
		}
		return nil
	}

	operand, err := p.parseOperand()
	if err != nil {
		return fmt.Errorf("at position %d: %w", start, err)
	}
	p.stack = append(p.stack, operand)
	return nil
}

// emit creates an operation with the current operand stack, then clears the stack.
func (p *Parser) emit(operator string) {
	operands := make([]core.Object, len(p.stack))
	copy(operands, p.stack)
	p.ops = append(p.ops, Operation{Operator: operator, Operands: operands})
	p.stack = p.stack[:0]
}

// readRegular reads a run of regular characters.
func (p *Parser) readRegular() string {
	start := p.pos
	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// parseInlineImage reads "BI key value ... ID data EI". The data is
// skipped: its extent comes from /L or /Length when present, otherwise
// from the first "EI" that stands as a separate token.
func (p *Parser) parseInlineImage(start int) error {
	dict := make(core.Dict)
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return fmt.Errorf("inline image at position %d: missing ID", start)
		}
		if p.data[p.pos] != '/' {
			if word := p.readRegular(); word == "ID" {
				break
			}
			return fmt.Errorf("inline image at position %d: malformed dictionary", start)
		}
		key, err := p.parseName()
		if err != nil {
			return err
		}
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return fmt.Errorf("inline image at position %d: missing value", start)
		}
		var value core.Object
		if isLetter(p.data[p.pos]) {
			value = p.keywordOperand(p.readRegular())
		} else if value, err = p.parseOperand(); err != nil {
			return fmt.Errorf("inline image at position %d: %w", start, err)
		}
		dict[string(key.(core.Name))] = value
	}

	// A single whitespace byte separates ID from the data.
	if p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
		p.pos++
	}

	dataStart := p.pos
	if n, ok := inlineLength(dict); ok && dataStart+n <= len(p.data) {
		p.pos = dataStart + n
		for p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
			p.pos++
		}
		if p.pos+2 <= len(p.data) && p.data[p.pos] == 'E' && p.data[p.pos+1] == 'I' {
			p.pos += 2
			p.ops = append(p.ops, Operation{Operator: "BI", Operands: []core.Object{dict}})
			return nil
		}
	}

	end := findInlineImageEnd(p.data, dataStart)
	if end < 0 {
		return fmt.Errorf("inline image at position %d: missing EI", start)
	}
	p.pos = end + 2
	p.ops = append(p.ops, Operation{Operator: "BI", Operands: []core.Object{dict}})
	return nil
}

// keywordOperand interprets a bare word inside an inline image dictionary,
// where abbreviated values such as /F AHx may appear without a slash.
func (p *Parser) keywordOperand(word string) core.Object {
	switch word {
	case "true":
		return core.Bool(true)
	case "false":
		return core.Bool(false)
	case "null":
		return core.Null{}
	}
	return core.Name(word)
}

func inlineLength(dict core.Dict) (int, bool) {
	for _, key := range []string{"L", "Length"} {
		if n, ok := dict.GetInt(key); ok && n >= 0 {
			return int(n), true
		}
	}
	return 0, false
}

var eiKeyword = []byte("EI")

// findInlineImageEnd returns the offset of an "EI" preceded by whitespace
// and followed by whitespace or the end of data.
func findInlineImageEnd(data []byte, from int) int {
	for i := from; ; {
		idx := bytes.Index(data[i:], eiKeyword)
		if idx < 0 {
			return -1
		}
		at := i + idx
		before := at == from || isWhitespace(data[at-1])
		after := at+2 == len(data) || isWhitespace(data[at+2])
		if before && after {
			return at
		}
		i = at + 1
	}
}

// parseOperand parses a single operand, which can be a number, string, name,
// array or dictionary.
func (p *Parser) parseOperand() (core.Object, error) {
	p.skipWhitespaceAndComments()

	if p.pos >= len(p.data) {
		return nil, fmt.Errorf("unexpected end of stream")
	}

	c := p.data[p.pos]
	switch {
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == '(':
		return p.parseString()
	case c == '<' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '<':
		return p.parseDict()
	case c == '<':
		return p.parseHexString()
	case c == '/':
		return p.parseName()
	case c == '[':
		return p.parseArray()
	case isLetter(c):
		// Only keywords are valid bare words inside arrays and dictionaries.
		word := p.readRegular()
		switch word {
		case "true":
			return core.Bool(true), nil
		case "false":
			return core.Bool(false), nil
		case "null":
			return core.Null{}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q in operand", word)
	}

	return nil, fmt.Errorf("unexpected character at position %d: %q", p.pos, c)
}

// parseNumber parses an integer or real number operand.
func (p *Parser) parseNumber() (core.Object, error) {
	start := p.pos
	hasDecimal := false

	if p.data[p.pos] == '+' || p.data[p.pos] == '-' {
		p.pos++
	}
	// Some producers write doubled signs such as "--5".
	for p.pos < len(p.data) && (p.data[p.pos] == '-' || p.data[p.pos] == '+') {
		p.pos++
	}

	digitsStart := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
		} else if c == '.' && !hasDecimal {
			hasDecimal = true
			p.pos++
		} else {
			break
		}
	}

	negative := p.data[start] == '-'
	numStr := string(p.data[digitsStart:p.pos])
	if numStr == "" || numStr == "." {
		// A lone sign or point reads as zero.
		return core.Int(0), nil
	}

	if hasDecimal {
		val, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real number %q: %w", numStr, err)
		}
		if negative {
			val = -val
		}
		return core.Real(val), nil
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		// Out-of-range integers are kept as reals.
		f, ferr := strconv.ParseFloat(numStr, 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", numStr, err)
		}
		if negative {
			f = -f
		}
		return core.Real(f), nil
	}
	if negative {
		val = -val
	}
	return core.Int(val), nil
}

// parseString parses a literal string (...) with escape sequence handling.
func (p *Parser) parseString() (core.Object, error) {
	p.pos++ // skip '('

	var result bytes.Buffer
	depth := 1 // Track parenthesis nesting

	for p.pos < len(p.data) && depth > 0 {
		c := p.data[p.pos]

		switch {
		case c == '\\' && p.pos+1 < len(p.data):
			p.pos++
			next := p.data[p.pos]
			p.pos++
			switch next {
			case 'n':
				result.WriteByte('\n')
			case 'r':
				result.WriteByte('\r')
			case 't':
				result.WriteByte('\t')
			case 'b':
				result.WriteByte('\b')
			case 'f':
				result.WriteByte('\f')
			case '\r':
				// Line continuation
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
				// Line continuation
			case '0', '1', '2', '3', '4', '5', '6', '7':
				octalVal := int(next - '0')
				for i := 0; i < 2 && p.pos < len(p.data); i++ {
					digit := p.data[p.pos]
					if digit < '0' || digit > '7' {
						break
					}
					octalVal = octalVal*8 + int(digit-'0')
					p.pos++
				}
				result.WriteByte(byte(octalVal))
			default:
				// Covers \( \) \\ and unknown escapes, which drop the backslash.
				result.WriteByte(next)
			}
		case c == '(':
			depth++
			result.WriteByte(c)
			p.pos++
		case c == ')':
			depth--
			if depth > 0 {
				result.WriteByte(c)
			}
			p.pos++
		default:
			result.WriteByte(c)
			p.pos++
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("unclosed string")
	}
	return core.String(result.String()), nil
}

// parseHexString parses a hexadecimal string <...>. Whitespace is ignored
// and an odd final digit is padded with zero.
func (p *Parser) parseHexString() (core.Object, error) {
	p.pos++ // skip '<'

	var result bytes.Buffer
	var pending byte
	havePending := false

	for {
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed hex string")
		}
		c := p.data[p.pos]
		p.pos++

		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		if !isHexDigit(c) {
			return nil, fmt.Errorf("invalid hex digit: %q", c)
		}
		if havePending {
			result.WriteByte(pending<<4 | hexValue(c))
			havePending = false
		} else {
			pending = hexValue(c)
			havePending = true
		}
	}
	if havePending {
		result.WriteByte(pending << 4)
	}
	return core.String(result.String()), nil
}

// parseName parses a name object /Name with # escape handling.
func (p *Parser) parseName() (core.Object, error) {
	p.pos++ // skip '/'

	var result bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.data) && isHexDigit(p.data[p.pos+1]) && isHexDigit(p.data[p.pos+2]) {
			result.WriteByte(hexValue(p.data[p.pos+1])<<4 | hexValue(p.data[p.pos+2]))
			p.pos += 3
			continue
		}
		result.WriteByte(c)
		p.pos++
	}
	return core.Name(result.String()), nil
}

// parseArray parses an array [...] of operands.
func (p *Parser) parseArray() (core.Object, error) {
	if p.depth >= maxNesting {
		return nil, fmt.Errorf("operands nested deeper than %d", maxNesting)
	}
	p.depth++
	defer func() { p.depth-- }()

	p.pos++ // skip '['
	arr := core.Array{}
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

// parseDict parses a dictionary <<...>>, used by marked-content operators.
func (p *Parser) parseDict() (core.Object, error) {
	if p.depth >= maxNesting {
		return nil, fmt.Errorf("operands nested deeper than %d", maxNesting)
	}
	p.depth++
	defer func() { p.depth-- }()

	p.pos += 2 // skip '<<'
	dict := make(core.Dict)
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed dictionary")
		}
		if p.data[p.pos] == '>' {
			if p.pos+1 < len(p.data) && p.data[p.pos+1] == '>' {
				p.pos += 2
				return dict, nil
			}
			return nil, fmt.Errorf("unexpected '>' in dictionary")
		}
		if p.data[p.pos] != '/' {
			return nil, fmt.Errorf("dictionary key must be a name")
		}
		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		value, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		dict[string(key.(core.Name))] = value
	}
}

// skipWhitespaceAndComments advances past whitespace and % comments.
func (p *Parser) skipWhitespaceAndComments() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) {
			p.pos++
			continue
		}
		if c == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

// Helper functions

// isWhitespace reports whether c is a PDF whitespace character.
func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

// isLetter reports whether c is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDelimiter reports whether c is a PDF delimiter character.
func isDelimiter(c byte) bool {
	return c == '(' || c == ')' || c == '<' || c == '>' ||
		c == '[' || c == ']' || c == '{' || c == '}' ||
		c == '/' || c == '%'
}

// isHexDigit reports whether c is a hexadecimal digit.
func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// hexValue returns the numeric value of a hexadecimal digit.
func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
