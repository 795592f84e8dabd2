package core

import (
	"bytes"
	"testing"
)

// collectTokens lexes input until EOF.
func collectTokens(t *testing.T, input string) []*Token {
	t.Helper()
	lexer := NewLexer([]byte(input))
	var tokens []*Token
	for {
		tok, err := lexer.NextToken()
		if err != nil {
			t.Fatalf("NextToken(%q) failed: %v", input, err)
		}
		if tok.Type == TokenEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func TestLexerEOF(t *testing.T) {
	for _, input := range []string{"", "   \t\n\r\f\x00  "} {
		lexer := NewLexer([]byte(input))
		tok, err := lexer.NextToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Type != TokenEOF {
			t.Errorf("input %q: expected TokenEOF, got %v", input, tok.Type)
		}
		// EOF is sticky
		if tok, _ := lexer.NextToken(); tok.Type != TokenEOF {
			t.Errorf("input %q: second call returned %v", input, tok.Type)
		}
	}
}

func TestLexerSingleTokens(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantType  TokenType
		wantValue string
	}{
		{"array start", "[", TokenArrayStart, "["},
		{"array end", "]", TokenArrayEnd, "]"},
		{"dict start", "<<", TokenDictStart, "<<"},
		{"dict end", ">>", TokenDictEnd, ">>"},
		{"comment", "%PDF-1.7\n", TokenComment, "%PDF-1.7"},
		{"integer", "42", TokenInteger, "42"},
		{"negative integer", "-17", TokenInteger, "-17"},
		{"signed integer", "+5", TokenInteger, "+5"},
		{"real", "3.14", TokenReal, "3.14"},
		{"leading dot real", ".5", TokenReal, ".5"},
		{"negative real", "-.002", TokenReal, "-.002"},
		{"keyword true", "true", TokenKeyword, "true"},
		{"keyword null", "null", TokenKeyword, "null"},
		{"keyword obj", "obj", TokenKeyword, "obj"},
		{"ref marker", "R", TokenIndirectRef, "R"},
		{"name", "/Type", TokenName, "Type"},
		{"empty name", "/ ", TokenName, ""},
		{"name with escape", "/A#20B", TokenName, "A B"},
		{"name with hash but no hex", "/A#ZZ", TokenName, "A#ZZ"},
		{"hex string", "<48 65 6c>", TokenHexString, "48656c"},
		{"literal string", "(Hello)", TokenString, "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewLexer([]byte(tt.input)).NextToken()
			if err != nil {
				t.Fatalf("NextToken failed: %v", err)
			}
			if tok.Type != tt.wantType {
				t.Errorf("type = %v, want %v", tok.Type, tt.wantType)
			}
			if string(tok.Value) != tt.wantValue {
				t.Errorf("value = %q, want %q", tok.Value, tt.wantValue)
			}
		})
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nested parens", "(a (b) c)", "a (b) c"},
		{"escaped parens", `(a \( b)`, "a ( b"},
		{"newline escapes", `(a\nb\tc\\d)`, "a\nb\tc\\d"},
		{"octal", `(\101\102\7)`, "AB\x07"},
		{"octal stops at three digits", `(\1012)`, "A2"},
		{"line continuation", "(ab\\\ncd)", "abcd"},
		{"crlf continuation", "(ab\\\r\ncd)", "abcd"},
		{"unknown escape", `(\q)`, "q"},
		{"binary bytes", "(\x00\xff)", "\x00\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewLexer([]byte(tt.input)).NextToken()
			if err != nil {
				t.Fatalf("NextToken failed: %v", err)
			}
			if string(tok.Value) != tt.want {
				t.Errorf("got %q, want %q", tok.Value, tt.want)
			}
		})
	}
}

func TestLexerSequence(t *testing.T) {
	input := "%comment\r\n1 0 obj\n<</Type/Page/Kids[3 0 R]>>\nendobj"
	want := []TokenType{
		TokenComment,
		TokenInteger, TokenInteger, TokenKeyword,
		TokenDictStart, TokenName, TokenName, TokenName,
		TokenArrayStart, TokenInteger, TokenInteger, TokenIndirectRef, TokenArrayEnd,
		TokenDictEnd, TokenKeyword,
	}

	tokens := collectTokens(t, input)
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Type != want[i] {
			t.Errorf("token %d: type %v, want %v (value %q)", i, tok.Type, want[i], tok.Value)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := collectTokens(t, "  /A  12 (x)")
	wantPos := []int64{2, 6, 9}
	for i, tok := range tokens {
		if tok.Pos != wantPos[i] {
			t.Errorf("token %d at %d, want %d", i, tok.Pos, wantPos[i])
		}
	}

	lexer := NewLexerAt([]byte("abc 123"), 4)
	tok, _ := lexer.NextToken()
	if string(tok.Value) != "123" || tok.Pos != 4 {
		t.Errorf("NewLexerAt token = %q at %d", tok.Value, tok.Pos)
	}
	if lexer.Pos() != 7 {
		t.Errorf("Pos() = %d, want 7", lexer.Pos())
	}

	lexer.SetPos(-5)
	if lexer.Pos() != 0 {
		t.Errorf("SetPos(-5) left position at %d", lexer.Pos())
	}
	lexer.SetPos(100)
	if lexer.Pos() != 7 {
		t.Errorf("SetPos(100) left position at %d", lexer.Pos())
	}
}

func TestLexerStreamSupport(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"LF", "stream\nDATA"},
		{"CRLF", "stream\r\nDATA"},
		{"CR", "stream\rDATA"},
		{"trailing spaces", "stream  \nDATA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer([]byte(tt.input))
			tok, _ := lexer.NextToken()
			if string(tok.Value) != "stream" {
				t.Fatalf("expected stream keyword, got %q", tok.Value)
			}
			lexer.SkipStreamEOL()
			data, err := lexer.ReadBytes(4)
			if err != nil {
				t.Fatalf("ReadBytes failed: %v", err)
			}
			if !bytes.Equal(data, []byte("DATA")) {
				t.Errorf("got %q", data)
			}
		})
	}

	lexer := NewLexer([]byte("abc"))
	if _, err := lexer.ReadBytes(10); err == nil {
		t.Error("expected error reading past end")
	}
	if _, err := lexer.ReadBytes(-1); err == nil {
		t.Error("expected error for negative length")
	}
}

func TestLexerErrors(t *testing.T) {
	for _, input := range []string{"(unterminated", "<48 65", "<4G>", ">", ")", "{"} {
		_, err := NewLexer([]byte(input)).NextToken()
		if err == nil {
			t.Errorf("input %q: expected error", input)
		}
	}
}

func BenchmarkLexerDictionary(b *testing.B) {
	data := []byte("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>")
	for i := 0; i < b.N; i++ {
		lexer := NewLexer(data)
		for {
			tok, err := lexer.NextToken()
			if err != nil || tok.Type == TokenEOF {
				break
			}
		}
	}
}
