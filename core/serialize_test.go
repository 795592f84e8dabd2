package core

import (
	"strings"
	"testing"
)

func TestAppendObject(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"nil", nil, "null"},
		{"bool", Bool(true), "true"},
		{"int", Int(-3), "-3"},
		{"integral real", Real(612), "612"},
		{"real", Real(0.5), "0.5"},
		{"literal string", String("a(b)c\\"), `(a\(b\)c\\)`},
		{"binary string", String("\xfe\xff\x00A"), "<FEFF0041>"},
		{"name", Name("Type"), "/Type"},
		{"name with space and hash", Name("A B#"), "/A#20B#23"},
		{"name with delimiter", Name("a/b"), "/a#2Fb"},
		{"array", Array{Int(1), Name("X"), IndirectRef{Number: 4}}, "[1 /X 4 0 R]"},
		{"dict skips nulls", Dict{"B": Int(2), "A": Null{}, "C": Name("Z")}, "<</B 2 /C /Z >>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(AppendObject(nil, tt.obj)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendStreamRewritesLength(t *testing.T) {
	s := &Stream{Dict: Dict{"Length": Int(999), "Filter": Name("FlateDecode")}, Data: []byte("abc")}
	got := string(AppendObject(nil, s))

	if !strings.HasPrefix(got, "<</Filter /FlateDecode /Length 3 >>\nstream\nabc\nendstream") {
		t.Errorf("got %q", got)
	}
	if v, _ := s.Dict.GetInt("Length"); v != 999 {
		t.Error("serializing must not modify the source dictionary")
	}
}

func TestSerializedObjectsReparse(t *testing.T) {
	orig := Dict{
		"Type":     Name("Page"),
		"MediaBox": Array{Int(0), Int(0), Real(595.28), Int(842)},
		"Title":    String("Quarterly (draft)"),
		"Raw":      String("\x00\x01\xff"),
		"Odd Key":  Name("x#y"),
		"Parent":   IndirectRef{Number: 2},
		"Nested":   Dict{"Flag": Bool(false)},
	}

	data := AppendIndirectObject(nil, IndirectRef{Number: 7}, orig)
	parsed, err := NewParser(data).ParseIndirectObject()
	if err != nil {
		t.Fatalf("reparse failed: %v\n%s", err, data)
	}
	if parsed.Ref.Number != 7 {
		t.Errorf("ref = %v", parsed.Ref)
	}
	if got := parsed.Object.(Dict).String(); got != orig.String() {
		t.Errorf("reparsed dict differs\n got: %s\nwant: %s", got, orig.String())
	}
}
