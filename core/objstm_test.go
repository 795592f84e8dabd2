package core

import (
	"testing"
)

func newTestObjectStream(t *testing.T, header, body string, n int, compress bool) *ObjectStream {
	t.Helper()
	data := []byte(header + body)
	dict := Dict{
		"Type":  Name("ObjStm"),
		"N":     Int(n),
		"First": Int(len(header)),
	}
	if compress {
		data = zlibCompress(data)
		dict["Filter"] = Name("FlateDecode")
	}
	s, err := NewObjectStream(&Stream{Dict: dict, Data: data})
	if err != nil {
		t.Fatalf("NewObjectStream failed: %v", err)
	}
	return s
}

func TestNewObjectStreamValidation(t *testing.T) {
	tests := []struct {
		name    string
		dict    Dict
		wantErr bool
	}{
		{"valid", Dict{"Type": Name("ObjStm"), "N": Int(3), "First": Int(20)}, false},
		{"with Extends", Dict{"Type": Name("ObjStm"), "N": Int(1), "First": Int(4), "Extends": IndirectRef{Number: 10}}, false},
		{"missing Type", Dict{"N": Int(3), "First": Int(20)}, true},
		{"wrong Type", Dict{"Type": Name("XRef"), "N": Int(3), "First": Int(20)}, true},
		{"missing N", Dict{"Type": Name("ObjStm"), "First": Int(20)}, true},
		{"negative N", Dict{"Type": Name("ObjStm"), "N": Int(-1), "First": Int(20)}, true},
		{"missing First", Dict{"Type": Name("ObjStm"), "N": Int(3)}, true},
		{"Extends not a ref", Dict{"Type": Name("ObjStm"), "N": Int(1), "First": Int(4), "Extends": Int(10)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewObjectStream(&Stream{Dict: tt.dict})
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewObjectStream(nil); err == nil {
		t.Error("expected error for nil stream")
	}
}

func TestObjectStreamAccess(t *testing.T) {
	// Offsets are relative to /First.
	header := "5 0 6 20 7 34 "
	body := "<< /Type /Catalog >>" + "<< /Count 1 >>" + "[ 1 2 3 ]"
	s := newTestObjectStream(t, header, body, 3, true)

	if s.N() != 3 || s.First() != len(header) {
		t.Errorf("N=%d First=%d", s.N(), s.First())
	}

	obj, num, err := s.GetObjectByIndex(0)
	if err != nil || num != 5 {
		t.Fatalf("GetObjectByIndex(0) = %v, %d, %v", obj, num, err)
	}
	if name, _ := obj.(Dict).GetName("Type"); name != "Catalog" {
		t.Errorf("object 5 = %v", obj)
	}

	obj, idx, err := s.GetObjectByNumber(7)
	if err != nil || idx != 2 {
		t.Fatalf("GetObjectByNumber(7) = %v, %d, %v", obj, idx, err)
	}
	if arr, ok := obj.(Array); !ok || len(arr) != 3 {
		t.Errorf("object 7 = %v", obj)
	}

	if _, _, err := s.GetObjectByNumber(999); err == nil {
		t.Error("expected error for missing object")
	}
	for _, i := range []int{-1, 3} {
		if _, _, err := s.GetObjectByIndex(i); err == nil {
			t.Errorf("expected error for index %d", i)
		}
	}

	nums, err := s.ObjectNumbers()
	if err != nil || len(nums) != 3 || nums[0] != 5 || nums[2] != 7 {
		t.Errorf("ObjectNumbers() = %v, %v", nums, err)
	}
	if ok, _ := s.ContainsObject(6); !ok {
		t.Error("ContainsObject(6) = false")
	}
	if ok, _ := s.ContainsObject(8); ok {
		t.Error("ContainsObject(8) = true")
	}
}

func TestObjectStreamUnsortedOffsets(t *testing.T) {
	header := "2 6 1 0 "
	body := "(one) (two)"
	s := newTestObjectStream(t, header, body, 2, false)

	obj, _, err := s.GetObjectByNumber(2)
	if err != nil || obj != String("two") {
		t.Errorf("object 2 = %v, %v", obj, err)
	}
	obj, _, err = s.GetObjectByNumber(1)
	if err != nil || obj != String("one") {
		t.Errorf("object 1 = %v, %v", obj, err)
	}
}

func TestObjectStreamExtends(t *testing.T) {
	s, err := NewObjectStream(&Stream{Dict: Dict{
		"Type": Name("ObjStm"), "N": Int(1), "First": Int(4), "Extends": IndirectRef{Number: 10},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if ext := s.Extends(); ext == nil || ext.Number != 10 {
		t.Errorf("Extends() = %v", ext)
	}

	plain := newTestObjectStream(t, "1 0 ", "42", 1, false)
	if plain.Extends() != nil {
		t.Error("expected nil Extends")
	}
}

func TestObjectStreamHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		n     int
		first int
	}{
		{"First beyond data", "1 0 42", 1, 1000},
		{"header too short", "1 0 42", 3, 4},
		{"non-integer header", "/A 0 42", 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewObjectStream(&Stream{
				Dict: Dict{"Type": Name("ObjStm"), "N": Int(tt.n), "First": Int(tt.first)},
				Data: []byte(tt.data),
			})
			if err != nil {
				t.Fatalf("NewObjectStream failed: %v", err)
			}
			if _, _, err := s.GetObjectByIndex(0); err == nil {
				t.Error("expected error")
			}
		})
	}
}
