package table

import (
	"strings"
	"testing"
)

func TestDecodeStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFName,City\nAlice,NYC\n"

	got, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if strings.HasPrefix(got, "\xEF\xBB\xBF") {
		t.Error("BOM was not stripped")
	}

	parsed := Parse(got)
	if len(parsed.Headers) == 0 || parsed.Headers[0] != "Name" {
		t.Errorf("first header = %v, want Name", parsed.Headers)
	}
}

func TestDecodePassesValidInput(t *testing.T) {
	input := "a,b\n1,2\n"
	got, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != input {
		t.Errorf("Decode() = %q, want %q", got, input)
	}
}

func TestDecodeReplacesInvalidUTF8(t *testing.T) {
	input := "a,b\n1,\xFF\n"
	got, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !strings.Contains(got, "�") {
		t.Error("invalid byte was not replaced")
	}
	if strings.Contains(got, "\xFF") {
		t.Error("invalid byte survived")
	}
}
