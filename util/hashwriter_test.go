package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestHashWriter(t *testing.T) {
	const input = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"
	const goal = "fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658"
	var w = new(bytes.Buffer)
	hw := NewHashWriter(w)
	dohashtest(t, hw, input, goal)
	if w.String() != input {
		t.Errorf("Wrapped writer got %q, expected %q", w.String(), input)
	}
	dohashtest(t, NewHashWriterPlain(), input, goal)
}

func dohashtest(t *testing.T, hw *HashWriter, input string, goal string) {
	hw.Write([]byte(input))
	h, ok := hw.CheckDigest(goal)
	if !ok {
		t.Fatalf("Got %v, expected %v\n", h, goal)
	}
	if hw.Size() != int64(len(input)) {
		t.Errorf("Got size %d, expected %d", hw.Size(), len(input))
	}
}

func TestHashWriterEmpty(t *testing.T) {
	const goal = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	hw := NewHashWriterPlain()
	if hw.Digest() != goal {
		t.Errorf("Got %s, expected %s", hw.Digest(), goal)
	}
	if _, ok := hw.CheckDigest(""); !ok {
		t.Errorf("Empty goal should always match")
	}
}

func TestVerifyStreamDigest(t *testing.T) {
	const goal = "fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658"
	var table = []struct {
		input string
		ok    bool
	}{
		{"hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789", true},
		{"hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz012345678", false},
		{"", false},
	}
	for _, tab := range table {
		ok, err := VerifyStreamDigest(strings.NewReader(tab.input), goal)
		if err != nil {
			t.Errorf("%q: unexpected error %s", tab.input, err)
		}
		if ok != tab.ok {
			t.Errorf("%q: got %v, expected %v", tab.input, ok, tab.ok)
		}
	}
}

func TestValidDigest(t *testing.T) {
	var table = []struct {
		input string
		ok    bool
	}{
		{"fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658", true},
		{"FEF15EDD82B33633582C723562D192FEC2D2003DF12D4AEAC89DF17C279A1658", false},
		{"fef15edd", false},
		{"", false},
		{"../../../../etc/passwd", false},
		{"zef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658", false},
	}
	for _, tab := range table {
		if ValidDigest(tab.input) != tab.ok {
			t.Errorf("%q: expected %v", tab.input, tab.ok)
		}
	}
}
