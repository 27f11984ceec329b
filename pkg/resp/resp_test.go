package resp

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadCommandMultiBulk(t *testing.T) {
	r := NewReader(strings.NewReader("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	args, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if len(args) != 2 || args[0] != "GET" || args[1] != "k" {
		t.Errorf("args = %v, want [GET k]", args)
	}
}

func TestReadCommandInline(t *testing.T) {
	r := NewReader(strings.NewReader("PING\r\n"))
	args, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if len(args) != 1 || args[0] != "PING" {
		t.Errorf("args = %v, want [PING]", args)
	}
}

func TestWriteValueRESP2Downgrades(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Proto2)
	if err := w.WriteValue(Bool(true)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if buf.String() != ":1\r\n" {
		t.Errorf("got %q, want :1\\r\\n", buf.String())
	}
}

func TestWriteValueRESP3Boolean(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Proto3)
	if err := w.WriteValue(Bool(false)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if buf.String() != "#f\r\n" {
		t.Errorf("got %q, want #f\\r\\n", buf.String())
	}
}

func TestWriteValueBulkAndNull(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Proto2)
	w.WriteValue(Bulk("hello"))
	if buf.String() != "$5\r\nhello\r\n" {
		t.Errorf("got %q", buf.String())
	}
	buf.Reset()
	w.WriteValue(NullBulk())
	if buf.String() != "$-1\r\n" {
		t.Errorf("got %q, want $-1\\r\\n", buf.String())
	}
}

func TestWriteValueArray(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Proto2)
	w.WriteValue(BulkStrings([]string{"a", "bb"}))
	want := "*2\r\n$1\r\na\r\n$2\r\nbb\r\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
