package content

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rbaliyan/mailstore/store"
)

const sample = "Subject: Test7 \n\nBody7\n.\n"

func TestSplitJoinRoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		[]byte("x"),
		[]byte(sample),
		[]byte("From: a@example.com\r\nTo: b@example.com\r\n\r\nhello\r\n"),
		{0x00, 0xff, 0x0a, 0x0d, 0x0a},
	}

	for _, raw := range inputs {
		for o := int64(0); o <= int64(len(raw)); o++ {
			header, body, err := Split(raw, o)
			if err != nil {
				t.Fatalf("Split(%q, %d): %v", raw, o, err)
			}
			if int64(len(header)) != o {
				t.Errorf("Split(%q, %d): header length = %d", raw, o, len(header))
			}
			if got := Join(header, body); !bytes.Equal(got, raw) {
				t.Errorf("Join(Split(%q, %d)) = %q", raw, o, got)
			}
		}
	}
}

func TestSplit(t *testing.T) {
	raw := []byte(sample)

	t.Run("header is prefix up to offset", func(t *testing.T) {
		header, body, err := Split(raw, 16)
		if err != nil {
			t.Fatalf("Split: %v", err)
		}
		if string(header) != "Subject: Test7 \n" {
			t.Errorf("header = %q", header)
		}
		if string(body) != "\nBody7\n.\n" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("offset zero gives empty header", func(t *testing.T) {
		header, body, err := Split(raw, 0)
		if err != nil {
			t.Fatalf("Split: %v", err)
		}
		if len(header) != 0 || !bytes.Equal(body, raw) {
			t.Errorf("got header=%q body=%q", header, body)
		}
	})

	t.Run("offset at length gives empty body", func(t *testing.T) {
		header, body, err := Split(raw, int64(len(raw)))
		if err != nil {
			t.Fatalf("Split: %v", err)
		}
		if len(body) != 0 || !bytes.Equal(header, raw) {
			t.Errorf("got header=%q body=%q", header, body)
		}
	})

	t.Run("invalid offsets", func(t *testing.T) {
		for _, o := range []int64{-1, int64(len(raw)) + 1} {
			_, _, err := Split(raw, o)
			if !errors.Is(err, ErrInvalidOffset) {
				t.Errorf("Split(%d): expected ErrInvalidOffset, got %v", o, err)
			}
			if !errors.Is(err, store.ErrInvalidArgument) {
				t.Errorf("Split(%d): expected store.ErrInvalidArgument, got %v", o, err)
			}
		}
	})
}

func TestJoinDoesNotAlias(t *testing.T) {
	header := []byte("H")
	body := []byte("B")
	out := Join(header, body)
	out[0] = 'X'
	if header[0] != 'H' {
		t.Error("Join output aliases its input")
	}
}

func TestFindBodyStart(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"lf", "A: 1\nB: 2\n\nbody", 11},
		{"crlf", "A: 1\r\n\r\nbody", 8},
		{"crlf before lf", "A: 1\r\n\r\nx\n\ny", 8},
		{"no blank line", "A: 1\nB: 2\n", 10},
		{"empty", "", 0},
		{"leading blank line", "\nbody", 1},
		{"leading crlf", "\r\nbody", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindBodyStart([]byte(tt.raw)); got != tt.want {
				t.Errorf("FindBodyStart(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{"", 0},
		{"one", 1},
		{"one\n", 1},
		{"one\ntwo", 2},
		{"Body7\n.\n", 2},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		if got := CountLines([]byte(tt.body)); got != tt.want {
			t.Errorf("CountLines(%q) = %d, want %d", tt.body, got, tt.want)
		}
	}
}

func TestRegion(t *testing.T) {
	r := Region{Start: 16, Data: []byte("\nBody7\n.\n")}

	if r.Len() != 9 || r.End() != 25 {
		t.Fatalf("Len=%d End=%d", r.Len(), r.End())
	}

	t.Run("reader yields data", func(t *testing.T) {
		got, err := io.ReadAll(r.Reader())
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if !bytes.Equal(got, r.Data) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("ReadAt uses message offsets", func(t *testing.T) {
		p := make([]byte, 5)
		n, err := r.ReadAt(p, 17)
		if err != nil || n != 5 {
			t.Fatalf("ReadAt: n=%d err=%v", n, err)
		}
		if string(p) != "Body7" {
			t.Errorf("got %q", p)
		}
	})

	t.Run("ReadAt before start", func(t *testing.T) {
		_, err := r.ReadAt(make([]byte, 1), 15)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})

	t.Run("ReadAt short read", func(t *testing.T) {
		p := make([]byte, 10)
		n, err := r.ReadAt(p, 23)
		if n != 2 || err != io.EOF {
			t.Errorf("n=%d err=%v, want 2 EOF", n, err)
		}
		if _, err := r.ReadAt(p, 25); err != io.EOF {
			t.Errorf("ReadAt at end: %v", err)
		}
	})
}
