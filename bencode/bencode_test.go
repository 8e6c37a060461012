package bencode

import (
	"errors"
	"testing"
)

// roundTripValues covers every variant, including the degenerate forms:
// empty list, empty dict, zero-length string, zero and negative ints.
func roundTripValues() []struct {
	name string
	val  Value
	enc  string
} {
	return []struct {
		name string
		val  Value
		enc  string
	}{
		{"zero int", Int(0), "i0e"},
		{"positive int", Int(42), "i42e"},
		{"negative int", Int(-7), "i-7e"},
		{"empty string", Str(""), "0:"},
		{"plain string", Str("spam"), "4:spam"},
		{"string with markers inside", Str("i3e:l d e"), "9:i3e:l d e"},
		{"empty list", List(), "le"},
		{"list of ints", List(Int(1), Int(2), Int(3)), "li1ei2ei3ee"},
		{"empty dict", Dict(), "de"},
		{
			"eval request",
			Dict(
				KV("op", Str("eval")),
				KV("code", Str("(+ 1 2)")),
				KV("session", Str("S")),
				KV("id", Str("7")),
			),
			"d2:op4:eval4:code7:(+ 1 2)7:session1:S2:id1:7e",
		},
		{
			"nested",
			Dict(
				KV("status", List(Str("done"), Str("error"))),
				KV("depth", Dict(KV("n", Int(-1)))),
			),
			"d6:statusl4:done5:errore5:depthd1:ni-1eee",
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tt := range roundTripValues() {
		t.Run(tt.name, func(t *testing.T) {
			enc := Encode(tt.val)
			if string(enc) != tt.enc {
				t.Fatalf("Encode = %q, want %q", enc, tt.enc)
			}

			got, n, err := Decode(enc)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if n != len(enc) {
				t.Errorf("Decode consumed %d bytes, want %d", n, len(enc))
			}
			if !got.Equal(tt.val) {
				t.Errorf("round trip mismatch: got %#v, want %#v", got, tt.val)
			}
		})
	}
}

func TestDecodeStopsAtValueBoundary(t *testing.T) {
	// Two concatenated values: Decode must consume exactly the first.
	first := Encode(Dict(KV("id", Str("1"))))
	second := Encode(Str("leftover"))
	stream := append(append([]byte{}, first...), second...)

	v, n, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if n != len(first) {
		t.Fatalf("consumed %d bytes, want %d", n, len(first))
	}
	if !v.Equal(Dict(KV("id", Str("1")))) {
		t.Errorf("unexpected first value: %#v", v)
	}

	v2, n2, err := Decode(stream[n:])
	if err != nil {
		t.Fatalf("Decode of surplus failed: %v", err)
	}
	if n2 != len(second) || !v2.Equal(Str("leftover")) {
		t.Errorf("unexpected second value: %#v (consumed %d)", v2, n2)
	}
}

func TestDecodeIncompletePrefixes(t *testing.T) {
	// Every proper prefix of a valid encoding is incomplete, never
	// malformed: the distinction is what lets the frame reader wait
	// for the rest of a value instead of aborting.
	for _, tt := range roundTripValues() {
		enc := Encode(tt.val)
		for cut := 0; cut < len(enc); cut++ {
			_, _, err := Decode(enc[:cut])
			if !errors.Is(err, ErrIncomplete) {
				t.Fatalf("%s cut at %d: got %v, want ErrIncomplete", tt.name, cut, err)
			}
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown type marker", "x4:spam"},
		{"bare end marker", "e"},
		{"empty integer", "ie"},
		{"non-digit integer", "iabce"},
		{"dict key without value", "d2:ide"},
		{"end marker inside string length", "d2:op4e"},
		{"length overflow", "99999999999999999999:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.input))
			var me *MalformedError
			if !errors.As(err, &me) {
				t.Fatalf("Decode(%q) = %v, want MalformedError", tt.input, err)
			}
			if me.Raw == nil {
				t.Errorf("MalformedError carries no raw bytes")
			}
		})
	}
}

func TestDecodeFull(t *testing.T) {
	t.Run("complete value", func(t *testing.T) {
		v, err := DecodeFull([]byte("d2:id1:7e"))
		if err != nil {
			t.Fatalf("DecodeFull failed: %v", err)
		}
		if id, ok := v.Lookup("id"); !ok || id.Text() != "7" {
			t.Errorf("unexpected value: %#v", v)
		}
	})

	t.Run("declared string length exceeds input", func(t *testing.T) {
		// "5:abc" promises five body bytes but supplies three. With
		// no more input coming this is malformed, not a silent
		// truncation.
		var me *MalformedError
		if _, err := DecodeFull([]byte("5:abc")); !errors.As(err, &me) {
			t.Fatalf("got %v, want MalformedError", err)
		}
	})

	t.Run("missing list end marker", func(t *testing.T) {
		var me *MalformedError
		if _, err := DecodeFull([]byte("li1ei2e")); !errors.As(err, &me) {
			t.Fatalf("got %v, want MalformedError", err)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		var me *MalformedError
		if _, err := DecodeFull([]byte("i1ei2e")); !errors.As(err, &me) {
			t.Fatalf("got %v, want MalformedError", err)
		}
	})
}

func TestDictOrderPreserved(t *testing.T) {
	v := Dict(
		KV("zebra", Int(1)),
		KV("apple", Int(2)),
		KV("mango", Int(3)),
	)
	got, err := DecodeFull(Encode(v))
	if err != nil {
		t.Fatalf("DecodeFull failed: %v", err)
	}
	want := []string{"zebra", "apple", "mango"}
	if len(got.Dict) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got.Dict), len(want))
	}
	for i, key := range want {
		if got.Dict[i].Key.Text() != key {
			t.Errorf("entry %d key = %q, want %q", i, got.Dict[i].Key.Text(), key)
		}
	}
}

func TestLookupAndStrings(t *testing.T) {
	v := Dict(
		KV("id", Str("7")),
		KV("status", List(Str("done"), Str("error"))),
	)
	if id, ok := v.Lookup("id"); !ok || id.Text() != "7" {
		t.Errorf("Lookup(id) = %v, %v", id, ok)
	}
	if _, ok := v.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported present")
	}
	status, _ := v.Lookup("status")
	flags := status.Strings()
	if len(flags) != 2 || flags[0] != "done" || flags[1] != "error" {
		t.Errorf("Strings() = %v", flags)
	}
}
