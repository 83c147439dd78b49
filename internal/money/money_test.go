package money

import "testing"

func TestFormat(t *testing.T) {
	cases := map[int64]string{
		0:    "0.00",
		5:    "0.05",
		4597: "45.97",
		1000: "10.00",
	}
	for cents, want := range cases {
		if got := Format(cents); got != want {
			t.Fatalf("Format(%d): expected %s, got %s", cents, want, got)
		}
	}
}

func TestParseCents(t *testing.T) {
	cases := map[string]int64{
		"19.99": 1999,
		"5":     500,
		"0.5":   50,
		"10.00": 1000,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		if err != nil {
			t.Fatalf("ParseCents(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseCents(%q): expected %d, got %d", in, want, got)
		}
	}
}

func TestParseCents_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1.00", "1.999"} {
		if _, err := ParseCents(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
