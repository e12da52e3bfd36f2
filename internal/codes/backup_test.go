package codes

import (
	"strings"
	"testing"
)

func TestGenerateSetShape(t *testing.T) {
	records, plain, err := GenerateSet("acct-1", 8, 10)
	if err != nil {
		t.Fatalf("GenerateSet error: %v", err)
	}
	if len(records) != 8 || len(plain) != 8 {
		t.Fatalf("expected 8 records and 8 codes, got %d/%d", len(records), len(plain))
	}

	seen := make(map[string]bool)
	for i, code := range plain {
		if !strings.Contains(code, "-") {
			t.Fatalf("code %q missing display separator", code)
		}
		canonical := Canonicalize(code)
		if len(canonical) != 10 {
			t.Fatalf("canonical code %q has length %d", canonical, len(canonical))
		}
		if seen[canonical] {
			t.Fatalf("duplicate code generated: %q", canonical)
		}
		seen[canonical] = true

		if Hash("acct-1", canonical) != records[i].Hash {
			t.Fatalf("record %d hash does not match its code", i)
		}
	}
}

func TestCanonicalizeStripsFormatting(t *testing.T) {
	if got := Canonicalize(" abcde-fghjk "); got != "ABCDEFGHJK" {
		t.Fatalf("Canonicalize returned %q", got)
	}
	if got := Canonicalize("AB CD"); got != "ABCD" {
		t.Fatalf("Canonicalize returned %q", got)
	}
}

func TestHashIsAccountScoped(t *testing.T) {
	if Hash("acct-1", "SAMECODE22") == Hash("acct-2", "SAMECODE22") {
		t.Fatal("expected per-account hashes to differ for identical codes")
	}
}

func TestFormatShortCodeUnchanged(t *testing.T) {
	if got := Format("ABC2345"); got != "ABC2345" {
		t.Fatalf("Format returned %q", got)
	}
}

func TestAlphabetExcludesAmbiguous(t *testing.T) {
	for _, r := range "01OI" {
		if strings.ContainsRune(Alphabet, r) {
			t.Fatalf("alphabet contains ambiguous character %q", r)
		}
	}
}
