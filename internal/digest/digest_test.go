package digest

import (
	"testing"
)

const emptySHA512 = "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("evidence"))
	b := Sum([]byte("evidence"))
	if a != b {
		t.Errorf("expected identical digests, got %s and %s", a, b)
	}
	if len(a) != Size {
		t.Errorf("expected %d hex chars, got %d", Size, len(a))
	}
}

func TestSumEmpty(t *testing.T) {
	if got := Sum(nil); got != emptySHA512 {
		t.Errorf("unexpected empty digest %s", got)
	}
	if got := Sum([]byte{}); got != emptySHA512 {
		t.Errorf("nil and empty slice should match, got %s", got)
	}
}

func TestSingleByteChange(t *testing.T) {
	a := Sum([]byte("evidence-a"))
	b := Sum([]byte("evidence-b"))
	if a == b {
		t.Error("single byte change should change the digest")
	}
}

func TestConcatMatchesSumOfJoined(t *testing.T) {
	if Concat("ab", "cd") != SumString("abcd") {
		t.Error("Concat should digest the direct concatenation")
	}
	if Concat() != emptySHA512 {
		t.Error("Concat with no parts should digest the empty string")
	}
}

func TestValid(t *testing.T) {
	if !Valid(emptySHA512) {
		t.Error("expected valid digest")
	}
	if Valid("abc") {
		t.Error("short string should not be valid")
	}
	if Valid(emptySHA512[:127] + "Z") {
		t.Error("non-hex character should not be valid")
	}
}
