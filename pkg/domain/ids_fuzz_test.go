//go:build go1.18

package domain

import (
	"strings"
	"testing"
)

// FuzzParseAddress checks parsing never panics and accepted values are canonical.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("0x" + strings.Repeat("0", 40))
	f.Add("0X" + strings.Repeat("Ab", 20))
	f.Add("alice.eth")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		addr, err := ParseAddress(input)
		if err != nil {
			return
		}
		if string(addr) != strings.ToLower(input) {
			t.Errorf("address not canonical: %q", addr)
		}
		again, err := ParseAddress(string(addr))
		if err != nil || again != addr {
			t.Error("canonical address failed round-trip")
		}
	})
}

func FuzzParseRecordID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("'; DROP TABLE kyc_records;--")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRecordID(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseRecordID(id.String())
		if err != nil || roundTrip != id {
			t.Error("valid ID failed round-trip")
		}
	})
}
