package wallet

import "github.com/ethereum/go-ethereum/common"

// Session is the currently authorized account. The zero value is an absent
// session.
type Session struct {
	Address common.Address
}

// Absent reports whether no account is connected.
func (s Session) Absent() bool {
	return s.Address == (common.Address{})
}

// Short returns the address abbreviated as 0x1234...abcd.
func (s Session) Short() string {
	if s.Absent() {
		return ""
	}
	hex := s.Address.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// String implements fmt.Stringer.
func (s Session) String() string {
	if s.Absent() {
		return "<absent>"
	}
	return s.Address.Hex()
}
