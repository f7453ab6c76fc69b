package core

import "github.com/google/uuid"

// Entity id prefixes.
const (
	PrefixRenter       = "t"
	PrefixRoom         = "r"
	PrefixRentPayment  = "rp"
	PrefixFamilyMember = "fm"
	PrefixPayout       = "p"
	PrefixBill         = "b"
	PrefixExpense      = "e"
)

// NewID returns a random id with the given entity prefix, e.g. "rp-1b4e...".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
