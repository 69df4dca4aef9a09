package solana

import (
	"bytes"
	"crypto/ed25519"
)

// MaxLookupTableAddresses is the number of entries a single address lookup
// table can hold, since entries are referenced by a u8 index.
const MaxLookupTableAddresses = 256

// AddressLookupTable is a materialized on-chain address lookup table.
type AddressLookupTable struct {
	PublicKey ed25519.PublicKey
	Addresses []ed25519.PublicKey
}

// IndexOf returns the first index of address within the table, or -1 if the
// table does not contain it.
func (t AddressLookupTable) IndexOf(address ed25519.PublicKey) int {
	for i, entry := range t.Addresses {
		if i >= MaxLookupTableAddresses {
			break
		}
		if bytes.Equal(entry, address) {
			return i
		}
	}
	return -1
}

type SortableAddressLookupTables []AddressLookupTable

func (s SortableAddressLookupTables) Len() int {
	return len(s)
}

func (s SortableAddressLookupTables) Less(i int, j int) bool {
	return bytes.Compare(s[i].PublicKey, s[j].PublicKey) < 0
}

func (s SortableAddressLookupTables) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}
