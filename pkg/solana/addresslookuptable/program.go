package address_lookup_table

import (
	"crypto/ed25519"
)

// Reference: https://github.com/solana-program/address-lookup-table/blob/main/program/src/state.rs

// AddressLookupTab1e1111111111111111111111111
var ProgramKey = ed25519.PublicKey{2, 119, 166, 175, 151, 51, 155, 122, 200, 141, 24, 146, 201, 4, 70, 245, 0, 2, 48, 146, 102, 246, 46, 83, 193, 24, 36, 73, 130, 0, 0, 0}
