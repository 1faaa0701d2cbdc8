// Package captoken implements the capability token codec: a
// compact binary format carrying {channel-id, permissions, author,
// expiry, MAC}, verified only against the issuing channel's secret.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package captoken

// Permissions is the token's permission bitmap.
type Permissions uint16

const (
	Read          Permissions = 1 << 0
	Append        Permissions = 1 << 1
	ReadDeleted   Permissions = 1 << 2
	DeleteOwn     Permissions = 1 << 3
	DeleteAny     Permissions = 1 << 4
	Create        Permissions = 1 << 5
	Share         Permissions = 1 << 6
	Delegate      Permissions = 1 << 7
)

// Has reports whether all bits of want are set in p.
func (p Permissions) Has(want Permissions) bool { return p&want == want }
