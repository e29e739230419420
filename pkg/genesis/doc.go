/*
Package genesis encodes and decodes the clique consensus configuration.

Everything here is pure except Write and Read, which move a Document to and
from disk.

# extraData layout

Clique stores the authority set in the genesis extraData field:

	┌────────────┬──────────────────────────────┬────────────┐
	│ 32 × 0x00  │ signer₁ ‖ signer₂ ‖ … (20 B) │ 65 × 0x00  │
	│ vanity     │ input order, never sorted    │ seal       │
	└────────────┴──────────────────────────────┴────────────┘

The hex form is 2·(32+20N+65)+2 characters long. EncodeAuthoritySet keeps
the caller's order; the manager passes signers in roster order.

Because the encoding is a flat concatenation, any change to the signer set
means regenerating the whole document with FromNetwork rather than patching
the field.
*/
package genesis
