package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Size is the byte length of an ID.
const Size = 32

var ErrInvalidID = errors.New("invalid identity")

// ID identifies an actor: the channel owner, a subscriber or a message sender.
type ID [Size]byte

// Zero is the placeholder identity reported before a channel is initialized.
var Zero ID

// Parse decodes the 64-character hex form produced by String. A leading "0x" is accepted.
func Parse(s string) (ID, error) {
	var id ID
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != hex.EncodedLen(Size) {
		return id, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidID, hex.EncodedLen(Size), len(raw))
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return id, nil
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// FromPeer derives a stable identity from a libp2p peer ID.
func FromPeer(p peer.ID) ID {
	return ID(sha256.Sum256([]byte(p)))
}

// FromString derives an identity by hashing an arbitrary label such as "alice".
func FromString(label string) ID {
	return ID(sha256.Sum256([]byte(label)))
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ID) IsZero() bool {
	return id == Zero
}

// Compare orders identities by their bytes.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
