package mirror

import (
	"fmt"

	"github.com/PolarWolf314/veil/internal/cipher"
)

// Direction is the way a run copies objects.
type Direction int

const (
	// Push copies plaintext objects into the encrypted store.
	Push Direction = iota
	// Pull copies encrypted objects back into a plaintext store.
	Pull
)

func (d Direction) String() string {
	switch d {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "push" or "pull".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "push":
		return Push, nil
	case "pull":
		return Pull, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) stream() cipher.StreamFunc {
	if d == Push {
		return cipher.NewEncryptReader
	}
	return cipher.NewDecryptReader
}

func (d Direction) text() cipher.StringFunc {
	if d == Push {
		return cipher.EncryptString
	}
	return cipher.DecryptString
}
