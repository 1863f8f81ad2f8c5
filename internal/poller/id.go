package poller

import "fmt"

// maxIDLength keeps ids usable as NATS subject tokens and KV keys.
const maxIDLength = 128

// ValidateID reports whether id can name a poller. Ids are limited to ASCII
// letters, digits, '-' and '_' so that each one maps to exactly one NATS
// subject token, KV key and store row.
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidID, id, maxIDLength)
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, c)
		}
	}
	return nil
}
