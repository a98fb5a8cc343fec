package jobs

import (
	"encoding/json"
	"fmt"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobPasswordResetEmail:
		_, ok := payload.(PasswordResetEmailPayload)

		if !ok {
			_, ok2 := payload.(*PasswordResetEmailPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals a raw job payload into the typed struct for its
// job type.
func DecodePayload(t JobType, raw json.RawMessage) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	if len(raw) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobPasswordResetEmail:
		var p PasswordResetEmailPayload

		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}
