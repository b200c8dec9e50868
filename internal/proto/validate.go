package proto

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodePayload unmarshals the inbound payload into dst and checks its
// validate tags. Any failure means the whole event must be dropped.
func (in Inbound) DecodePayload(dst any) error {
	if len(in.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", in.Type)
	}
	if err := json.Unmarshal(in.Payload, dst); err != nil {
		return fmt.Errorf("%s: decode payload: %w", in.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", in.Type, err)
	}
	return nil
}
