package pos

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// onlineOrderSchema mirrors the POS service's online-order contract. Payloads
// are checked locally before the order leaves this process, because by the
// time the POS call happens the upstream order already exists and cannot be
// rolled back.
const onlineOrderSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["customer_name", "cashier_name", "order_type", "payment_method", "subtotal", "total_amount", "status", "items"],
  "properties": {
    "customer_name": {"type": "string", "minLength": 1},
    "cashier_name": {"type": "string", "minLength": 1},
    "order_type": {"type": "string", "minLength": 1},
    "payment_method": {"type": "string", "minLength": 1},
    "subtotal": {"type": "number", "minimum": 0},
    "total_amount": {"type": "number", "minimum": 0},
    "status": {"type": "string", "enum": ["pending", "completed", "cancelled"]},
    "reference_number": {"type": ["string", "null"]},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "quantity", "price"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "quantity": {"type": "integer", "minimum": 1},
          "price": {"type": "number", "minimum": 0},
          "category": {"type": ["string", "null"]},
          "promo_name": {"type": ["string", "null"]},
          "discount": {"type": "number", "minimum": 0},
          "addons": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["addon_name", "price"],
              "properties": {
                "addon_name": {"type": "string"},
                "price": {"type": "number", "minimum": 0}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledOnlineOrderSchema = jsonschema.MustCompileString("pos/online_order.schema.json", onlineOrderSchema)

// SchemaError reports an online-order payload that failed local validation.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("pos: invalid online order payload: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ValidateOnlineOrder checks the wire payload against the POS contract
// without touching the network. The payload is roundtripped through JSON so
// the validated document is exactly what the POS would receive.
func ValidateOnlineOrder(order OnlineOrder) error {
	encoded, err := json.Marshal(order.payload())
	if err != nil {
		return &SchemaError{Err: err}
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return &SchemaError{Err: err}
	}
	if err := compiledOnlineOrderSchema.Validate(doc); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}
