package order

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

const (
	DefaultCustomerName = "Customer"
	DefaultItemName     = "Item"
)

// NormalizationError explains why an external payload was rejected. It
// unwraps to apperr.ErrMalformedPayload or apperr.ErrInvalidLine.
type NormalizationError struct {
	Kind   error
	Line   int // index into the line collection, -1 for payload-level errors
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %d: %s %s", e.Kind, e.Line, e.Field, e.Reason)
}

func (e *NormalizationError) Unwrap() error {
	return e.Kind
}

func malformed(field, reason string) error {
	return &NormalizationError{Kind: apperr.ErrMalformedPayload, Line: -1, Field: field, Reason: reason}
}

func invalidLine(line int, field, reason string) error {
	return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: line, Field: field, Reason: reason}
}

// Normalize maps an external order payload onto a Draft. For every field the
// first present alias wins; a value is present unless it is null, blank,
// false, zero or an empty collection. Any invalid line rejects the whole
// payload.
func Normalize(payload any) (Draft, error) {
	data, ok := payload.(map[string]any)
	if !ok {
		return Draft{}, malformed("payload", "must be an object")
	}

	var d Draft

	if v, ok := first(data, "external_code", "orderId", "id"); ok {
		code, ok := scalarString(v)
		if !ok {
			return Draft{}, malformed("external_code", "must be a scalar")
		}
		d.ExternalCode = &code
	}

	d.CustomerName = DefaultCustomerName
	customer := data["customer_name"]
	if !present(customer) {
		if nested, ok := data["customer"].(map[string]any); ok {
			customer = nested["name"]
		}
	}
	if present(customer) {
		name, ok := scalarString(customer)
		if !ok {
			return Draft{}, malformed("customer_name", "must be a scalar")
		}
		d.CustomerName = name
	}

	if v, ok := first(data, "note", "observation"); ok {
		note, ok := scalarString(v)
		if !ok {
			return Draft{}, malformed("note", "must be a scalar")
		}
		d.Note = &note
	}

	raw, ok := first(data, "items", "orderItems")
	if !ok {
		return Draft{}, malformed("items", "are missing or empty")
	}
	items, ok := raw.([]any)
	if !ok {
		return Draft{}, malformed("items", "must be a list")
	}

	d.Lines = make([]DraftLine, 0, len(items))
	for i, rawItem := range items {
		line, err := normalizeLine(i, rawItem)
		if err != nil {
			return Draft{}, err
		}
		d.Lines = append(d.Lines, line)
	}
	if err := inventory.CheckStored(d.Total()); err != nil {
		return Draft{}, malformed("items", "order total "+err.Error())
	}

	return d, nil
}

func normalizeLine(i int, raw any) (DraftLine, error) {
	item, ok := raw.(map[string]any)
	if !ok {
		return DraftLine{}, invalidLine(i, "item", "must be an object")
	}

	var line DraftLine

	v, ok := first(item, "sku", "id", "code")
	if !ok {
		return DraftLine{}, invalidLine(i, "sku", "is missing")
	}
	if line.SKU, ok = scalarString(v); !ok {
		return DraftLine{}, invalidLine(i, "sku", "must be a scalar")
	}

	line.Name = DefaultItemName
	if v, ok := first(item, "name", "description"); ok {
		if line.Name, ok = scalarString(v); !ok {
			return DraftLine{}, invalidLine(i, "name", "must be a scalar")
		}
	}

	v, ok = first(item, "qty", "quantity")
	if !ok {
		return DraftLine{}, invalidLine(i, "qty", "is missing")
	}
	qty, ok := toDecimal(v)
	if !ok || !qty.IsInteger() || !qty.IsPositive() || qty.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return DraftLine{}, invalidLine(i, "qty", "must be a positive integer")
	}
	line.Qty = int(qty.IntPart())

	line.UnitPrice = decimal.Zero
	if v, ok := first(item, "unit_price", "unitPrice", "price"); ok {
		price, ok := toDecimal(v)
		if !ok || price.IsNegative() {
			return DraftLine{}, invalidLine(i, "unit_price", "must be a non-negative number")
		}
		if err := inventory.CheckStored(price); err != nil {
			return DraftLine{}, invalidLine(i, "unit_price", err.Error())
		}
		line.UnitPrice = price
	}
	if err := inventory.CheckStored(line.Total()); err != nil {
		return DraftLine{}, invalidLine(i, "total", err.Error())
	}

	return line, nil
}

func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v := m[k]; present(v) {
			return v, true
		}
	}
	return nil, false
}

func present(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f != 0
		}
		return v.String() != ""
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}

func scalarString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	}
	return decimal.Zero, false
}
