package booking

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrSchema marks a response body that does not have the expected shape.
var ErrSchema = errors.New("unexpected response schema")

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func parse(raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, schemaErr("body is not valid JSON")
	}
	return gjson.ParseBytes(raw), nil
}

// validateSeats checks a seat listing: an array of objects with numeric
// id, row and number, a string status and a decimal string price.
func validateSeats(raw []byte) error {
	doc, err := parse(raw)
	if err != nil {
		return err
	}
	if !doc.IsArray() {
		return schemaErr("seat listing is not an array")
	}
	for i, seat := range doc.Array() {
		if err := validateSeat(seat); err != nil {
			return fmt.Errorf("seat %d: %w", i, err)
		}
	}
	return nil
}

func validateSeat(seat gjson.Result) error {
	if !seat.IsObject() {
		return schemaErr("not an object")
	}
	for _, field := range []string{"id", "row", "number"} {
		if v := seat.Get(field); v.Type != gjson.Number {
			return schemaErr("%s is not a number", field)
		}
	}
	if v := seat.Get("status"); v.Type != gjson.String {
		return schemaErr("status is not a string")
	}
	price := seat.Get("price")
	if price.Type != gjson.String {
		return schemaErr("price is not a string")
	}
	if _, err := decimal.NewFromString(price.Str); err != nil {
		return schemaErr("price %q is not a decimal", price.Str)
	}
	return nil
}

// validateCreated checks a booking creation body: an object with a numeric id.
func validateCreated(raw []byte) error {
	doc, err := parse(raw)
	if err != nil {
		return err
	}
	if !doc.IsObject() {
		return schemaErr("booking is not an object")
	}
	if doc.Get("id").Type != gjson.Number {
		return schemaErr("booking has no numeric id")
	}
	return nil
}

// validateBookings checks a booking listing: an array of objects with numeric
// id and event_id and a seats array that may be null or missing. Seats of a
// booking only need a numeric id.
func validateBookings(raw []byte) error {
	doc, err := parse(raw)
	if err != nil {
		return err
	}
	if !doc.IsArray() {
		return schemaErr("booking listing is not an array")
	}
	for i, b := range doc.Array() {
		if !b.IsObject() {
			return schemaErr("booking %d is not an object", i)
		}
		if b.Get("id").Type != gjson.Number || b.Get("event_id").Type != gjson.Number {
			return schemaErr("booking %d needs numeric id and event_id", i)
		}
		seats := b.Get("seats")
		if seats.Type == gjson.Null {
			continue
		}
		if !seats.IsArray() {
			return schemaErr("booking %d seats is not an array", i)
		}
		for j, seat := range seats.Array() {
			if !seat.IsObject() || seat.Get("id").Type != gjson.Number {
				return schemaErr("booking %d seat %d has no numeric id", i, j)
			}
		}
	}
	return nil
}
