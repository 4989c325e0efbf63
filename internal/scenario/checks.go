package scenario

import (
	"fmt"

	"seatrace/internal/booking"
	"seatrace/internal/core"

	"github.com/tidwall/gjson"
)

func check(name string, passed bool) core.Check {
	return core.Check{Name: name, Passed: passed}
}

// freeSeatChecks asserts a free-seat listing from its raw body, so a listing
// that fails schema validation still yields individual verdicts.
func freeSeatChecks(status int, raw []byte, pageSize int) []core.Check {
	valid := gjson.ValidBytes(raw)
	doc := gjson.ParseBytes(raw)
	isArray := valid && doc.IsArray()
	var seats []gjson.Result
	if isArray {
		seats = doc.Array()
	}

	allFree, unique, wellFormed := isArray, isArray, valid
	seen := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		if s.Get("status").String() != booking.StatusFree {
			allFree = false
		}
		id := s.Get("id").Raw
		if _, dup := seen[id]; dup {
			unique = false
		}
		seen[id] = struct{}{}
		if s.Get("id").Type != gjson.Number || s.Get("row").Type != gjson.Number ||
			s.Get("number").Type != gjson.Number || s.Get("status").Type != gjson.String ||
			s.Get("price").Type != gjson.String {
			wellFormed = false
		}
	}

	return []core.Check{
		check("get free seats status is 200", status == 200),
		check("seats response has valid structure", isArray),
		check("return number of seats <= pageSize", isArray && len(seats) <= pageSize),
		check("all seats have status FREE", allFree),
		check("all seat IDs are unique", unique),
		check("seats have required format", wellFormed),
	}
}

// checkFreeListing rejects listings that parsed but break the free-seat
// contract: too many rows, a non-FREE seat or a repeated id.
func checkFreeListing(seats []booking.Seat, pageSize int) error {
	if pageSize > 0 && len(seats) > pageSize {
		return fmt.Errorf("%d seats returned for pageSize %d", len(seats), pageSize)
	}
	seen := make(map[int64]struct{}, len(seats))
	for _, s := range seats {
		if s.Status != booking.StatusFree {
			return fmt.Errorf("seat %d has status %s in a free listing", s.ID, s.Status)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("seat %d listed twice", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// callFailure classifies a call that did not return what the flow needed.
func callFailure[T any](r booking.Response[T]) core.Outcome {
	class := r.Class()
	if class == core.ClassNone {
		class = core.ClassUnexpectedStatus
	}
	return core.Failure(class, "%s", r.Describe())
}
