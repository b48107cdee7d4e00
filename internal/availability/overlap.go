// Package availability counts free units of a room type for a stay.
package availability

import (
	"fmt"
	"time"
)

// Overlaps reports whether an existing stay [existingFrom, existingTo) shares
// a night with [queryFrom, queryTo). A stay ending on the day another one
// starts does not overlap it.
func Overlaps(existingFrom, existingTo, queryFrom, queryTo time.Time) bool {
	return existingFrom.Before(queryTo) && queryFrom.Before(existingTo)
}

// OverlapSQL is Overlaps rendered over SQL expressions: column names or bind
// placeholders, given in the same order as the arguments of Overlaps.
func OverlapSQL(existingFrom, existingTo, queryFrom, queryTo string) string {
	return fmt.Sprintf("(%s < %s AND %s < %s)", existingFrom, queryTo, queryFrom, existingTo)
}
