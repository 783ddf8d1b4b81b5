// Package version parses collection-qualified version strings of the form
// collection.major.minor.patch.enumerator.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/configurator/internal/core/events"
)

// Number is a parsed version. The zero-value parts compare lowest.
type Number struct {
	Collection string
	parts      [4]int
}

// Parse reads collection.major.minor.patch.enumerator.
func Parse(s string) (Number, error) {
	fields := strings.Split(s, ".")
	if len(fields) != 5 || fields[0] == "" {
		return Number{}, invalid(s)
	}
	n := Number{Collection: fields[0]}
	for i, f := range fields[1:] {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return Number{}, invalid(s)
		}
		n.parts[i] = v
	}
	return n, nil
}

func invalid(s string) error {
	event := events.New("VER-01", "VALIDATION")
	return events.Fail(event, events.KindValidation, "invalid version format "+s, map[string]any{"version": s})
}

// Zero is the version of a collection that has never been processed.
func Zero(collection string) Number {
	return Number{Collection: collection}
}

// FromParts rebuilds a Number from a persisted pointer value.
func FromParts(collection string, parts []int) (Number, error) {
	if len(parts) != 4 {
		return Number{}, invalid(fmt.Sprintf("%s.%v", collection, parts))
	}
	n := Number{Collection: collection}
	copy(n.parts[:], parts)
	return n, nil
}

// Parts returns major, minor, patch and enumerator.
func (n Number) Parts() []int {
	return []int{n.parts[0], n.parts[1], n.parts[2], n.parts[3]}
}

// Compare orders by the numeric parts only. It returns -1, 0 or 1.
func (n Number) Compare(other Number) int {
	for i := range n.parts {
		switch {
		case n.parts[i] < other.parts[i]:
			return -1
		case n.parts[i] > other.parts[i]:
			return 1
		}
	}
	return 0
}

// AtLeast reports n >= other.
func (n Number) AtLeast(other Number) bool {
	return n.Compare(other) >= 0
}

// EnumeratorVersion is the enumeration set version this version renders with.
func (n Number) EnumeratorVersion() int {
	return n.parts[3]
}

// String is the four part version without the collection name.
func (n Number) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", n.parts[0], n.parts[1], n.parts[2], n.parts[3])
}

// Full includes the collection name.
func (n Number) Full() string {
	return n.Collection + "." + n.String()
}

// SchemaFileName names the dictionary file: collection.major.minor.patch.yaml.
func (n Number) SchemaFileName() string {
	return fmt.Sprintf("%s.%d.%d.%d.yaml", n.Collection, n.parts[0], n.parts[1], n.parts[2])
}
