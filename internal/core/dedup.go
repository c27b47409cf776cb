package core

// dedup.go classifies the rows of a raw batch before canonicalization.
//
// Exact duplicates (identical in every column) collapse to their first
// occurrence and are only counted. Among the survivors, rows sharing the raw
// (order_id, item_sku) pair form a conflict group; every member of a group
// with more than one row is rejected. Absent values compare equal, so rows
// missing both key columns fall into one group.

import "strings"

// DuplicateKey is the raw (order_id, item_sku) pair of a row.
type DuplicateKey struct {
	OrderID      string
	OrderIDValid bool
	ItemSKU      string
	ItemSKUValid bool
}

// KeyOf returns the duplicate key of a raw row.
func KeyOf(row RawRow) DuplicateKey {
	id, idOK := row.Get(ColOrderID)
	sku, skuOK := row.Get(ColItemSKU)
	return DuplicateKey{OrderID: id, OrderIDValid: idOK, ItemSKU: sku, ItemSKUValid: skuOK}
}

// Dedup is the outcome of duplicate resolution over one batch.
type Dedup struct {
	// Rows holds the batch with exact duplicates removed, in input order.
	Rows []RawRow
	// Dropped is the number of exact duplicates removed.
	Dropped int
	// Conflicting marks, per entry of Rows, membership in a conflict group.
	Conflicting []bool
}

// ConflictCount returns how many surviving rows share their key with another.
func (d Dedup) ConflictCount() int {
	n := 0
	for _, c := range d.Conflicting {
		if c {
			n++
		}
	}
	return n
}

// ResolveDuplicates drops exact duplicates and flags conflicting keys.
func ResolveDuplicates(rows []RawRow) Dedup {
	unique := DropExactDuplicates(rows)

	counts := make(map[DuplicateKey]int, len(unique))
	for _, row := range unique {
		counts[KeyOf(row)]++
	}

	conflicting := make([]bool, len(unique))
	for i, row := range unique {
		conflicting[i] = counts[KeyOf(row)] > 1
	}

	return Dedup{
		Rows:        unique,
		Dropped:     len(rows) - len(unique),
		Conflicting: conflicting,
	}
}

// DropExactDuplicates keeps the first occurrence of every distinct row.
func DropExactDuplicates(rows []RawRow) []RawRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]RawRow, 0, len(rows))
	for _, row := range rows {
		fp := fingerprint(row)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, row)
	}
	return out
}

// fingerprint encodes every column name, presence flag and value.
// Control separators keep distinct rows from colliding.
func fingerprint(row RawRow) string {
	var b strings.Builder
	for _, f := range row.Fields {
		b.WriteString(f.Name)
		b.WriteByte(0x1f)
		if f.Valid {
			b.WriteByte('1')
			b.WriteString(f.Value)
		} else {
			b.WriteByte('0')
		}
		b.WriteByte(0x1e)
	}
	return b.String()
}
