package table

import "fmt"

// OuterJoin merges two tables on the named key column, full-outer style.
// Result rows are the left rows in order followed by unmatched right
// rows in order. Non-key columns of the right table whose names already
// exist on the left are dropped wholesale, so a column always carries
// the data of the first table that contributed it.
//
// Rows with a missing key never match, and when several right rows carry
// the same key only the first claims the matching left row; the rest are
// appended as unmatched rows.
func OuterJoin(left, right *Table, key string) (*Table, error) {
	leftKeys, ok := left.Column(key)
	if !ok {
		return nil, fmt.Errorf("join column %q not in left table", key)
	}
	rightKeys, ok := right.Column(key)
	if !ok {
		return nil, fmt.Errorf("join column %q not in right table", key)
	}

	var added []string
	for _, name := range right.Columns() {
		if name != key && !left.HasColumn(name) {
			added = append(added, name)
		}
	}

	index := make(map[Value]int, len(leftKeys))
	for i, v := range leftKeys {
		if v.IsMissing() {
			continue
		}
		if _, seen := index[v]; !seen {
			index[v] = i
		}
	}

	matched := make(map[int]int, len(rightKeys))
	var appended []int
	for j, v := range rightKeys {
		if v.IsMissing() {
			appended = append(appended, j)
			continue
		}
		i, found := index[v]
		if !found {
			appended = append(appended, j)
			continue
		}
		if _, taken := matched[i]; taken {
			appended = append(appended, j)
			continue
		}
		matched[i] = j
	}

	nLeft := left.NumRows()
	total := nLeft + len(appended)
	out := New()

	for _, name := range left.Columns() {
		src, _ := left.Column(name)
		values := make([]Value, total)
		copy(values, src)
		if name == key {
			for n, j := range appended {
				values[nLeft+n] = rightKeys[j]
			}
		}
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}

	for _, name := range added {
		src, _ := right.Column(name)
		values := make([]Value, total)
		for i, j := range matched {
			values[i] = src[j]
		}
		for n, j := range appended {
			values[nLeft+n] = src[j]
		}
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}

	return out, nil
}
