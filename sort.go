package gobmc

import "fmt"

type SortID int32

const invalidSort SortID = -1

const (
	SORT_BITVEC = 1
	SORT_ARRAY  = 2
)

// Sort is a BTOR2 sort: either a bit-vector of a given width, or an
// array from an index sort to an element sort. Sorts are interned in a
// sortTable, so two structurally equal sorts share one SortID.
type Sort struct {
	Kind  int
	Width uint   // SORT_BITVEC only
	Index SortID // SORT_ARRAY only
	Elem  SortID // SORT_ARRAY only
}

func (s Sort) IsBitvec() bool {
	return s.Kind == SORT_BITVEC
}

func (s Sort) IsArray() bool {
	return s.Kind == SORT_ARRAY
}

type sortTable struct {
	sorts []Sort
}

func newSortTable() *sortTable {
	return &sortTable{sorts: make([]Sort, 0)}
}

func (st *sortTable) get(id SortID) Sort {
	return st.sorts[id]
}

func (st *sortTable) intern(s Sort) SortID {
	for i := 0; i < len(st.sorts); i++ {
		if st.sorts[i] == s {
			return SortID(i)
		}
	}
	st.sorts = append(st.sorts, s)
	return SortID(len(st.sorts) - 1)
}

func (st *sortTable) bitvec(width uint) (SortID, error) {
	if width == 0 {
		return invalidSort, fmt.Errorf("bitvec sort with width 0")
	}
	return st.intern(Sort{Kind: SORT_BITVEC, Width: width}), nil
}

func (st *sortTable) array(index, elem SortID) (SortID, error) {
	if !st.get(index).IsBitvec() || !st.get(elem).IsBitvec() {
		return invalidSort, fmt.Errorf("array sort over non-bitvec sorts")
	}
	return st.intern(Sort{Kind: SORT_ARRAY, Index: index, Elem: elem}), nil
}

func (st *sortTable) String(id SortID) string {
	s := st.get(id)
	if s.IsBitvec() {
		return fmt.Sprintf("bitvec %d", s.Width)
	}
	return fmt.Sprintf("array (%s) (%s)", st.String(s.Index), st.String(s.Elem))
}
