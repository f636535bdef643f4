package transfer

// PartitionResult separates decoded rows into accepted records and failures.
// RowMap[i] is the source row of Items[i].
type PartitionResult struct {
	Items    []AssetInsert
	Failures []Failure
	RowMap   []int
}

// RowOf returns the source row of Items[i], falling back to i+1.
func (p PartitionResult) RowOf(i int) int {
	return rowAt(p.RowMap, i)
}

func rowAt(rowMap []int, i int) int {
	if i >= 0 && i < len(rowMap) {
		return rowMap[i]
	}
	return i + 1
}

// Partition splits rows into successes and failures, preserving source order
// in both.
func Partition(rows []ParsedRow) PartitionResult {
	var res PartitionResult
	for _, r := range rows {
		if r.Failure != nil {
			res.Failures = append(res.Failures, *r.Failure)
			continue
		}
		if r.Insert == nil {
			continue
		}
		res.Items = append(res.Items, *r.Insert)
		res.RowMap = append(res.RowMap, r.Row)
	}
	return res
}
