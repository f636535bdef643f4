package transfer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition_RowMap(t *testing.T) {
	// Every third row fails.
	var rows []ParsedRow
	for row := 1; row <= 30; row++ {
		if row%3 == 0 {
			rows = append(rows, failedRow(row, "bad"))
			continue
		}
		rows = append(rows, okRow(row, AssetInsert{AppID: "app", AssetType: "note", Content: fmt.Sprint(row)}))
	}

	part := Partition(rows)
	require.Len(t, part.Failures, 10)
	require.Len(t, part.Items, 20)
	require.Len(t, part.RowMap, 20)

	var successes []ParsedRow
	for _, r := range rows {
		if r.OK() {
			successes = append(successes, r)
		}
	}
	for i := range part.Items {
		assert.Equal(t, successes[i].Row, part.RowMap[i])
		assert.Equal(t, successes[i].Row, part.RowOf(i))
		assert.Equal(t, fmt.Sprint(part.RowMap[i]), part.Items[i].Content)
	}
	for i, f := range part.Failures {
		assert.Equal(t, (i+1)*3, f.Row)
	}
}

func TestPartition_Empty(t *testing.T) {
	part := Partition(nil)
	assert.Empty(t, part.Items)
	assert.Empty(t, part.Failures)
	assert.Empty(t, part.RowMap)
}

func TestPartitionResult_RowOfFallback(t *testing.T) {
	var part PartitionResult
	assert.Equal(t, 1, part.RowOf(0))
	assert.Equal(t, 8, part.RowOf(7))
}

func TestBatched(t *testing.T) {
	items := make([]AssetInsert, 7)
	rowMap := []int{2, 3, 5, 8, 13, 21, 34}

	var batches []Batch
	for b := range Batched(items, rowMap, 3) {
		batches = append(batches, b)
	}
	require.Len(t, batches, 3)
	assert.Equal(t, []int{2, 3, 5}, batches[0].Rows)
	assert.Equal(t, []int{8, 13, 21}, batches[1].Rows)
	assert.Equal(t, []int{34}, batches[2].Rows)
	assert.Len(t, batches[2].Items, 1)
}

func TestBatched_DefaultSizeAndEarlyStop(t *testing.T) {
	items := make([]AssetInsert, 250)

	var sizes []int
	for b := range Batched(items, nil, 0) {
		sizes = append(sizes, len(b.Items))
		if len(sizes) == 2 {
			break
		}
	}
	assert.Equal(t, []int{DefaultImportBatchSize, DefaultImportBatchSize}, sizes)
}

func TestBatched_NoItems(t *testing.T) {
	for range Batched(nil, nil, 10) {
		t.Fatal("no batch expected")
	}
}
