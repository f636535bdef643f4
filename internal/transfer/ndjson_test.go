package transfer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeNDJSONString(t *testing.T, input string, opts DecodeOptions) []ParsedRow {
	t.Helper()
	rows, err := DecodeNDJSON(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	out, err := collectRows(rows)
	require.NoError(t, err)
	return out
}

func TestDecodeNDJSON(t *testing.T) {
	input := strings.Join([]string{
		`{"assetType":"note","content":"first"}`,
		``,
		`   `,
		`{"assetType":"note","content":"second","extra":true}`,
		`not json`,
		`{"assetType":"note"}`,
		`{"content":"orphan"}`,
		`{"assetType":"note","content":42}`,
		`[1,2]`,
		`{"assetType":"","content":"x"}`,
		`{"assetType":"note","content":"last"}`,
	}, "\n")

	rows := decodeNDJSONString(t, input, testOpts())
	require.Len(t, rows, 9)

	for i, r := range rows {
		assert.Equal(t, i+1, r.Row, "row numbers skip blank lines")
	}

	assert.True(t, rows[0].OK())
	assert.Equal(t, "first", rows[0].Insert.Content)
	assert.True(t, rows[1].OK())
	assert.Contains(t, rows[2].Failure.Error, "Invalid JSON")
	assert.Equal(t, MsgMissingContent, rows[3].Failure.Error)
	assert.Equal(t, MsgMissingAssetType, rows[4].Failure.Error)
	assert.Equal(t, "content must be a string", rows[5].Failure.Error)
	assert.Equal(t, "Line is not a JSON object", rows[6].Failure.Error)
	assert.Equal(t, MsgMissingAssetType, rows[7].Failure.Error)
	assert.True(t, rows[8].OK())
	assert.Equal(t, "last", rows[8].Insert.Content)
}

func TestDecodeNDJSON_CRLF(t *testing.T) {
	rows := decodeNDJSONString(t, "{\"assetType\":\"note\",\"content\":\"a\"}\r\n{\"assetType\":\"note\",\"content\":\"b\"}\r\n", testOpts())
	require.Len(t, rows, 2)
	assert.True(t, rows[0].OK())
	assert.True(t, rows[1].OK())
	assert.Equal(t, "b", rows[1].Insert.Content)
}

func TestDecodeNDJSON_OverlongLine(t *testing.T) {
	opts := testOpts()
	opts.Limits = Limits{MaxEntryBytes: 10, MaxUploadBytes: 100}.withDefaults()

	input := `{"assetType":"note","content":"` + strings.Repeat("x", 150) + "\"}\n" +
		`{"assetType":"note","content":"ok"}` + "\n"

	rows := decodeNDJSONString(t, input, opts)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Failure)
	assert.Equal(t, "Line exceeds 100 bytes", rows[0].Failure.Error)
	assert.True(t, rows[1].OK())
	assert.Equal(t, 2, rows[1].Row)
}

func TestStreamNDJSON_Golden(t *testing.T) {
	var chunks []ExportChunk
	for chunk, err := range StreamNDJSON(seqOf(sampleAssets()), 2) {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 3, "no header chunk")
	var out strings.Builder
	for _, c := range chunks {
		out.WriteString(c.Data)
	}
	newGoldie(t).Assert(t, "export_ndjson", []byte(out.String()))
}

func TestStreamNDJSON_RoundTrip(t *testing.T) {
	var out strings.Builder
	for chunk, err := range StreamNDJSON(seqOf(sampleAssets()), DefaultExportChunkSize) {
		require.NoError(t, err)
		out.WriteString(chunk.Data)
	}

	part := Partition(decodeNDJSONString(t, out.String(), testOpts()))
	require.Empty(t, part.Failures)
	require.Len(t, part.Items, len(sampleAssets()))
	for i, a := range sampleAssets() {
		assert.Equal(t, a.Content, part.Items[i].Content)
	}
}
