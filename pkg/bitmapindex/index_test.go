package bitmapindex_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/symtab/pkg/bitmapindex"
)

func openIndex(t *testing.T, blockCapacity int) *bitmapindex.Writer {
	t.Helper()

	dir := t.TempDir()

	require.NoError(t, bitmapindex.Create(dir, "col", blockCapacity))

	w, err := bitmapindex.Open(dir, "col", 0)
	require.NoError(t, err)

	t.Cleanup(func() { _ = w.Close() })

	return w
}

func collect(t *testing.T, w *bitmapindex.Writer, hash uint32) []int64 {
	t.Helper()

	var values []int64

	cursor := w.Cursor(hash)

	for {
		v, ok := cursor.Next()
		if !ok {
			return values
		}

		values = append(values, v)
	}
}

func Test_Index_Cursor_Returns_Values_In_Append_Order(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 4)

	want := []int64{64, 72, 96, 104, 200}
	for _, v := range want {
		require.NoError(t, w.Add(3, v))
	}

	require.Equal(t, want, collect(t, w, 3))
}

func Test_Index_Cursor_On_Untouched_Bucket_Is_Empty(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 4)

	require.Empty(t, collect(t, w, 0))
	require.Empty(t, collect(t, w, 999))
}

func Test_Index_Buckets_Are_Independent(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 2)

	require.NoError(t, w.Add(0, 10))
	require.NoError(t, w.Add(7, 20))
	require.NoError(t, w.Add(0, 30))
	require.NoError(t, w.Add(3, 40))

	require.Equal(t, []int64{10, 30}, collect(t, w, 0))
	require.Equal(t, []int64{40}, collect(t, w, 3))
	require.Equal(t, []int64{20}, collect(t, w, 7))
}

func Test_Index_Chains_Blocks_Beyond_Block_Capacity(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 4)

	var want []int64
	for i := int64(0); i < 11; i++ {
		v := 64 + i*8
		want = append(want, v)
		require.NoError(t, w.Add(5, v))
	}

	require.Equal(t, want, collect(t, w, 5))
}

func Test_Index_RollbackValues_Drops_Values_At_Or_Beyond_Threshold(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 4)

	// Two buckets with interleaved, per-bucket ascending values.
	require.NoError(t, w.Add(1, 64))
	require.NoError(t, w.Add(2, 72))
	require.NoError(t, w.Add(1, 80))
	require.NoError(t, w.Add(2, 88))
	require.NoError(t, w.Add(1, 96))

	require.NoError(t, w.RollbackValues(80))

	require.Equal(t, []int64{64}, collect(t, w, 1))
	require.Equal(t, []int64{72}, collect(t, w, 2))
}

func Test_Index_RollbackValues_To_Zero_Empties_Buckets(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 4)

	require.NoError(t, w.Add(0, 64))
	require.NoError(t, w.Add(0, 72))

	require.NoError(t, w.RollbackValues(64))

	require.Empty(t, collect(t, w, 0))
}

func Test_Index_Add_After_Rollback_Reuses_Linked_Blocks(t *testing.T) {
	t.Parallel()

	// Block capacity 2 forces chaining quickly; rollback into the middle
	// of the chain, then re-add the same tail and a new value.
	w := openIndex(t, 2)

	for _, v := range []int64{64, 72, 80, 88, 96} {
		require.NoError(t, w.Add(9, v))
	}

	require.NoError(t, w.RollbackValues(80))
	require.Equal(t, []int64{64, 72}, collect(t, w, 9))

	for _, v := range []int64{80, 88, 96, 104} {
		require.NoError(t, w.Add(9, v))
	}

	require.Equal(t, []int64{64, 72, 80, 88, 96, 104}, collect(t, w, 9))
}

func Test_Index_Reopen_Preserves_State(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, bitmapindex.Create(dir, "col", 4))

	w, err := bitmapindex.Open(dir, "col", 0)
	require.NoError(t, err)

	for i := int64(0); i < 9; i++ {
		require.NoError(t, w.Add(uint32(i%3), 64+i*8))
	}

	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	w2, err := bitmapindex.Open(dir, "col", 0)
	require.NoError(t, err)
	defer w2.Close()

	require.Equal(t, []int64{64, 88, 112}, collect(t, w2, 0))
	require.Equal(t, []int64{72, 96, 120}, collect(t, w2, 1))
	require.Equal(t, []int64{80, 104, 128}, collect(t, w2, 2))

	// Adds after reopen land after the persisted history.
	require.NoError(t, w2.Add(1, 136))
	require.Equal(t, []int64{72, 96, 120, 136}, collect(t, w2, 1))
}

func Test_Index_Open_Fails_On_Uninitialized_Key_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// A zeroed key file has block capacity 0, which Create can never
	// produce.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "col.k"), make([]byte, 64), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "col.v"), nil, 0o600))

	_, err := bitmapindex.Open(dir, "col", 0)
	require.Error(t, err)
}

func Test_Index_Create_Rejects_Invalid_Block_Capacity(t *testing.T) {
	t.Parallel()

	require.Error(t, bitmapindex.Create(t.TempDir(), "col", 0))
}

func Test_Index_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	w := openIndex(t, 4)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	var nilWriter *bitmapindex.Writer
	require.NoError(t, nilWriter.Close())
}
