package mapped_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/symtab/pkg/mapped"
)

func openBuffer(t *testing.T, growStep int64) *mapped.Buffer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "buf.dat")

	b, err := mapped.Open(path, growStep)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	t.Cleanup(func() { _ = b.Close() })

	return b
}

func Test_Buffer_RoundTrips_Fixed_Width_Values(t *testing.T) {
	t.Parallel()

	b := openBuffer(t, 0)

	if err := b.PutInt32(42); err != nil {
		t.Fatalf("PutInt32 failed: %v", err)
	}

	if err := b.PutInt64(-7); err != nil {
		t.Fatalf("PutInt64 failed: %v", err)
	}

	if err := b.PutInt64(1 << 40); err != nil {
		t.Fatalf("PutInt64 failed: %v", err)
	}

	if got := b.Int32At(0); got != 42 {
		t.Errorf("Int32At(0) = %d, want 42", got)
	}

	if got := b.Int64At(4); got != -7 {
		t.Errorf("Int64At(4) = %d, want -7", got)
	}

	if got := b.Int64At(12); got != 1<<40 {
		t.Errorf("Int64At(12) = %d, want %d", got, int64(1)<<40)
	}

	if got := b.AppendOffset(); got != 20 {
		t.Errorf("AppendOffset = %d, want 20", got)
	}
}

func Test_Buffer_PutStr_Returns_Entry_Offset_And_StorageLength(t *testing.T) {
	t.Parallel()

	b := openBuffer(t, 0)

	off1, err := b.PutStr("hello")
	if err != nil {
		t.Fatalf("PutStr failed: %v", err)
	}

	off2, err := b.PutStr("")
	if err != nil {
		t.Fatalf("PutStr failed: %v", err)
	}

	off3, err := b.PutStr("wörld")
	if err != nil {
		t.Fatalf("PutStr failed: %v", err)
	}

	if off1 != 0 {
		t.Errorf("first entry offset = %d, want 0", off1)
	}

	if want := off1 + b.StorageLengthAt(off1); off2 != want {
		t.Errorf("second entry offset = %d, want %d", off2, want)
	}

	if want := off2 + b.StorageLengthAt(off2); off3 != want {
		t.Errorf("third entry offset = %d, want %d", off3, want)
	}

	if got := b.StrAt(off1); got != "hello" {
		t.Errorf("StrAt(off1) = %q, want %q", got, "hello")
	}

	if got := b.StrAt(off2); got != "" {
		t.Errorf("StrAt(off2) = %q, want empty", got)
	}

	if got := b.StrAt(off3); got != "wörld" {
		t.Errorf("StrAt(off3) = %q, want %q", got, "wörld")
	}

	// Storage length is prefix plus payload, so the append cursor sits
	// exactly past the last entry.
	if want := off3 + b.StorageLengthAt(off3); b.AppendOffset() != want {
		t.Errorf("AppendOffset = %d, want %d", b.AppendOffset(), want)
	}
}

func Test_Buffer_Grows_And_Preserves_Data(t *testing.T) {
	t.Parallel()

	// A 1-byte grow step rounds up to a single page, so appending a few
	// hundred KiB forces several ftruncate+remap cycles.
	b := openBuffer(t, 1)

	initialSize := b.Size()

	var offsets []int64

	for i := 0; i < 20_000; i++ {
		off, err := b.PutStr(fmt.Sprintf("symbol-%06d", i))
		if err != nil {
			t.Fatalf("PutStr %d failed: %v", i, err)
		}

		offsets = append(offsets, off)
	}

	if b.Size() <= initialSize {
		t.Fatalf("expected buffer to grow beyond %d, size is %d", initialSize, b.Size())
	}

	// Offsets handed out before growth must still dereference correctly.
	for i, off := range offsets {
		want := fmt.Sprintf("symbol-%06d", i)
		if got := b.StrAt(off); got != want {
			t.Fatalf("StrAt(%d) = %q, want %q", off, got, want)
		}
	}
}

func Test_Buffer_JumpTo_Repositions_Append_Cursor(t *testing.T) {
	t.Parallel()

	b := openBuffer(t, 0)

	if err := b.PutInt64(111); err != nil {
		t.Fatalf("PutInt64 failed: %v", err)
	}

	if err := b.PutInt64(222); err != nil {
		t.Fatalf("PutInt64 failed: %v", err)
	}

	if err := b.JumpTo(8); err != nil {
		t.Fatalf("JumpTo failed: %v", err)
	}

	if err := b.PutInt64(333); err != nil {
		t.Fatalf("PutInt64 failed: %v", err)
	}

	if got := b.Int64At(0); got != 111 {
		t.Errorf("Int64At(0) = %d, want 111", got)
	}

	if got := b.Int64At(8); got != 333 {
		t.Errorf("Int64At(8) = %d, want 333", got)
	}

	if err := b.JumpTo(-1); err == nil {
		t.Error("JumpTo(-1) should fail")
	}
}

func Test_Buffer_PutInt64At_Writes_Without_Moving_Cursor(t *testing.T) {
	t.Parallel()

	b := openBuffer(t, 0)

	if err := b.JumpTo(64); err != nil {
		t.Fatalf("JumpTo failed: %v", err)
	}

	if err := b.PutInt64At(16, 999); err != nil {
		t.Fatalf("PutInt64At failed: %v", err)
	}

	if got := b.AppendOffset(); got != 64 {
		t.Errorf("AppendOffset = %d, want 64", got)
	}

	if got := b.Int64At(16); got != 999 {
		t.Errorf("Int64At(16) = %d, want 999", got)
	}
}

func Test_Buffer_Reopen_Preserves_Data(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "buf.dat")

	b, err := mapped.Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	strOff, err := b.PutStr("persisted")
	if err != nil {
		t.Fatalf("PutStr failed: %v", err)
	}

	if err := b.PutInt64(12345); err != nil {
		t.Fatalf("PutInt64 failed: %v", err)
	}

	if err := b.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b2, err := mapped.Open(path, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer b2.Close()

	if got := b2.StrAt(strOff); got != "persisted" {
		t.Errorf("StrAt after reopen = %q, want %q", got, "persisted")
	}

	if got := b2.Int64At(strOff + b2.StorageLengthAt(strOff)); got != 12345 {
		t.Errorf("Int64At after reopen = %d, want 12345", got)
	}
}

func Test_Buffer_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	b := openBuffer(t, 0)

	if err := b.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	var nilBuf *mapped.Buffer
	if err := nilBuf.Close(); err != nil {
		t.Fatalf("nil Close failed: %v", err)
	}
}

func Test_Buffer_File_Contains_Written_Bytes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "buf.dat")

	b, err := mapped.Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	if _, err := b.PutStr("abc"); err != nil {
		t.Fatalf("PutStr failed: %v", err)
	}

	if err := b.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	want := []byte{3, 0, 0, 0, 'a', 'b', 'c'}
	if !bytes.Equal(raw[:len(want)], want) {
		t.Errorf("file prefix = %v, want %v", raw[:len(want)], want)
	}
}
