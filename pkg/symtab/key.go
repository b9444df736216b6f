package symtab

// Key is a dictionary key: a dense, non-negative integer assigned to a
// distinct symbol value in first-sight order. Keys are never reassigned
// or reused; rollback simply forgets keys at or past the rollback point.
type Key int64

// Null is the key returned for an absent (null) symbol value. It is
// never minted for real text.
const Null Key = -1

// HeaderSize is the offset store header size in bytes. The header holds
// the table's configured capacity as an int32 at byte 0; the remaining
// bytes are reserved.
const HeaderSize = 64

// keyToOffset and offsetToKey are the only conversions between key space
// and offset-store byte space. Every offset-store position handed to the
// bucket index (the "offset-offset") goes through keyToOffset, and every
// key recovered from an index entry goes through offsetToKey.

func keyToOffset(k Key) int64 {
	return HeaderSize + int64(k)*8
}

func offsetToKey(offset int64) Key {
	return Key((offset - HeaderSize) / 8)
}
