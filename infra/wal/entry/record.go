package entry

import "time"

// RecordType mirrors the operation kind of the journaled payload.
type RecordType uint8

const (
	RecordCreate RecordType = iota
	RecordCancel
	RecordAmend
)

// Record is an immutable journal entry. Data is an opaque payload
// owned by the caller's codec.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
