package domain

import "time"

type RecordKind string

const (
	RecordCreated   RecordKind = "CREATED"
	RecordUpdated   RecordKind = "UPDATED"
	RecordCancelled RecordKind = "CANCELLED"
)

// Record is the state of one order as observed right after a ledger call
// touched it. Cancelled records carry the remaining amounts that were
// refunded, not the zeroed ones.
type Record struct {
	Kind      RecordKind `json:"kind"`
	Order     Order      `json:"order"`
	Timestamp time.Time  `json:"timestamp"`
}

// Batch is everything one committed call hands to the outbound side.
type Batch struct {
	Records []Record
	Notices []TradeNotice
}

func (b Batch) Empty() bool {
	return len(b.Records) == 0 && len(b.Notices) == 0
}
