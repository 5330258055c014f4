// Package ingest reconciles polled marketplace orders against a
// per-source ledger so a poll pass can run repeatedly without fulfilling
// the same order twice.
package ingest

import "time"

// maxProcessedIDs caps the recently-processed set. Evicting old IDs is a
// deliberate loss of long-horizon dedup: polling windows are short and
// the watermark is the secondary filter, so 200 IDs comfortably cover the
// overlap between passes.
const maxProcessedIDs = 200

// Ledger is the persisted reconciliation state for one poll source.
type Ledger struct {
	// LastSeen is the watermark: the latest order timestamp successfully
	// processed. Polls fetch orders created after it.
	LastSeen time.Time `json:"last_seen_watermark"`
	// ProcessedIDs holds the most recent order ids, newest last.
	ProcessedIDs []string `json:"processed_order_ids"`
}

// IsNew reports whether the order id has not been processed recently.
func (l *Ledger) IsNew(orderID string) bool {
	for _, id := range l.ProcessedIDs {
		if id == orderID {
			return false
		}
	}
	return true
}

// Advance records a successfully processed order. The id joins the
// recent set (evicting the oldest beyond the cap); the watermark moves
// forward only, and only when ts is non-zero. The poller passes a zero
// ts while an earlier order in the same pass has failed, so the failed
// order is fetched again next poll.
func (l *Ledger) Advance(orderID string, ts time.Time) {
	if orderID != "" && l.IsNew(orderID) {
		l.ProcessedIDs = append(l.ProcessedIDs, orderID)
		if len(l.ProcessedIDs) > maxProcessedIDs {
			l.ProcessedIDs = l.ProcessedIDs[len(l.ProcessedIDs)-maxProcessedIDs:]
		}
	}
	if !ts.IsZero() && ts.After(l.LastSeen) {
		l.LastSeen = ts
	}
}
