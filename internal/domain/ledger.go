package domain

import "maps"

// TakenLedger maps a dose key to its recorded outcome: true when taken,
// false when explicitly missed. An absent key is unrecorded.
type TakenLedger map[string]bool

// Status returns the recorded outcome for key and whether one exists.
func (l TakenLedger) Status(key string) (taken, recorded bool) {
	taken, recorded = l[key]
	return taken, recorded
}

// Taken reports whether key is recorded as taken.
func (l TakenLedger) Taken(key string) bool {
	return l[key]
}

// Clone returns an independent copy. A nil ledger clones to an empty one.
func (l TakenLedger) Clone() TakenLedger {
	out := make(TakenLedger, len(l))
	maps.Copy(out, l)
	return out
}

// Changes returns the entries of l that are new or differ from before.
func (l TakenLedger) Changes(before TakenLedger) map[string]bool {
	out := make(map[string]bool)
	for k, v := range l {
		if old, ok := before[k]; !ok || old != v {
			out[k] = v
		}
	}
	return out
}
