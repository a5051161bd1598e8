package simhash

// DefaultThreshold is the Hamming distance at or below which two pages
// are treated as the same content. 64-bit SimHashes of unrelated pages
// typically differ by ~32 bits; renders of the same page differ by a few.
const DefaultThreshold = 3

// Dedupe tracks fingerprints of pages already kept and answers whether a
// new page is a near-duplicate of any of them. It holds a linear list:
// route counts per site are small (bounded by the SPA route cap), so an
// index structure would be overkill. Not safe for concurrent use.
type Dedupe struct {
	threshold int
	seen      []uint64
}

func NewDedupe(threshold int) *Dedupe {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Dedupe{threshold: threshold}
}

// Seen fingerprints the text and reports whether a near-duplicate was
// already recorded. Fresh content is recorded; duplicates are not.
// Empty text is never recorded and never counts as a duplicate.
func (d *Dedupe) Seen(text string) bool {
	fp := Fingerprint(text)
	if fp == 0 {
		return false
	}
	for _, prev := range d.seen {
		if Similar(fp, prev, d.threshold) {
			return true
		}
	}
	d.seen = append(d.seen, fp)
	return false
}

// Len returns the number of distinct pages recorded.
func (d *Dedupe) Len() int {
	return len(d.seen)
}
