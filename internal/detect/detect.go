// Package detect partitions a scrape batch against the set of listing
// hashes a user has already seen.
package detect

import (
	"sort"

	"mkobal/avtowatch/internal/model"
)

// Partition is the result of diffing one batch against the seen set.
// New and Unchanged are disjoint and together hold every distinct batch
// entry in its original order. Vanished holds hashes that were seen before but
// are absent from the batch; they stay in the seen set, since sold and
// delisted cars must not re-trigger if the ad comes back.
type Partition struct {
	New       []model.Listing
	Unchanged []model.Listing
	Vanished  []string
}

// Diff splits batch by membership of each listing's hash in seen. A
// hash repeated within the batch counts once, at its first occurrence.
// Vanished comes back sorted so log lines stay stable.
func Diff(batch []model.Listing, seen map[string]struct{}) Partition {
	var p Partition

	inBatch := make(map[string]struct{}, len(batch))
	for _, l := range batch {
		if _, dup := inBatch[l.Hash]; dup {
			continue
		}
		inBatch[l.Hash] = struct{}{}
		if _, ok := seen[l.Hash]; ok {
			p.Unchanged = append(p.Unchanged, l)
		} else {
			p.New = append(p.New, l)
		}
	}

	for h := range seen {
		if _, ok := inBatch[h]; !ok {
			p.Vanished = append(p.Vanished, h)
		}
	}
	sort.Strings(p.Vanished)

	return p
}
