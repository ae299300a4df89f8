package roster

import "github.com/tcriess/lightspeed-roster/types"

// bucket is an insertion ordered participant -> note map
type bucket struct {
	order []string
	notes map[string]string
}

func newBucket() *bucket {
	return &bucket{
		order: make([]string, 0),
		notes: make(map[string]string),
	}
}

func (b *bucket) len() int {
	return len(b.order)
}

func (b *bucket) add(id, note string) {
	if _, ok := b.notes[id]; !ok {
		b.order = append(b.order, id)
	}
	b.notes[id] = note
}

// addFront inserts ahead of everybody else, used when demoting into a backup list.
func (b *bucket) addFront(id, note string) {
	if _, ok := b.notes[id]; ok {
		return
	}
	b.order = append([]string{id}, b.order...)
	b.notes[id] = note
}

func (b *bucket) remove(id string) (string, bool) {
	note, ok := b.notes[id]
	if !ok {
		return "", false
	}
	delete(b.notes, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return note, true
}

// popFront removes the earliest inserted entry.
func (b *bucket) popFront() (string, string, bool) {
	if len(b.order) == 0 {
		return "", "", false
	}
	id := b.order[0]
	note := b.notes[id]
	b.order = b.order[1:]
	delete(b.notes, id)
	return id, note, true
}

// popBack removes the latest inserted entry.
func (b *bucket) popBack() (string, string, bool) {
	if len(b.order) == 0 {
		return "", "", false
	}
	id := b.order[len(b.order)-1]
	note := b.notes[id]
	b.order = b.order[:len(b.order)-1]
	delete(b.notes, id)
	return id, note, true
}

func (b *bucket) snapshot() types.Bucket {
	res := make(types.Bucket, 0, len(b.order))
	for _, id := range b.order {
		res = append(res, types.BucketEntry{Participant: id, Note: b.notes[id]})
	}
	return res
}

func bucketFromSnapshot(entries types.Bucket) *bucket {
	b := newBucket()
	for _, entry := range entries {
		b.add(entry.Participant, entry.Note)
	}
	return b
}
