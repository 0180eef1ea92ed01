package dom

import (
	"strconv"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MutationKind mirrors the record types of a DOM mutation observer.
type MutationKind string

const (
	ChildList  MutationKind = "childList"
	Attributes MutationKind = "attributes"
)

// ObservedAttributes is the attribute allow-list watched for changes.
var ObservedAttributes = []string{"class", "style", "checked", "selected", "value", "aria-hidden"}

// Mutation is one observed change. Target always refers to the newer
// snapshot.
type Mutation struct {
	Kind          MutationKind
	Target        *Element
	AttributeName string

	// Inserted holds text added to the target by a text edit.
	Inserted string
}

// Queue buffers mutations until the next scan boundary drains them.
type Queue struct {
	mu    sync.Mutex
	items []Mutation
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Push(muts ...Mutation) {
	if len(muts) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, muts...)
}

// Drain removes and returns everything queued so far.
func (q *Queue) Drain() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type nodeState struct {
	el    *Element
	attrs map[string]string
	text  string
}

type snapshot struct {
	order  []string
	states map[string]nodeState
}

// Observer turns successive snapshots into mutation records. The first
// snapshot only establishes the baseline.
type Observer struct {
	queue *Queue
	dmp   *diffmatchpatch.DiffMatchPatch

	mu   sync.Mutex
	prev *snapshot
}

func NewObserver(queue *Queue) *Observer {
	return &Observer{queue: queue, dmp: diffmatchpatch.New()}
}

// Queue returns the queue mutations are pushed to.
func (o *Observer) Queue() *Queue { return o.queue }

// Reset forgets the baseline; the next Observe records nothing.
func (o *Observer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prev = nil
}

// Observe diffs doc against the previous snapshot, enqueues the resulting
// mutations and returns them.
func (o *Observer) Observe(doc *Document) []Mutation {
	next := takeSnapshot(doc)

	o.mu.Lock()
	prev := o.prev
	o.prev = next
	o.mu.Unlock()

	if prev == nil {
		return nil
	}

	var muts []Mutation
	for _, key := range next.order {
		cur := next.states[key]
		old, ok := prev.states[key]
		if !ok {
			muts = append(muts, Mutation{Kind: ChildList, Target: cur.el})
			continue
		}
		for _, name := range ObservedAttributes {
			if cur.attrs[name] != old.attrs[name] {
				muts = append(muts, Mutation{Kind: Attributes, Target: cur.el, AttributeName: name})
			}
		}
		if inserted, changed := o.textChange(old.text, cur.text); changed {
			muts = append(muts, Mutation{Kind: ChildList, Target: cur.el, Inserted: inserted})
		}
	}

	o.queue.Push(muts...)
	return muts
}

// textChange reports whether the edit between two texts is more than
// whitespace, returning the inserted fragments.
func (o *Observer) textChange(before, after string) (string, bool) {
	if before == after {
		return "", false
	}
	var inserted strings.Builder
	changed := false
	for _, d := range o.dmp.DiffMain(before, after, false) {
		if d.Type == diffmatchpatch.DiffEqual || strings.TrimSpace(d.Text) == "" {
			continue
		}
		changed = true
		if d.Type == diffmatchpatch.DiffInsert {
			inserted.WriteString(d.Text)
		}
	}
	return strings.TrimSpace(inserted.String()), changed
}

func takeSnapshot(doc *Document) *snapshot {
	snap := &snapshot{states: map[string]nodeState{}}
	seen := map[string]int{}
	for _, el := range doc.Elements() {
		key := el.Tag() + "|" + el.CSSPath()
		seen[key]++
		if n := seen[key]; n > 1 {
			key += "|" + strconv.Itoa(n)
		}
		snap.order = append(snap.order, key)
		snap.states[key] = nodeState{el: el, attrs: observedAttrs(el), text: el.OwnText()}
	}
	return snap
}

func observedAttrs(el *Element) map[string]string {
	attrs := make(map[string]string, len(ObservedAttributes))
	for _, name := range ObservedAttributes {
		switch name {
		case "checked":
			attrs[name] = strconv.FormatBool(el.Checked())
		case "selected":
			attrs[name] = strconv.FormatBool(el.Selected())
		case "style":
			// computed visibility captured by the browser backend counts as style
			v, _ := el.Attr(name)
			vis, _ := el.Attr(AttrVisible)
			op, _ := el.Attr(AttrOpacity)
			attrs[name] = v + "|" + vis + "|" + op
		default:
			v, _ := el.Attr(name)
			attrs[name] = v
		}
	}
	return attrs
}
