package lookup

import "sync"

// Learner collects aliases accepted at runtime by map actions configured
// with AddIfNotFound. Configured tables stay read-only; learned aliases live
// in a separate overlay owned by a single goroutine. All access goes through
// its request channel, so concurrent row workers never touch shared maps.
type Learner struct {
	reqs      chan learnReq
	done      chan struct{}
	closeOnce sync.Once
}

type learnOp int

const (
	opLearn learnOp = iota
	opResolve
	opSnapshot
)

type learnReq struct {
	op    learnOp
	table string
	alias string
	reply chan learnReply
}

type learnReply struct {
	canonical string
	found     bool
	snapshot  Tables
}

// NewLearner starts the learner goroutine. Call Close to stop it.
func NewLearner() *Learner {
	l := &Learner{
		reqs: make(chan learnReq),
		done: make(chan struct{}),
	}
	go l.loop()
	return l
}

func (l *Learner) loop() {
	added := make(Tables)
	for {
		select {
		case <-l.done:
			return
		case r := <-l.reqs:
			var rep learnReply
			switch r.op {
			case opLearn:
				t, ok := added[r.table]
				if !ok {
					t = NewTable()
					added[r.table] = t
				}
				if c, ok := t.Resolve(r.alias); ok {
					rep.canonical = c
				} else {
					t.Add(r.alias, r.alias)
					rep.canonical = r.alias
				}
				rep.found = true
			case opResolve:
				rep.canonical, rep.found = added.Resolve(r.table, r.alias)
			case opSnapshot:
				rep.snapshot = Merge(added, nil)
			}
			r.reply <- rep
		}
	}
}

func (l *Learner) call(r learnReq) (learnReply, bool) {
	r.reply = make(chan learnReply, 1)
	select {
	case l.reqs <- r:
	case <-l.done:
		return learnReply{}, false
	}
	return <-r.reply, true
}

// Learn records alias as its own canonical in table, unless it was learned
// before, and returns the canonical to use. A closed learner returns alias
// unchanged without recording it.
func (l *Learner) Learn(table, alias string) string {
	rep, ok := l.call(learnReq{op: opLearn, table: table, alias: alias})
	if !ok {
		return alias
	}
	return rep.canonical
}

// Resolve looks alias up among learned entries only.
func (l *Learner) Resolve(table, alias string) (string, bool) {
	rep, ok := l.call(learnReq{op: opResolve, table: table, alias: alias})
	if !ok {
		return "", false
	}
	return rep.canonical, rep.found
}

// Snapshot returns a copy of everything learned so far, keyed by table.
func (l *Learner) Snapshot() Tables {
	rep, ok := l.call(learnReq{op: opSnapshot})
	if !ok {
		return Tables{}
	}
	return rep.snapshot
}

// Close stops the learner goroutine. It is safe to call more than once.
func (l *Learner) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}
