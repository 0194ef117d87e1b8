package skizo

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProfileEntry is one method's aggregated timing across a domain's
// lifetime (spec.md §6 `profile`): self time excludes time spent in
// callees, total time includes it.
type ProfileEntry struct {
	ClassName  string
	MethodName string
	Calls      int
	SelfTime   time.Duration
	TotalTime  time.Duration
}

func (e ProfileEntry) String() string {
	return fmt.Sprintf("%s::%s calls=%d self=%s total=%s",
		e.ClassName, e.MethodName, e.Calls, e.SelfTime, e.TotalTime)
}

// ProfileReport is the sortable, dumpable snapshot an embedder pulls
// after a run (spec.md §6 `profile`).
type ProfileReport struct {
	Entries []ProfileEntry
}

// Report snapshots the Interpreter's accumulated per-method timings into
// a ProfileReport, in no particular order — call SortBySelfTime or
// SortByTotalTime before Dump.
func (in *Interpreter) Report() *ProfileReport {
	r := &ProfileReport{Entries: make([]ProfileEntry, 0, len(in.profileData))}
	for _, e := range in.profileData {
		r.Entries = append(r.Entries, *e)
	}
	return r
}

// SortBySelfTime orders entries highest self time first, the default
// view for spotting a hot method (spec.md §6 `profile`).
func (r *ProfileReport) SortBySelfTime() {
	sort.Slice(r.Entries, func(i, j int) bool { return r.Entries[i].SelfTime > r.Entries[j].SelfTime })
}

// SortByTotalTime orders entries highest total (inclusive of callees)
// time first.
func (r *ProfileReport) SortByTotalTime() {
	sort.Slice(r.Entries, func(i, j int) bool { return r.Entries[i].TotalTime > r.Entries[j].TotalTime })
}

// Dump renders the report as the plain-text table the CLI front-end
// prints when its `-profile` flag is set.
func (r *ProfileReport) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-32s %-20s %8s %14s %14s\n", "Class", "Method", "Calls", "Self", "Total")
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%-32s %-20s %8d %14s %14s\n", e.ClassName, e.MethodName, e.Calls, e.SelfTime, e.TotalTime)
	}
	return b.String()
}
