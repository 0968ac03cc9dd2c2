package frames

import "sort"

// DayGroup is the set of frames sharing one calendar date, the unit of rendering.
type DayGroup struct {
	Date   string
	Frames []Frame
}

// Paths returns the group's frame paths in capture order.
func (g DayGroup) Paths() []string {
	paths := make([]string, len(g.Frames))
	for i, f := range g.Frames {
		paths[i] = f.Path
	}
	return paths
}

// GroupByDate partitions frames by date. Groups are returned in date order and
// frames within a group keep the lexicographic order of their names.
func GroupByDate(frames []Frame) []DayGroup {
	index := make(map[string]int)
	var groups []DayGroup
	for _, f := range frames {
		date, ok := DateOf(f.Name)
		if !ok {
			continue
		}
		i, seen := index[date]
		if !seen {
			i = len(groups)
			index[date] = i
			groups = append(groups, DayGroup{Date: date})
		}
		groups[i].Frames = append(groups[i].Frames, f)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date < groups[j].Date })
	for i := range groups {
		sort.Slice(groups[i].Frames, func(a, b int) bool {
			return groups[i].Frames[a].Name < groups[i].Frames[b].Name
		})
	}
	return groups
}

// ClosedGroups returns the groups strictly earlier than today. Today's group is
// open and is never returned; empty groups are skipped.
func ClosedGroups(frames []Frame, today string) []DayGroup {
	all := GroupByDate(frames)
	closed := all[:0]
	for _, g := range all {
		if len(g.Frames) == 0 || g.Date >= today {
			continue
		}
		closed = append(closed, g)
	}
	return closed
}
