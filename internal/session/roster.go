/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

// roster keeps players in join order. order decides host succession, so it
// is kept as an explicit slice next to the lookup map.
type roster struct {
	order []string
	byID  map[string]*Player
}

func newRoster() roster {
	return roster{byID: make(map[string]*Player)}
}

func (r *roster) add(p Player) {
	if _, ok := r.byID[p.ID]; ok {
		return
	}
	r.order = append(r.order, p.ID)
	r.byID[p.ID] = &p
}

func (r *roster) remove(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)

	dst := r.order[:0]
	for _, pid := range r.order {
		if pid != id {
			dst = append(dst, pid)
		}
	}
	r.order = dst

	return true
}

func (r *roster) get(id string) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *roster) len() int {
	return len(r.order)
}

// first returns the earliest-joined remaining player, or "" if empty.
func (r *roster) first() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

func (r *roster) hasName(name string) bool {
	for _, p := range r.byID {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (r *roster) allReady() bool {
	for _, p := range r.byID {
		if !p.Ready {
			return false
		}
	}
	return true
}

// ids returns a copy of the join order.
func (r *roster) ids() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// list returns copies of every player in join order.
func (r *roster) list() []Player {
	out := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}
