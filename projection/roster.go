package projection

// Roster mirrors the server's online set. Each online-users event replaces
// the whole set; nothing is diffed or accumulated locally.
type Roster struct {
	online map[string]struct{}

	onChange func([]string)
}

func NewRoster() *Roster {
	return &Roster{online: make(map[string]struct{})}
}

// OnChange registers the callback fired after every rebuild, with the ids
// as broadcast by the server.
func (r *Roster) OnChange(fn func([]string)) {
	r.onChange = fn
}

// Rebuild replaces the online set wholesale.
func (r *Roster) Rebuild(ids []string) {
	r.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r.online[id] = struct{}{}
	}
	if r.onChange != nil {
		r.onChange(ids)
	}
}

func (r *Roster) IsOnline(userID string) bool {
	_, ok := r.online[userID]
	return ok
}
