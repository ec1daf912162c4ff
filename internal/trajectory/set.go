package trajectory

// Set is the ordered collection of flights in a session, oldest first.
// It is not safe for concurrent use; the engine serializes access.
type Set struct {
	items []*Trajectory
}

func NewSet() *Set {
	return &Set{}
}

func (s *Set) Add(t *Trajectory) {
	s.items = append(s.items, t)
}

func (s *Set) Len() int { return len(s.items) }

func (s *Set) At(i int) *Trajectory { return s.items[i] }

// Get finds a trajectory by ID.
func (s *Set) Get(id uint16) (*Trajectory, bool) {
	for _, t := range s.items {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// ForEach visits every trajectory in creation order. Flights advance in
// this order each step.
func (s *Set) ForEach(fn func(*Trajectory)) {
	for _, t := range s.items {
		fn(t)
	}
}

// ForEachNewest visits trajectories newest first and stops when fn returns
// true. Probe searches walk the set this way.
func (s *Set) ForEachNewest(fn func(*Trajectory) bool) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if fn(s.items[i]) {
			return
		}
	}
}

// Airborne counts flights that have not reached ground.
func (s *Set) Airborne() int {
	n := 0
	for _, t := range s.items {
		if !t.State.ReachedGround {
			n++
		}
	}
	return n
}

// EraseAll discards every trajectory and returns how many were dropped.
// ID assignment is the engine's concern and keeps counting from where it
// was.
func (s *Set) EraseAll() int {
	n := len(s.items)
	s.items = nil
	return n
}
