package arbor

// RecordID implementations satisfy the store layer's Record interface.

func (e Entity) RecordID() string       { return e.ID }
func (f FacetValue) RecordID() string   { return f.ID }
func (s Summary) RecordID() string      { return s.ID }
func (s Source) RecordID() string       { return s.ID }
func (n Notification) RecordID() string { return n.ID }

// RecordID for usage buckets combines day and model; usage has no server id.
func (u UsageStat) RecordID() string { return u.Day + "/" + u.Model }
