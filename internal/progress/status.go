package progress

import "fmt"

// Status is a topic's mastery state. The zero value is NotStarted.
type Status int

const (
	NotStarted Status = iota
	NeedsReview
	Completed
)

var statusNames = [...]string{
	NotStarted:  "non iniziato",
	NeedsReview: "da ripassare",
	Completed:   "completato",
}

var statusLabels = [...]string{
	NotStarted:  "⚪ Critico",
	NeedsReview: "🟠 Da ripassare",
	Completed:   "🟢 Completato",
}

// String returns the persisted form of s.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Label returns the display badge for s.
func (s Status) Label() string {
	if s < 0 || int(s) >= len(statusLabels) {
		return statusLabels[NotStarted]
	}
	return statusLabels[s]
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s >= NotStarted && s <= Completed
}

// ParseStatus parses the persisted form of a status.
func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if v == name {
			return Status(i), nil
		}
	}
	return NotStarted, fmt.Errorf("unknown status %q", v)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
