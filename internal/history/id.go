package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// idLayout is fixed width and zero padded. It matches the identifiers written
// by earlier releases, which used local time in the same layout.
const idLayout = "2006-01-02_15:04:05"

// ObservationID identifies one recorded observation: a UTC timestamp at
// second resolution plus a counter that disambiguates observations recorded
// within the same second. Seq 0 is rendered without a suffix.
type ObservationID struct {
	At  time.Time
	Seq int
}

// NewObservationID returns the identifier for an observation taken at t.
func NewObservationID(t time.Time) ObservationID {
	return ObservationID{At: t.UTC().Truncate(time.Second)}
}

// ParseObservationID parses the textual form produced by String. A leading
// "urn:" is accepted.
func ParseObservationID(s string) (ObservationID, error) {
	raw := strings.TrimPrefix(s, "urn:")
	stamp, seqText, hasSeq := strings.Cut(raw, ".")

	at, err := time.ParseInLocation(idLayout, stamp, time.UTC)
	if err != nil {
		return ObservationID{}, fmt.Errorf("history: parse observation id %q: %w", s, err)
	}
	id := ObservationID{At: at}
	if hasSeq {
		seq, err := strconv.Atoi(seqText)
		if err != nil || seq < 1 {
			return ObservationID{}, fmt.Errorf("history: parse observation id %q: bad sequence %q", s, seqText)
		}
		id.Seq = seq
	}
	return id, nil
}

// String renders the identifier, e.g. "2024-03-01_10:00:00" or
// "2024-03-01_10:00:00.2".
func (id ObservationID) String() string {
	s := id.At.UTC().Format(idLayout)
	if id.Seq > 0 {
		s += "." + strconv.Itoa(id.Seq)
	}
	return s
}

// Term returns the urn: reference used as the observation's subject.
func (id ObservationID) Term() triple.Term { return triple.URN(id.String()) }

// Compare orders identifiers by time, then by sequence. It returns -1, 0 or +1.
func (id ObservationID) Compare(o ObservationID) int {
	if c := id.At.Compare(o.At); c != 0 {
		return c
	}
	switch {
	case id.Seq < o.Seq:
		return -1
	case id.Seq > o.Seq:
		return 1
	}
	return 0
}

// Before reports whether id sorts before o.
func (id ObservationID) Before(o ObservationID) bool { return id.Compare(o) < 0 }
