package scene

import (
	"fmt"

	"github.com/google/uuid"
)

// IDMap hands out node ids for one compile pass and keeps the uuid to
// sequence mapping in both directions
type IDMap struct {
	uuid2Seq map[uuid.UUID]uint64
	seq2UUID map[uint64]uuid.UUID
	Max      uint64
}

func NewIDMap() *IDMap {
	return &IDMap{
		uuid2Seq: make(map[uuid.UUID]uint64),
		seq2UUID: make(map[uint64]uuid.UUID),
	}
}

func (m *IDMap) Entries() int {
	return len(m.seq2UUID)
}

// Add registers u under seq and refuses either one being taken already
func (m *IDMap) Add(u uuid.UUID, seq uint64) error {
	if _, ok := m.uuid2Seq[u]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, u)
	}
	if _, ok := m.seq2UUID[seq]; ok {
		return fmt.Errorf("%w: sequence %d", ErrDuplicateID, seq)
	}
	m.seq2UUID[seq] = u
	m.uuid2Seq[u] = seq
	if seq > m.Max {
		m.Max = seq
	}
	return nil
}

// Next registers a fresh random id after the highest sequence number
func (m *IDMap) Next() (uuid.UUID, uint64) {
	seq := m.Max + 1
	for {
		u := uuid.New()
		if err := m.Add(u, seq); err == nil {
			return u, seq
		}
	}
}

func (m *IDMap) Seq(u uuid.UUID) (uint64, bool) {
	seq, ok := m.uuid2Seq[u]
	return seq, ok
}

func (m *IDMap) UUID(seq uint64) (uuid.UUID, bool) {
	u, ok := m.seq2UUID[seq]
	return u, ok
}
