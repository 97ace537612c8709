package stats

import (
	"github.com/tesseradb/tessera/internal/bloom"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

// MembershipID is the record id of the approximate-membership kind.
const MembershipID = "membership"

// membershipCapacity sizes the bloom filter per segment. Segments holding
// more keys degrade toward a higher false positive rate, never toward
// false negatives.
const (
	membershipCapacity = 100000
	membershipFPR      = 0.01
)

func init() {
	Register(MembershipID, func() Summary { return &Membership{} })
}

// Membership summarizes the exact key set of a segment with a bloom
// filter. It can only prune point intervals: a file is skippable for
// key K when the filter provably never saw K.
type Membership struct {
	filter *bloom.Filter
}

// NewMembership creates an empty membership summary.
func NewMembership() *Membership {
	return &Membership{}
}

// ID returns the record id.
func (s *Membership) ID() string { return MembershipID }

// Reset clears the summary for a new segment.
func (s *Membership) Reset(keySchema types.Schema) {
	s.filter = bloom.NewWithEstimates(membershipCapacity, membershipFPR)
}

// Observe adds the key's encoding to the filter.
func (s *Membership) Observe(key types.Key) {
	if s.filter == nil {
		s.filter = bloom.NewWithEstimates(membershipCapacity, membershipFPR)
	}
	s.filter.Add(key.AppendEncode(nil))
}

// MarshalPayload serializes the filter; an empty segment encodes to zero
// bytes.
func (s *Membership) MarshalPayload() []byte {
	if s.filter == nil || s.filter.Count() == 0 {
		return nil
	}
	return s.filter.Serialize()
}

// UnmarshalPayload is the inverse of MarshalPayload.
func (s *Membership) UnmarshalPayload(data []byte) error {
	if len(data) == 0 {
		s.filter = nil
		return nil
	}
	f, err := bloom.Deserialize(data)
	if err != nil {
		return errors.NewStatisticsError("corrupt membership filter", err)
	}
	s.filter = f
	return nil
}

// Prune skips a file only when every interval is an exact point absent
// from the filter. Range intervals and unpopulated summaries always read.
func (s *Membership) Prune(intervals []Interval) Decision {
	if s.filter == nil || s.filter.Count() == 0 || len(intervals) == 0 {
		return UseIndex
	}
	for _, iv := range intervals {
		if !s.skippable(iv) {
			return UseIndex
		}
	}
	return Skip
}

func (s *Membership) skippable(iv Interval) bool {
	if iv.Start == nil || iv.End == nil || !iv.StartInclusive || !iv.EndInclusive {
		return false
	}
	if iv.Start.Compare(iv.End) != 0 || len(iv.Start) != len(iv.End) {
		return false
	}
	return !s.filter.Contains(iv.Start.AppendEncode(nil))
}
