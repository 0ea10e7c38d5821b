// Package slots decides whether a job fits the machine's configured resource
// budget. The budget is a fixed list of slot templates; availability is
// recomputed from the active jobs on every decision, never stored.
package slots

import (
	"fmt"

	"github.com/pkg/errors"
)

// Defaults applied to requirements a job leaves unspecified.
const (
	DefaultNumCPUs    = 1
	DefaultRAMGB      = 1.0
	DefaultTimeoutSec = 10
)

// Slot is a resource quota template. Count jobs of at most this size may run
// at once.
type Slot struct {
	Count      int     `yaml:"count" json:"count"`
	NumCPUs    int     `yaml:"numCpus" json:"numCpus"`
	RAMGB      float64 `yaml:"ramGb" json:"ramGb"`
	TimeoutSec int     `yaml:"timeoutSec" json:"timeoutSec"`
}

// Requirements are the resources a job declares it needs.
type Requirements struct {
	NumCPUs    int     `json:"numCpus,omitempty"`
	RAMGB      float64 `json:"ramGb,omitempty"`
	TimeoutSec int     `json:"timeoutSec,omitempty"`
}

// WithDefaults fills unset (non-positive) fields with the conservative minimums.
func (r Requirements) WithDefaults() Requirements {
	if r.NumCPUs <= 0 {
		r.NumCPUs = DefaultNumCPUs
	}
	if r.RAMGB <= 0 {
		r.RAMGB = DefaultRAMGB
	}
	if r.TimeoutSec <= 0 {
		r.TimeoutSec = DefaultTimeoutSec
	}
	return r
}

// Grant is the concrete slot size a job was admitted with.
type Grant struct {
	NumCPUs    int
	RAMGB      float64
	TimeoutSec int
}

func (s Slot) fits(r Requirements) bool {
	r = r.WithDefaults()
	return s.NumCPUs >= r.NumCPUs && s.RAMGB >= r.RAMGB && s.TimeoutSec >= r.TimeoutSec
}

func (s Slot) grant() Grant {
	return Grant{NumCPUs: s.NumCPUs, RAMGB: s.RAMGB, TimeoutSec: s.TimeoutSec}
}

func (s Slot) String() string {
	return fmt.Sprintf("%dx[cpus=%d ram=%gGB timeout=%ds]", s.Count, s.NumCPUs, s.RAMGB, s.TimeoutSec)
}

// ValidateSlots rejects templates with non-positive sizes or negative counts.
func ValidateSlots(slots []Slot) error {
	if len(slots) == 0 {
		return errors.New("no job slots configured")
	}
	for i, s := range slots {
		if s.Count < 0 {
			return errors.Errorf("job slot %d: count %d < 0", i, s.Count)
		}
		if s.NumCPUs <= 0 || s.RAMGB <= 0 || s.TimeoutSec <= 0 {
			return errors.Errorf("job slot %d: numCpus, ramGb and timeoutSec must be > 0, got %v", i, s)
		}
	}
	return nil
}

// Capacity returns how many more jobs each template can take, attributing
// every active job to the first template in order that still has room and
// that it fits. Jobs that fit nowhere are not counted.
func Capacity(slots []Slot, active []Requirements) []int {
	remaining := make([]int, len(slots))
	for i, s := range slots {
		remaining[i] = s.Count
	}
	for _, r := range active {
		if i := firstFit(slots, remaining, r); i >= 0 {
			remaining[i]--
		}
	}
	return remaining
}

// PickSlot returns the first template, in configured order, that still has
// room after accounting for active and that candidate fits. The second return
// value is false when no template fits; the caller may retry later.
func PickSlot(slots []Slot, active []Requirements, candidate Requirements) (Grant, bool) {
	remaining := Capacity(slots, active)
	if i := firstFit(slots, remaining, candidate); i >= 0 {
		return slots[i].grant(), true
	}
	return Grant{}, false
}

func firstFit(slots []Slot, remaining []int, r Requirements) int {
	for i, s := range slots {
		if remaining[i] > 0 && s.fits(r) {
			return i
		}
	}
	return -1
}
