package thread

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"ready to running", Ready, Running, false},
		{"running to blocked", Running, Blocked, false},
		{"running to ready (yield)", Running, Ready, false},
		{"running to dying (exit)", Running, Dying, false},
		{"blocked to ready (unblock)", Blocked, Ready, false},
		{"ready to blocked is invalid", Ready, Blocked, true},
		{"dying to anything is invalid", Dying, Ready, true},
		{"blocked to running without ready is invalid", Blocked, Running, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			th := New(1, "probe", PriorityDefault)
			th.state = tc.from
			err := th.SetState(tc.to)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.to, th.State())
		})
	}
}

func TestEffectivePriorityPrefersDonation(t *testing.T) {
	low := New(1, "low", 10)
	high := New(2, "high", 40)

	require.Equal(t, 10, low.EffectivePriority())

	low.AddDonor(high)
	require.Equal(t, 40, low.EffectivePriority())

	low.RemoveDonor(high)
	require.Equal(t, 10, low.EffectivePriority())
}

func TestDonationIsMaxOverMultipleDonors(t *testing.T) {
	holder := New(1, "holder", 10)
	mid := New(2, "mid", 20)
	top := New(3, "top", 30)

	holder.AddDonor(mid)
	holder.AddDonor(top)
	require.Equal(t, 30, holder.EffectivePriority())

	holder.RemoveDonor(top)
	require.Equal(t, 20, holder.EffectivePriority())
}

func TestPriorityClampedToRange(t *testing.T) {
	th := New(1, "clamped", PriorityMax+10)
	require.Equal(t, PriorityMax, th.BasePriority())

	th.SetBasePriority(PriorityMin - 5)
	require.Equal(t, PriorityMin, th.BasePriority())
}

func TestQueueIsFIFOAmongEqualPriority(t *testing.T) {
	q := NewQueue()
	a := New(1, "a", 10)
	b := New(2, "b", 10)
	c := New(3, "c", 10)

	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	require.Equal(t, a, q.PopFront())
	require.Equal(t, b, q.PopFront())
	require.Equal(t, c, q.PopFront())
	require.Nil(t, q.PopFront())
}

func TestQueueRemoveFromMiddle(t *testing.T) {
	q := NewQueue()
	a := New(1, "a", 10)
	b := New(2, "b", 10)
	c := New(3, "c", 10)
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	q.Remove(b)
	require.Equal(t, 2, q.Len())
	require.Equal(t, a, q.PopFront())
	require.Equal(t, c, q.PopFront())
}

func TestRegistryAllocatesIncreasingIDs(t *testing.T) {
	r := NewRegistry()
	a := r.Allocate("a", PriorityDefault)
	b := r.Allocate("b", PriorityDefault)
	require.Less(t, a.ID(), b.ID())
	require.Equal(t, 2, r.Count())

	r.Remove(a.ID())
	require.Nil(t, r.Lookup(a.ID()))
	require.Equal(t, 1, r.Count())
}
