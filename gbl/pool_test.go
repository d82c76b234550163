package gbl

import (
	"sync/atomic"
	"testing"
)

type taskIncrement struct {
	counter *int64
}

func (task *taskIncrement) Process() {
	atomic.AddInt64(task.counter, 1)
}

func TestPoolRunsEveryTask(t *testing.T) {
	var counter int64
	pool := NewPool(4)
	for q := 0; q < 100; q++ {
		pool.AddTask(&taskIncrement{counter: &counter})
	}
	pool.Close()
	pool.WaitAll()
	if counter != 100 {
		t.Fatalf("expected 100 processed tasks, got %d", counter)
	}
}

func TestTaskRankInteractionStripes(t *testing.T) {
	result := make([]InteractionRank, 7)
	stride := 2
	pool := NewPool(stride)
	for worker := 0; worker < stride; worker++ {
		pool.AddTask(&TaskRankInteraction{
			result: result,
			first:  worker,
			stride: stride,
			rank: func(calc *InteractionCalculator, slot int) InteractionRank {
				return InteractionRank{Feature1: slot, Feature2: slot + 1, Strength: float64(slot) * 0.5}
			},
		})
	}
	pool.Close()
	pool.WaitAll()

	for slot, rank := range result {
		if rank.Feature1 != slot || rank.Feature2 != slot+1 || rank.Strength != float64(slot)*0.5 {
			t.Fatalf("slot %d holds %+v", slot, rank)
		}
	}
}
