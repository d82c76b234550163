package gbl

import "sync"

//Task is a unit of work executed by the pool.
type Task interface {
	Process()
}

//Pool runs tasks on a fixed number of worker goroutines.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts threadsNum workers that consume tasks as they are added.
func NewPool(threadsNum int) *Pool {
	pool := &Pool{tasks: make(chan Task)}
	for i := 0; i < threadsNum; i++ {
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Process()
			}
		}()
	}
	return pool
}

//AddTask submits one task. It blocks until a worker is free to pick it up.
func (pool *Pool) AddTask(task Task) {
	pool.tasks <- task
}

//Close signals that no more tasks will be added.
func (pool *Pool) Close() {
	close(pool.tasks)
}

//WaitAll blocks until every submitted task has finished.
func (pool *Pool) WaitAll() {
	pool.wg.Wait()
}

//TaskRankInteraction evaluates a stripe of feature pairs with one calculator
//and stores each result at its slot of the shared result slice. One calculator
//per stripe keeps its log message budget binding across the whole ranking.
type TaskRankInteraction struct {
	result []InteractionRank
	calc   *InteractionCalculator
	first  int
	stride int
	rank   func(calc *InteractionCalculator, slot int) InteractionRank
}

func (task *TaskRankInteraction) Process() {
	for slot := task.first; slot < len(task.result); slot += task.stride {
		task.result[slot] = task.rank(task.calc, slot)
	}
}
