package runner

import "math/rand"

// taskSelector picks tasks with probability proportional to their weight.
type taskSelector struct {
	tasks       []Task
	totalWeight int
	rnd         *rand.Rand
}

func newTaskSelector(tasks []Task, rnd *rand.Rand) *taskSelector {
	sel := &taskSelector{rnd: rnd}
	for _, task := range tasks {
		if task.Run == nil {
			continue
		}
		if task.Weight < 1 {
			task.Weight = 1
		}
		sel.tasks = append(sel.tasks, task)
		sel.totalWeight += task.Weight
	}
	return sel
}

func (s *taskSelector) empty() bool {
	return s == nil || len(s.tasks) == 0
}

func (s *taskSelector) pick() Task {
	n := s.rnd.Intn(s.totalWeight)
	cumulative := 0
	for _, task := range s.tasks {
		cumulative += task.Weight
		if n < cumulative {
			return task
		}
	}
	return s.tasks[len(s.tasks)-1]
}
