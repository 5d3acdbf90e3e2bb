package bids

import (
	"fmt"
	"sort"
)

// Resting-state tasks recorded in a MEG session
const (
	TaskEyesOpen   = "resteyesopen"
	TaskEyesClosed = "resteyesclosed"
)

// Tasks lists the valid task labels
var Tasks = []string{TaskEyesOpen, TaskEyesClosed}

// RunTask maps an acquisition run to its task and its run index within that task
type RunTask struct {
	Run     int    // acquisition run from the dataset name
	Task    string // BIDS task label
	TaskRun int    // 1-based run number within Task
}

// AssignTasks gives the lowest run eyes-open and every later run eyes-closed
func AssignTasks(runs []int) []RunTask {
	sorted := append([]int(nil), runs...)
	sort.Ints(sorted)

	out := make([]RunTask, len(sorted))
	for i, run := range sorted {
		task := TaskEyesClosed
		if i == 0 {
			task = TaskEyesOpen
		}
		out[i] = RunTask{Run: run, Task: task}
	}
	return NumberTaskRuns(out)
}

// NumberTaskRuns recomputes TaskRun after tasks were edited
func NumberTaskRuns(assigned []RunTask) []RunTask {
	counts := make(map[string]int)
	for i := range assigned {
		counts[assigned[i].Task]++
		assigned[i].TaskRun = counts[assigned[i].Task]
	}
	return assigned
}

// ValidateTask rejects labels other than the resting-state tasks
func ValidateTask(task string) error {
	for _, t := range Tasks {
		if t == task {
			return nil
		}
	}
	return fmt.Errorf("invalid task %q: must be %s or %s", task, TaskEyesOpen, TaskEyesClosed)
}

// BIDSBaseName returns sub-<pnum>_ses-<session>_task-<task>_run-<n>
func BIDSBaseName(pnum, session string, rt RunTask) string {
	return fmt.Sprintf("sub-%s_ses-%s_task-%s_run-%d", pnum, session, rt.Task, rt.TaskRun)
}
