package process

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// descendants returns the PIDs of every process below pid, deepest last.
// Errors from the process table are treated as "no children".
func descendants(pid int) []int32 {
	root, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []int32
	queue := []*gopsproc.Process{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := cur.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			out = append(out, c.Pid)
			queue = append(queue, c)
		}
	}
	return out
}

// Descendants exposes the current child tree of the running process.
func (p *Process) Descendants() []int32 {
	st := p.Snapshot()
	if !st.Running || st.PID == 0 {
		return nil
	}
	return descendants(st.PID)
}
