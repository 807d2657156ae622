package jobs

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"

	"psh/internal/logger"
)

type Status int

const (
	Running Status = iota
	Stopped
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Job is a process group the shell tracks after it left the foreground.
type Job struct {
	ID     int
	Pgid   int
	Label  string
	Status Status

	// Last is the pid whose exit status is the job's status. Zero means any
	// member of the group.
	Last int
	// Exit is the mapped status of Last once it has been reaped.
	Exit int
}

// Controller moves the terminal between process groups while a job runs in
// the foreground.
type Controller interface {
	// Handoff gives the terminal to pgid and returns a func that takes it back.
	Handoff(pgid int) (restore func())
	// IgnoreInterrupt ignores SIGINT in the shell until restore is called.
	IgnoreInterrupt() (restore func())
}

type Manager struct {
	Jobs      *list.List
	IdLastJob int
	jobsMutex sync.Mutex

	term Controller
}

// NewManager returns an empty registry. term may be nil for a shell without
// a controlling terminal.
func NewManager(term Controller) *Manager {
	return &Manager{Jobs: list.New(), term: term}
}

// Create registers a running job for pgid. pids are the group members in
// pipeline order; the last one decides the job's exit status.
func (jm *Manager) Create(pgid int, label string, pids ...int) *Job {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	jm.IdLastJob++
	job := &Job{ID: jm.IdLastJob, Pgid: pgid, Label: label, Status: Running}
	if len(pids) > 0 {
		job.Last = pids[len(pids)-1]
	}

	jm.Jobs.PushFront(job)
	logger.Debugf("job %d: created for pgid %d (%s)", job.ID, pgid, label)
	return job
}

func (jm *Manager) SetStatus(job *Job, status Status) {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	job.Status = status
}

func (jm *Manager) Find(id int) *Job {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	for e := jm.Jobs.Front(); e != nil; e = e.Next() {
		if job := e.Value.(*Job); job.ID == id {
			return job
		}
	}
	return nil
}

// Current is the most recently created job that has not finished.
func (jm *Manager) Current() *Job {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	cur, _ := jm.currentAndPrevious()
	return cur
}

func (jm *Manager) currentAndPrevious() (cur, prev *Job) {
	for e := jm.Jobs.Front(); e != nil; e = e.Next() {
		job := e.Value.(*Job)
		if job.Status == Done {
			continue
		}
		if cur == nil {
			cur = job
		} else {
			return cur, job
		}
	}
	return cur, nil
}

// mark is the bash-style marker after the job id: '+' for the current job,
// '-' for the previous one.
func (jm *Manager) mark(job *Job) string {
	cur, prev := jm.currentAndPrevious()
	switch job {
	case cur:
		return "+"
	case prev:
		return "-"
	}
	return " "
}

func (jm *Manager) write(w io.Writer, job *Job) {
	fmt.Fprintf(w, "[%d]%s    %s    %s\n", job.ID, jm.mark(job), job.Status, job.Label)
}

// List writes every job, oldest first.
func (jm *Manager) List(w io.Writer) {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	for e := jm.Jobs.Back(); e != nil; e = e.Prev() {
		jm.write(w, e.Value.(*Job))
	}
}

// All returns the tracked jobs, oldest first.
func (jm *Manager) All() []*Job {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	var all []*Job
	for e := jm.Jobs.Back(); e != nil; e = e.Prev() {
		all = append(all, e.Value.(*Job))
	}
	return all
}

// Write prints a single job line.
func (jm *Manager) Write(w io.Writer, job *Job) {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	jm.write(w, job)
}

// Suspend registers a group that was stopped while in the foreground and
// prints its notice.
func (jm *Manager) Suspend(w io.Writer, pgid int, label string, pids ...int) *Job {
	job := jm.Create(pgid, label, pids...)
	jm.SetStatus(job, Stopped)
	jm.Write(w, job)
	return job
}

var ErrTerminated = errors.New("job has terminated")

// Foreground continues job if it is stopped, gives it the terminal and waits
// until it exits or stops again. The result is mapped like a command status.
func (jm *Manager) Foreground(job *Job) (int, error) {
	jm.jobsMutex.Lock()
	if job.Status == Done {
		jm.jobsMutex.Unlock()
		return -1, ErrTerminated
	}
	wasStopped := job.Status == Stopped
	job.Status = Running
	jm.jobsMutex.Unlock()

	if jm.term != nil {
		defer jm.term.IgnoreInterrupt()()
		defer jm.term.Handoff(job.Pgid)()
	}

	if wasStopped {
		if err := syscall.Kill(-job.Pgid, syscall.SIGCONT); err != nil && !errors.Is(err, syscall.ESRCH) {
			return -1, fmt.Errorf("continue job %d: %w", job.ID, err)
		}
	}

	return jm.wait(job), nil
}

// wait blocks until every member of the job's group has exited, or one of
// them stops.
func (jm *Manager) wait(job *Job) int {
	var ws syscall.WaitStatus

	for {
		pid, err := syscall.Wait4(-job.Pgid, &ws, syscall.WUNTRACED, nil)

		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.ECHILD):
			jm.SetStatus(job, Done)
			return job.Exit
		case err != nil:
			logger.Errorf("job %d: wait4: %v", job.ID, err)
			jm.SetStatus(job, Done)
			return -1
		case ws.Stopped():
			jm.SetStatus(job, Stopped)
			return ExitStatus(ws)
		}

		if job.Last == 0 || pid == job.Last {
			job.Exit = ExitStatus(ws)
		}
	}
}

// Background continues a stopped job without waiting for it.
func (jm *Manager) Background(job *Job, w io.Writer) error {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	switch job.Status {
	case Done:
		return ErrTerminated
	case Running:
		return fmt.Errorf("job %d already in background", job.ID)
	}

	if err := syscall.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
		return fmt.Errorf("continue job %d: %w", job.ID, err)
	}
	job.Status = Running

	fmt.Fprintf(w, "[%d]%s    %s &\n", job.ID, jm.mark(job), job.Label)
	return nil
}

// Reap collects status changes of every tracked group without blocking and
// returns the jobs that finished during this call.
func (jm *Manager) Reap() []*Job {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	var finished []*Job
	for e := jm.Jobs.Front(); e != nil; e = e.Next() {
		job := e.Value.(*Job)
		if job.Status != Done && jm.reap(job) {
			finished = append(finished, job)
		}
	}
	return finished
}

func (jm *Manager) reap(job *Job) bool {
	var ws syscall.WaitStatus

	for {
		pid, err := syscall.Wait4(-job.Pgid, &ws, syscall.WNOHANG|syscall.WUNTRACED|syscall.WCONTINUED, nil)

		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.ECHILD):
			job.Status = Done
			logger.Debugf("job %d: done with status %d", job.ID, job.Exit)
			return true
		case err != nil:
			logger.Warnf("job %d: wait4: %v", job.ID, err)
			return false
		case pid == 0:
			return false
		case ws.Stopped():
			job.Status = Stopped
		case ws.Continued():
			job.Status = Running
		default:
			if job.Last == 0 || pid == job.Last {
				job.Exit = ExitStatus(ws)
			}
		}
	}
}

// NotifyDone prints a line for each finished job and forgets it.
func (jm *Manager) NotifyDone(w io.Writer) {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	for e := jm.Jobs.Back(); e != nil; {
		prev := e.Prev()
		if job := e.Value.(*Job); job.Status == Done {
			jm.write(w, job)
			jm.Jobs.Remove(e)
		}
		e = prev
	}
}

// Remove forgets job.
func (jm *Manager) Remove(job *Job) {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	for e := jm.Jobs.Front(); e != nil; e = e.Next() {
		if e.Value.(*Job) == job {
			jm.Jobs.Remove(e)
			return
		}
	}
}

// Cleanup forgets finished jobs without printing them.
func (jm *Manager) Cleanup() {
	jm.jobsMutex.Lock()
	defer jm.jobsMutex.Unlock()

	for e := jm.Jobs.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*Job).Status == Done {
			jm.Jobs.Remove(e)
		}
		e = next
	}
}

// ExitStatus maps a wait status to a shell status: the exit code, or 128
// plus the signal for a signaled or stopped process.
func ExitStatus(ws syscall.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	case ws.Stopped():
		return 128 + int(ws.StopSignal())
	}
	return -1
}
