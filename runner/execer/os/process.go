package os

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/stanplayground/jobrunner/runner/execer"
)

// Implements runner/execer.Process
type process struct {
	cmd          *exec.Cmd
	done         chan struct{}
	termGrace    time.Duration
	abortTimeout time.Duration

	mutex   sync.Mutex
	aborted bool
	result  execer.ProcessStatus
	execer.LogTags
}

// reap waits on the command exactly once and publishes its status.
// If the command finishes without error the status is COMPLETE with exit code 0.
// If it exits with a code, the status is COMPLETE with that code.
// Otherwise (killed, or no WaitStatus available) the status is FAILED.
func (p *process) reap() {
	err := p.cmd.Wait()
	pid := p.cmd.Process.Pid

	p.mutex.Lock()
	defer p.mutex.Unlock()
	defer close(p.done)

	var result execer.ProcessStatus
	switch {
	case p.aborted:
		result = execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: "Aborted"}
	case err == nil:
		result = execer.ProcessStatus{State: execer.COMPLETE, ExitCode: 0}
	default:
		result = statusFromError(err)
	}
	p.result = result
	log.WithFields(
		log.Fields{
			"pid":      pid,
			"state":    result.State,
			"exitCode": result.ExitCode,
			"jobID":    p.JobID,
			"tag":      p.Tag,
		}).Info("Finished waiting for process")
}

func statusFromError(err error) execer.ProcessStatus {
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return execer.ProcessStatus{
					State:    execer.FAILED,
					ExitCode: -1,
					Error:    fmt.Sprintf("Killed by signal %v", status.Signal()),
				}
			}
			return execer.ProcessStatus{State: execer.COMPLETE, ExitCode: status.ExitStatus()}
		}
		return execer.ProcessStatus{State: execer.FAILED, Error: "Could not find WaitStatus from exiterr.Sys()"}
	}
	return execer.ProcessStatus{State: execer.FAILED, Error: err.Error()}
}

func (p *process) Wait() execer.ProcessStatus {
	<-p.done
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.result
}

// Abort SIGTERMs the process group, escalates to SIGKILL if it is still
// running after termGrace, then waits up to abortTimeout for the process to
// be reaped. A process that already exited keeps its status.
func (p *process) Abort() execer.ProcessStatus {
	select {
	case <-p.done:
		return p.Wait()
	default:
	}

	p.mutex.Lock()
	p.aborted = true
	pid := p.cmd.Process.Pid
	p.mutex.Unlock()

	fields := log.Fields{"pid": pid, "jobID": p.JobID, "tag": p.Tag}
	log.WithFields(fields).Info("Aborting process via SIGTERM")
	if err := signalProcs(pid, unix.SIGTERM); err == nil {
		select {
		case <-p.done:
			return p.Wait()
		case <-time.After(p.termGrace):
		}
	}

	log.WithFields(fields).Info("Aborting process via SIGKILL")
	if err := signalProcs(pid, unix.SIGKILL); err != nil {
		// the group may be gone already; fall back to the leader alone
		if kerr := p.cmd.Process.Kill(); kerr != nil {
			log.WithFields(fields).Errorf("Couldn't kill process: %v", kerr)
		}
	}

	select {
	case <-p.done:
	case <-time.After(p.abortTimeout):
		log.WithFields(fields).Errorf("%v timeout exceeded waiting for aborted process", p.abortTimeout)
		return execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: "Aborted (not reaped)"}
	}
	return p.Wait()
}
