package os

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/stanplayground/jobrunner/runner/execer"
)

// How long Wait keeps draining stdout/stderr after the process itself exited.
// A backgrounded grandchild holding the pipes open would otherwise hang Wait.
const DefaultWaitDelay = 5 * time.Second

// How long Abort gives the process group to exit after SIGTERM before
// escalating to SIGKILL. docker run forwards the SIGTERM to its container.
const DefaultTermGrace = 5 * time.Second

// How long Abort waits for the killed process to be reaped.
const DefaultAbortTimeout = 10 * time.Second

// Implements runner/execer.Execer
type osExecer struct {
	waitDelay    time.Duration
	termGrace    time.Duration
	abortTimeout time.Duration
}

func NewExecer() *osExecer {
	return &osExecer{waitDelay: DefaultWaitDelay, termGrace: DefaultTermGrace, abortTimeout: DefaultAbortTimeout}
}

// Exec starts command in its own process group and returns a handle to it.
func (e *osExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, fmt.Errorf("No command specified.")
	}

	cmd := exec.Command(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir

	// Use the parent environment plus whatever additional env vars are provided.
	cmd.Env = os.Environ()
	for k, v := range command.EnvVars {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	// Sets pgid of all child processes to cmd's pid
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = command.Stdout
	cmd.Stderr = command.Stderr
	cmd.WaitDelay = e.waitDelay

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	log.WithFields(
		log.Fields{
			"pid":   cmd.Process.Pid,
			"argv":  command.Argv,
			"dir":   command.Dir,
			"jobID": command.JobID,
			"tag":   command.Tag,
		}).Info("Started process")

	p := &process{
		cmd:          cmd,
		done:         make(chan struct{}),
		termGrace:    e.termGrace,
		abortTimeout: e.abortTimeout,
		LogTags:      command.LogTags,
	}
	go p.reap()
	return p, nil
}

// Signal process along with all child processes, assuming no child processes called setpgid
func signalProcs(pgid int, sig unix.Signal) (err error) {
	log.WithFields(
		log.Fields{
			"pgid":   pgid,
			"signal": sig,
		}).Info("Signaling pgid")
	if err = unix.Kill(-pgid, sig); err != nil && err != unix.ESRCH {
		log.WithFields(
			log.Fields{
				"pgid":  pgid,
				"error": err,
			}).Error("Error signaling pgid")
		return err
	}
	return nil
}
