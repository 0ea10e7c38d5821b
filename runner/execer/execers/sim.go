package execers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stanplayground/jobrunner/runner/execer"
)

func NewSimExecer() *SimExecer {
	return &SimExecer{resumeCh: make(chan struct{})}
}

// SimExecer execs by simulating running argv.
// Each arg in command.argv is simulated in order. Valid args are:
//
//	complete <exitcode int>  complete with exitcode
//	pause                    pause until Resume() is called or the process is aborted
//	sleep <millis int>       sleep for millis milliseconds
//	stdout <message>         write <message> to stdout
//	stderr <message>         write <message> to stderr
//	file <name> <content>    write <content> to <name> inside command.Dir
type SimExecer struct {
	resumeCh chan struct{}
}

func (e *SimExecer) Exec(command execer.Command) (execer.Process, error) {
	return e.exec(command, command.Argv)
}

func (e *SimExecer) exec(command execer.Command, argv []string) (execer.Process, error) {
	steps, err := e.parse(argv)
	if err != nil {
		return nil, err
	}
	r := &simProcess{stdout: command.Stdout, stderr: command.Stderr, dir: command.Dir}
	if r.stdout == nil {
		r.stdout = io.Discard
	}
	if r.stderr == nil {
		r.stderr = io.Discard
	}
	r.done = sync.NewCond(&r.mu)
	r.status.State = execer.RUNNING
	go r.run(steps)
	return r, nil
}

func (e *SimExecer) Resume() {
	e.resumeCh <- struct{}{}
}

// parse parses an argv into sim steps
func (e *SimExecer) parse(argv []string) (steps []simStep, err error) {
	for _, arg := range argv {
		s, err := e.parseArg(arg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (e *SimExecer) parseArg(arg string) (simStep, error) {
	if strings.HasPrefix(arg, "#") {
		return &noopStep{}, nil
	}
	splits := strings.SplitN(arg, " ", 2)
	opcode, rest := splits[0], ""
	if len(splits) == 2 {
		rest = splits[1]
	}
	switch opcode {
	case "complete":
		i, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("error parsing <n> in complete <n>:%s", err.Error())
		}
		return &completeStep{i}, nil
	case "pause":
		return &pauseStep{e.resumeCh}, nil
	case "sleep":
		i, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("error parsing <n> in sleep <n>:%s", err.Error())
		}
		return &sleepStep{time.Duration(i) * time.Millisecond}, nil
	case "stdout":
		return &stdoutStep{rest}, nil
	case "stderr":
		return &stderrStep{rest}, nil
	case "file":
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected file <name> <content>, got: %v", arg)
		}
		return &fileStep{parts[0], parts[1]}, nil
	}
	return nil, fmt.Errorf("can't simulate arg: %v", arg)
}

// ScriptedExecer ignores the argv it is given and simulates Steps instead,
// recording every Command it was asked to run.
type ScriptedExecer struct {
	*SimExecer
	Steps []string

	mu       sync.Mutex
	commands []execer.Command
}

func NewScriptedExecer(steps ...string) *ScriptedExecer {
	return &ScriptedExecer{SimExecer: NewSimExecer(), Steps: steps}
}

func (e *ScriptedExecer) Exec(command execer.Command) (execer.Process, error) {
	e.mu.Lock()
	e.commands = append(e.commands, command)
	e.mu.Unlock()
	return e.exec(command, e.Steps)
}

// Commands returns every Command passed to Exec so far.
func (e *ScriptedExecer) Commands() []execer.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]execer.Command(nil), e.commands...)
}

type simProcess struct {
	status execer.ProcessStatus
	done   *sync.Cond
	mu     sync.Mutex

	stdout io.Writer
	stderr io.Writer
	dir    string
}

func (p *simProcess) Wait() execer.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.status.State.IsDone() {
		p.done.Wait()
	}
	return p.status
}

func (p *simProcess) Abort() execer.ProcessStatus {
	p.setStatus(execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: "Aborted"})
	return p.getStatus()
}

func (p *simProcess) setStatus(status execer.ProcessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State.IsDone() {
		return
	}
	p.status = status
	if p.status.State.IsDone() {
		p.done.Broadcast()
	}
}

func (p *simProcess) getStatus() execer.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *simProcess) run(steps []simStep) {
	for _, step := range steps {
		status := p.getStatus()
		if status.State.IsDone() {
			break
		}
		p.setStatus(step.run(status, p))
	}
}

type simStep interface {
	run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus
}

type completeStep struct {
	exitCode int
}

func (s *completeStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	status.ExitCode = s.exitCode
	status.State = execer.COMPLETE
	return status
}

type pauseStep struct {
	ch chan struct{}
}

func (s *pauseStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	abortCh := make(chan struct{})
	go func() {
		// Waits until this process is stopped (by being aborted)
		p.Wait()
		close(abortCh)
	}()
	select {
	case <-abortCh:
	case <-s.ch:
	}
	return status
}

type sleepStep struct {
	duration time.Duration
}

func (s *sleepStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	time.Sleep(s.duration)
	return status
}

type stdoutStep struct {
	output string
}

func (s *stdoutStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	p.stdout.Write([]byte(s.output))
	return status
}

type stderrStep struct {
	output string
}

func (s *stderrStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	p.stderr.Write([]byte(s.output))
	return status
}

type fileStep struct {
	name, content string
}

func (s *fileStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	if err := os.WriteFile(filepath.Join(p.dir, s.name), []byte(s.content), 0644); err != nil {
		status.State = execer.FAILED
		status.Error = err.Error()
	}
	return status
}

type noopStep struct{}

func (s *noopStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	return status
}
