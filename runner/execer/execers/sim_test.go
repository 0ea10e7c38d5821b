package execers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stanplayground/jobrunner/runner/execer"
)

func TestSimExec(t *testing.T) {
	ex := NewSimExecer()
	assertRun(ex, t, complete(0), "complete 0")
	assertRun(ex, t, complete(1), "complete 1")
	assertRun(ex, t, complete(0), "sleep 1", "complete 0")
	assertRun(ex, t, complete(0), "#this is a comment", "complete 0")
	argv := []string{"pause", "complete 0"}
	p := assertStart(ex, t, argv...)
	ex.Resume()
	assertStatus(t, complete(0), p, argv...)
}

func TestOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	expectedStdout, expectedStderr := "foo\n", "bar\n"
	cmd := execer.Command{
		Argv:   []string{"stdout " + expectedStdout, "stderr " + expectedStderr, "complete 0"},
		Stdout: &stdout,
		Stderr: &stderr,
	}

	ex := NewSimExecer()
	p, err := ex.Exec(cmd)
	if err != nil {
		t.Fatal("Error running cmd", err)
	}
	st := p.Wait()
	if st != complete(0) {
		t.Fatalf("got status %v; expected %v", st, complete(0))
	}
	if stdout.String() != expectedStdout {
		t.Fatalf("got stdout %v; expected %v", stdout.String(), expectedStdout)
	}
	if stderr.String() != expectedStderr {
		t.Fatalf("got stderr %v; expected %v", stderr.String(), expectedStderr)
	}
}

func TestAbortPaused(t *testing.T) {
	ex := NewSimExecer()
	p := assertStart(ex, t, "pause", "complete 0")
	st := p.Abort()
	if st.State != execer.FAILED || st.Error != "Aborted" {
		t.Fatalf("unexpected abort status %+v", st)
	}
	if wst := p.Wait(); wst != st {
		t.Fatalf("Wait after Abort returned %+v, expected %+v", wst, st)
	}
}

func TestScriptedExecerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	ex := NewScriptedExecer("file out.txt hello", "complete 0")
	p, err := ex.Exec(execer.Command{Argv: []string{"bash", "run.sh"}, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, complete(0), p)

	b, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil || string(b) != "hello" {
		t.Fatalf("expected out.txt to contain hello, got %q (%v)", b, err)
	}
	if cmds := ex.Commands(); len(cmds) != 1 || cmds[0].Argv[0] != "bash" {
		t.Fatalf("unexpected recorded commands %+v", cmds)
	}
}

func TestParseErrors(t *testing.T) {
	ex := NewSimExecer()
	for _, arg := range []string{"complete x", "sleep y", "file onlyname", "explode"} {
		if _, err := ex.Exec(execer.Command{Argv: []string{arg}}); err == nil {
			t.Errorf("expected error parsing %q", arg)
		}
	}
}

func assertRun(ex execer.Execer, t *testing.T, expected execer.ProcessStatus, argv ...string) {
	p := assertStart(ex, t, argv...)
	assertStatus(t, expected, p, argv...)
}

func assertStart(ex execer.Execer, t *testing.T, argv ...string) execer.Process {
	cmd := execer.Command{}
	cmd.Argv = argv
	p, err := ex.Exec(cmd)
	if err != nil {
		t.Fatal("Error running cmd ", err)
	}
	return p
}

func assertStatus(t *testing.T, expected execer.ProcessStatus, p execer.Process, argv ...string) {
	st := p.Wait()
	if st != expected {
		t.Fatalf("Running %v, got %v, expected %v", argv, st, expected)
	}
}

func complete(exitCode int) execer.ProcessStatus {
	r := execer.ProcessStatus{}
	r.State = execer.COMPLETE
	r.ExitCode = exitCode
	return r
}
