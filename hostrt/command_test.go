package hostrt

import (
	"bytes"
	"context"
	"testing"
)

// helloCommand writes "hi\n" to stdout with fd_write and exits with code.
func helloCommand(code int32) []byte {
	m := &moduleBuilder{}
	m.importFunc("wasi_snapshot_preview1", "fd_write", i32s(4), i32s(1))
	m.importFunc("wasi_snapshot_preview1", "proc_exit", i32s(1), nil)
	// iovec{buf: 16, len: 3} at 0, text at 16, nwritten at 8.
	m.withData(0, []byte{16, 0, 0, 0, 3, 0, 0, 0})
	m.withData(16, []byte("hi\n"))
	body := []byte{
		opI32Const, 1, opI32Const, 0, opI32Const, 1, opI32Const, 8, opCall, 0, opDrop,
		opI32Const,
	}
	body = append(body, sleb(code)...)
	body = append(body, opCall, 1)
	m.export("_start", nil, nil, body...)
	return m.build()
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx)
	defer rt.Close(ctx)

	var live bytes.Buffer
	res, err := rt.RunCommand(ctx, "hello", helloCommand(3), CommandConfig{
		Args:   []string{"--flag"},
		Env:    map[string]string{"A": "1"},
		Stdout: &live,
	})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if string(res.Stdout) != "hi\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if live.String() != "hi\n" {
		t.Errorf("streamed stdout = %q", live.String())
	}
	if len(res.Stderr) != 0 {
		t.Errorf("stderr = %q", res.Stderr)
	}

	// The compiled module is cached; a second run starts from fresh state.
	res, err = rt.RunCommand(ctx, "hello", helloCommand(3), CommandConfig{})
	if err != nil || string(res.Stdout) != "hi\n" {
		t.Errorf("second run = %+v, %v", res, err)
	}
}

func TestRunCommand_ExitZero(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx)
	defer rt.Close(ctx)

	res, err := rt.RunCommand(ctx, "ok", helloCommand(0), CommandConfig{})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if res.ExitCode != 0 || string(res.Stdout) != "hi\n" {
		t.Errorf("result = %+v", res)
	}

	m := &moduleBuilder{}
	m.export("_start", nil, nil)
	res, err = rt.RunCommand(ctx, "noop", m.build(), CommandConfig{})
	if err != nil || res.ExitCode != 0 {
		t.Errorf("noop = %+v, %v", res, err)
	}
}

func TestRunCommand_Errors(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx)
	defer rt.Close(ctx)

	m := &moduleBuilder{}
	m.export("main", nil, nil)
	if _, err := rt.RunCommand(ctx, "lib", m.build(), CommandConfig{}); err == nil {
		t.Error("module without _start should fail")
	}

	trap := &moduleBuilder{}
	trap.export("_start", nil, nil, opUnreachable)
	if _, err := rt.RunCommand(ctx, "trap", trap.build(), CommandConfig{}); err == nil {
		t.Error("trapping command should fail")
	}
}
