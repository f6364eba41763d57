// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// fakeExecutor succeeds for binaries on its path and for the listed commands.
type fakeExecutor struct {
	path map[string]bool
	ok   map[string]bool
	run  func(args []string, stdin io.Reader, stdout, stderr io.Writer) error
	last []string
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	if f.path[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (f *fakeExecutor) Run(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f.last = append([]string{name}, args...)
	if f.run != nil && len(args) > 0 && args[0] == "run" {
		return f.run(args, stdin, stdout, stderr)
	}
	if f.ok[strings.Join(f.last, " ")] {
		return nil
	}
	return errors.New("exit status 1")
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		ex        *fakeExecutor
		want      string
		wantErr   string
	}{
		{
			name: "docker first",
			ex: &fakeExecutor{
				path: map[string]bool{Docker: true, Podman: true},
				ok:   map[string]bool{"docker info": true, "podman info": true},
			},
			want: Docker,
		},
		{
			name: "podman when docker info fails",
			ex: &fakeExecutor{
				path: map[string]bool{Docker: true, Podman: true},
				ok:   map[string]bool{"podman info": true},
			},
			want: Podman,
		},
		{
			name:      "preferred podman",
			preferred: Podman,
			ex: &fakeExecutor{
				path: map[string]bool{Docker: true, Podman: true},
				ok:   map[string]bool{"docker info": true, "podman info": true},
			},
			want: Podman,
		},
		{
			name:      "preferred runtime missing",
			preferred: Docker,
			ex: &fakeExecutor{
				path: map[string]bool{Podman: true},
				ok:   map[string]bool{"podman info": true},
			},
			wantErr: "tried docker",
		},
		{
			name:      "unknown runtime",
			preferred: "lxc",
			ex:        &fakeExecutor{},
			wantErr:   "unsupported container runtime",
		},
		{
			name:    "nothing installed",
			ex:      &fakeExecutor{},
			wantErr: "no container runtime available",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tt.preferred, tt.ex)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.want {
				t.Errorf("runtime = %q, want %q", rt.Name(), tt.want)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	ex := &fakeExecutor{ok: map[string]bool{
		"docker image inspect markitdown:latest": true,
		"podman image exists markitdown:latest":  true,
	}}
	for _, bin := range []string{Docker, Podman} {
		rt := newRuntime(bin, ex)
		if err := rt.ImageExists(context.Background(), "markitdown:latest"); err != nil {
			t.Errorf("%s: unexpected error: %v", bin, err)
		}
		err := rt.ImageExists(context.Background(), "missing:1")
		if err == nil || !strings.Contains(err.Error(), "missing:1") {
			t.Errorf("%s: error = %v, want mention of image", bin, err)
		}
	}
}

func TestRun(t *testing.T) {
	ex := &fakeExecutor{run: func(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write(append([]byte("converted: "), data...))
		return nil
	}}
	rt := newRuntime(Docker, ex)

	var out bytes.Buffer
	if err := rt.Run(context.Background(), "markitdown:latest", strings.NewReader("pdf bytes"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "converted: pdf bytes" {
		t.Errorf("output = %q", got)
	}
	want := "docker run --rm -i --network none markitdown:latest"
	if got := strings.Join(ex.last, " "); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestRun_IncludesStderr(t *testing.T) {
	ex := &fakeExecutor{run: func(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
		_, _ = io.WriteString(stderr, "unsupported file type\n")
		return errors.New("exit status 2")
	}}
	err := newRuntime(Podman, ex).Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"podman", "exit status 2", "unsupported file type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}
}
