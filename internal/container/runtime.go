// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs document conversion images under docker or podman.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	Docker = "docker"
	Podman = "podman"
)

// Runtime runs one-shot containers that read stdin and write stdout.
type Runtime interface {
	Name() string

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run starts image with networking disabled, streams stdin into it and
	// copies its stdout to stdout. The container is removed on exit.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// runtime differs between docker and podman only in binary name and the
// image check subcommand.
type runtime struct {
	bin        string
	imageCheck []string
	exec       executor
}

func newRuntime(bin string, ex executor) *runtime {
	check := []string{"image", "inspect"}
	if bin == Podman {
		check = []string{"image", "exists"}
	}
	return &runtime{bin: bin, imageCheck: check, exec: ex}
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.Run(ctx, r.bin, []string{"info"}, nil, io.Discard, io.Discard) == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), r.imageCheck...), image)
	if err := r.exec.Run(ctx, r.bin, args, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	var stderr bytes.Buffer
	args := []string{"run", "--rm", "-i", "--network", "none", image}
	if err := r.exec.Run(ctx, r.bin, args, stdin, stdout, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("running %s in %s: %w: %s", image, r.bin, err, msg)
		}
		return fmt.Errorf("running %s in %s: %w", image, r.bin, err)
	}
	return nil
}

// Detect returns the first operational runtime. preferred, when set to
// docker or podman, is the only one tried.
func Detect(ctx context.Context, preferred string) (Runtime, error) {
	return detect(ctx, preferred, osExecutor{})
}

func detect(ctx context.Context, preferred string, ex executor) (Runtime, error) {
	candidates := []string{Docker, Podman}
	switch preferred {
	case "":
	case Docker, Podman:
		candidates = []string{preferred}
	default:
		return nil, fmt.Errorf("unsupported container runtime %q: use docker or podman", preferred)
	}
	for _, bin := range candidates {
		if r := newRuntime(bin, ex); r.available(ctx) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: tried %s", strings.Join(candidates, ", "))
}
