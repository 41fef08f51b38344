// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container finds a local container runtime (docker or podman) and
// runs one-shot containers that read stdin and write stdout. The full-text
// converter uses it to run the markitdown image.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

const (
	Docker = "docker"
	Podman = "podman"
)

// Runtime runs containers with one local container engine.
type Runtime interface {
	// Name returns the runtime binary name.
	Name() string

	// Available reports whether the binary is on PATH and its daemon answers.
	Available(ctx context.Context) bool

	// ImageExists returns nil when the image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run starts a throwaway container from image with stdin and stdout
	// attached. Cancelling ctx kills the container client.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts command execution for tests.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine implements Runtime. Docker and Podman differ only in binary name
// and the image check subcommand.
type engine struct {
	bin        string
	imageCheck []string
	exec       executor
}

func (e *engine) Name() string { return e.bin }

func (e *engine) Available(ctx context.Context) bool {
	if _, err := e.exec.LookPath(e.bin); err != nil {
		return false
	}
	return e.exec.RunSilent(ctx, e.bin, "info") == nil
}

func (e *engine) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), e.imageCheck...), image)
	if err := e.exec.RunSilent(ctx, e.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	var stderr limitedBuffer
	args := []string{"run", "--rm", "-i", "--network", "none", image}
	if err := e.exec.RunPiped(ctx, e.bin, args, stdin, stdout, &stderr); err != nil {
		if msg := stderr.String(); msg != "" {
			return fmt.Errorf("running %s container %s: %w: %s", e.bin, image, err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", e.bin, image, err)
	}
	return nil
}

func newEngine(name string, x executor) (*engine, error) {
	switch name {
	case Docker:
		return &engine{bin: Docker, imageCheck: []string{"image", "inspect"}, exec: x}, nil
	case Podman:
		return &engine{bin: Podman, imageCheck: []string{"image", "exists"}, exec: x}, nil
	default:
		return nil, fmt.Errorf("unknown container runtime %q (want docker or podman)", name)
	}
}

// Detect returns the named runtime, or when name is empty the first
// available of docker and podman.
func Detect(ctx context.Context, name string) (Runtime, error) {
	return detect(ctx, name, osExecutor{})
}

func detect(ctx context.Context, name string, x executor) (Runtime, error) {
	candidates := []string{Docker, Podman}
	if name != "" {
		candidates = []string{name}
	}
	for _, c := range candidates {
		e, err := newEngine(c, x)
		if err != nil {
			return nil, err
		}
		if e.Available(ctx) {
			return e, nil
		}
	}
	if name != "" {
		return nil, fmt.Errorf("container runtime %s not found or not operational", name)
	}
	return nil, fmt.Errorf("no container runtime available: neither %s nor %s found or operational", Docker, Podman)
}

// limitedBuffer keeps the first 4 KiB written to it.
type limitedBuffer struct {
	buf []byte
}

const stderrLimit = 4 << 10

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := stderrLimit - len(b.buf); room > 0 {
		b.buf = append(b.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return string(b.buf) }
