// Package blender renders through a headless Blender process. Each session
// owns one Blender instance running an embedded driver script and talks to
// it over stdin/stdout with one JSON command per line.
package blender

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/turntable/internal/logger"
	"github.com/Faultbox/turntable/internal/mesh"
	"github.com/Faultbox/turntable/internal/render"
)

//go:embed driver.py
var driverScript string

// macAppBinary is where the Blender app bundle keeps its executable.
const macAppBinary = "/Applications/Blender.app/Contents/MacOS/Blender"

const (
	startTimeout = 2 * time.Minute
	quitTimeout  = 10 * time.Second
	stderrTail   = 4096
)

var errExited = errors.New("blender exited")

// Renderer starts one Blender process per acquired session.
type Renderer struct {
	// Path is the Blender executable. Empty means search PATH, then the
	// macOS app bundle.
	Path   string
	Logger *zap.Logger
}

// New returns a Renderer using the given executable path.
func New(path string, log *zap.Logger) *Renderer {
	return &Renderer{Path: path, Logger: log}
}

// Name implements render.Renderer.
func (r *Renderer) Name() string { return "blender" }

// Executable resolves the Blender binary.
func (r *Renderer) Executable() (string, error) {
	if r.Path != "" {
		return exec.LookPath(r.Path)
	}
	if p, err := exec.LookPath("blender"); err == nil {
		return p, nil
	}
	if _, err := os.Stat(macAppBinary); err == nil {
		return macAppBinary, nil
	}
	return "", errors.New("blender not found in PATH (set renderer.blender_path)")
}

// Acquire implements render.Renderer. The returned session must be closed.
func (r *Renderer) Acquire(ctx context.Context) (render.Session, error) {
	bin, err := r.Executable()
	if err != nil {
		return nil, &render.Error{Op: "start", Err: err}
	}

	id := uuid.NewString()
	dir, err := os.MkdirTemp("", "turntable-blender-"+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("creating driver dir: %w", err)
	}
	script := filepath.Join(dir, "driver.py")
	if err := os.WriteFile(script, []byte(driverScript), 0644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("writing driver script: %w", err)
	}

	s := &Session{
		id:      id,
		dir:     dir,
		log:     logger.OrNop(r.Logger).With(zap.String("session", id)),
		replies: make(chan reply, 1),
		exited:  make(chan struct{}),
		stderr:  &tailBuffer{max: stderrTail},
	}
	if err := s.start(ctx, bin, script); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return s, nil
}

// Session is one running Blender process with its scene.
type Session struct {
	id  string
	dir string
	log *zap.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	replies chan reply
	exited  chan struct{}
	exitErr error
	stderr  *tailBuffer

	mu     sync.Mutex
	closed bool
}

func (s *Session) start(ctx context.Context, bin, script string) error {
	s.cmd = exec.Command(bin, "--background", "--factory-startup", "--python", script)
	s.cmd.Stderr = s.stderr

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	s.stdin = stdin

	if err := s.cmd.Start(); err != nil {
		return &render.Error{Op: "start", Err: err}
	}
	s.log.Debug("blender started", zap.String("bin", bin), zap.Int("pid", s.cmd.Process.Pid))

	go s.readLoop(stdout)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	r, err := s.await(startCtx, "start")
	if err != nil {
		s.kill()
		return err
	}
	s.log.Debug("driver ready", zap.String("version", r.Version))
	return nil
}

// readLoop forwards driver replies and logs the rest of Blender's output.
func (s *Session) readLoop(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		r, ok, err := parseReply(line)
		switch {
		case err != nil:
			r = reply{Error: err.Error()}
		case !ok:
			s.log.Debug("blender", zap.String("out", line))
			continue
		}
		select {
		case s.replies <- r:
		default:
			s.log.Warn("dropped unexpected driver reply", zap.String("line", line))
		}
	}
	s.exitErr = s.cmd.Wait()
	close(s.exited)
}

// await waits for the next driver reply, killing Blender when ctx ends.
func (s *Session) await(ctx context.Context, op string) (reply, error) {
	select {
	case r := <-s.replies:
		if !r.OK {
			return r, &render.Error{Op: op, Err: errors.New(r.Error), Stderr: s.stderr.String()}
		}
		return r, nil
	case <-s.exited:
		return reply{}, s.exitError(op)
	case <-ctx.Done():
		s.kill()
		return reply{}, &render.Error{
			Op:      op,
			Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:     ctx.Err(),
			Stderr:  s.stderr.String(),
		}
	}
}

func (s *Session) exitError(op string) error {
	e := &render.Error{Op: op, Err: errExited, Stderr: s.stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(s.exitErr, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	} else if s.exitErr != nil {
		e.Err = s.exitErr
	}
	return e
}

func (s *Session) call(ctx context.Context, op string, c command) (reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return reply{}, &render.Error{Op: op, Err: errors.New("session closed")}
	}

	line, err := json.Marshal(c)
	if err != nil {
		return reply{}, err
	}
	if _, err := s.stdin.Write(append(line, '\n')); err != nil {
		select {
		case <-s.exited:
			return reply{}, s.exitError(op)
		default:
			return reply{}, &render.Error{Op: op, Err: err}
		}
	}
	return s.await(ctx, op)
}

// Import implements render.Session.
func (s *Session) Import(ctx context.Context, path string) ([]mesh.Object, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, &mesh.ImportError{Path: path, Err: err}
	}
	r, err := s.call(ctx, "import", command{Op: "import", Path: abs})
	if err != nil {
		return nil, &mesh.ImportError{Path: path, Err: err}
	}
	objects := r.objects()
	s.log.Debug("imported", zap.String("path", path), zap.Int("objects", len(objects)))
	return objects, nil
}

// Configure implements render.Session.
func (s *Session) Configure(ctx context.Context, scene render.Scene) error {
	if err := scene.Validate(); err != nil {
		return &render.Error{Op: "configure", Err: err}
	}
	_, err := s.call(ctx, "configure", command{Op: "configure", Scene: newScenePayload(scene)})
	return err
}

// Render implements render.Session.
func (s *Session) Render(ctx context.Context, pose render.Pose, outPath string) error {
	abs, err := filepath.Abs(outPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("creating frame dir: %w", err)
	}
	op := fmt.Sprintf("frame %d", pose.Frame)
	_, err = s.call(ctx, op, command{
		Op:   "render",
		Path: abs,
		Pose: &posePayload{Frame: pose.Frame, Axis: string(pose.Axis), Angle: pose.Angle},
	})
	return err
}

// Close implements render.Session: it clears the scene, stops Blender and
// removes the driver script.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()

	var err error
	select {
	case <-s.exited:
	default:
		if _, qerr := s.call(ctx, "quit", command{Op: "quit"}); qerr != nil {
			s.log.Debug("quit failed", zap.Error(qerr))
		}
		s.stdin.Close()
		select {
		case <-s.exited:
		case <-ctx.Done():
			s.kill()
			<-s.exited
		}
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err = multierr.Append(err, os.RemoveAll(s.dir))
	s.log.Debug("blender stopped")
	return err
}

func (s *Session) kill() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
