package classifier

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ayusman/signtalk/internal/labels"
)

// ErrInvalidResponse is returned when the model server replies outside its
// contract.
var ErrInvalidResponse = errors.New("invalid model server response")

// ProcessConfig configures a model server subprocess.
type ProcessConfig struct {
	// Command is the executable and its arguments.
	Command []string
	// Env is appended to the parent environment.
	Env []string
	// IdleTimeout stops an unused process; zero keeps it running.
	IdleTimeout time.Duration
	// StaticDim is the static input width.
	StaticDim int
	// Timesteps and SequenceDim are the sequence input shape.
	Timesteps   int
	SequenceDim int
}

// Process talks to an external model server over newline-delimited JSON on
// the subprocess's stdin and stdout. The process is started lazily on the
// first request and serves one request at a time.
type Process struct {
	config ProcessConfig
	table  *labels.Table

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
	// idleGen invalidates idle callbacks that fired before a later request.
	idleGen   uint64
}

// NewProcess creates a client for the model server described by config.
func NewProcess(config ProcessConfig, table *labels.Table) (*Process, error) {
	if len(config.Command) == 0 {
		return nil, fmt.Errorf("model server command is empty")
	}
	return &Process{config: config, table: table}, nil
}

type processRequest struct {
	Kind     string      `json:"kind"`
	Features []float64   `json:"features,omitempty"`
	Sequence [][]float64 `json:"sequence,omitempty"`
}

type processResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Static returns the static classifier served by the process.
func (p *Process) Static() Static {
	return processStatic{p}
}

// Sequence returns the sequence classifier served by the process.
func (p *Process) Sequence() Sequence {
	return processSequence{p}
}

type processStatic struct{ p *Process }

func (s processStatic) InputDim() int { return s.p.config.StaticDim }

func (s processStatic) Classify(ctx context.Context, features []float64) (Prediction, error) {
	if err := CheckStatic(s, features); err != nil {
		return Prediction{}, err
	}
	return s.p.call(ctx, processRequest{Kind: "static", Features: features})
}

type processSequence struct{ p *Process }

func (s processSequence) Timesteps() int { return s.p.config.Timesteps }

func (s processSequence) InputDim() int { return s.p.config.SequenceDim }

func (s processSequence) Classify(ctx context.Context, rows [][]float64) (Prediction, error) {
	if err := CheckSequence(s, rows); err != nil {
		return Prediction{}, err
	}
	return s.p.call(ctx, processRequest{Kind: "sequence", Sequence: rows})
}

func (p *Process) call(ctx context.Context, req processRequest) (Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	p.stopIdleTimer()
	if err := p.ensureStarted(); err != nil {
		return Prediction{}, err
	}

	line, err := json.Marshal(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		p.shutdown()
		return Prediction{}, fmt.Errorf("write request: %w", err)
	}

	type reply struct {
		line string
		err  error
	}
	done := make(chan reply, 1)
	stdout := p.stdout
	go func() {
		s, err := stdout.ReadString('\n')
		done <- reply{s, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		// The stream is out of sync once a reply is abandoned.
		p.kill()
		return Prediction{}, ctx.Err()
	}
	if r.err != nil {
		p.shutdown()
		return Prediction{}, fmt.Errorf("read response: %w", r.err)
	}

	var resp processResponse
	if err := json.Unmarshal([]byte(r.line), &resp); err != nil {
		return Prediction{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return Prediction{}, fmt.Errorf("model server: %s", resp.Error)
	}

	p.resetIdleTimer()

	if math.IsNaN(resp.Confidence) || resp.Confidence < 0 || resp.Confidence > 1 {
		return Prediction{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidResponse, resp.Confidence)
	}
	if resp.Label == "" {
		return Prediction{Label: labels.None, Confidence: resp.Confidence}, nil
	}
	l, err := p.table.Lookup(resp.Label)
	if err != nil {
		return Prediction{}, fmt.Errorf("model server: %w", err)
	}
	return Prediction{Label: l, Confidence: resp.Confidence}, nil
}

// Close shuts down the subprocess.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *Process) ensureStarted() error {
	if p.started {
		return nil
	}

	p.cmd = exec.Command(p.config.Command[0], p.config.Command[1:]...)
	p.cmd.Env = append(os.Environ(), p.config.Env...)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start model server: %w", err)
	}

	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	return nil
}

func (p *Process) shutdown() error {
	if !p.started {
		return nil
	}
	p.stopIdleTimer()
	if p.stdin != nil {
		p.stdin.Close()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
	return err
}

func (p *Process) kill() {
	if p.started && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.shutdown()
}

func (p *Process) stopIdleTimer() {
	p.idleGen++
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

func (p *Process) resetIdleTimer() {
	p.stopIdleTimer()
	if p.config.IdleTimeout <= 0 {
		return
	}
	gen := p.idleGen
	p.idleTimer = time.AfterFunc(p.config.IdleTimeout, func() {
		p.idleExpired(gen)
	})
}

// idleExpired stops the process unless a request arrived after the timer of
// generation gen was armed.
func (p *Process) idleExpired(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.idleGen {
		return
	}
	p.shutdown()
}
