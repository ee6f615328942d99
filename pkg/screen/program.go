package screen

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drc-tools/drcflash/pkg/errors"
)

// signalMsg carries SIGINT or SIGTERM into the event loop. The model treats
// it like the interrupt key.
type signalMsg struct{}

// Program runs a Screen as a full-screen bubbletea program
type Program struct {
	ctx    context.Context
	screen *Screen
	tea    *tea.Program
}

// NewProgram creates the program for screen. bubbletea's own signal handler
// is disabled; Run forwards signals to the model instead.
func NewProgram(ctx context.Context, screen *Screen, opts ...tea.ProgramOption) *Program {
	opts = append([]tea.ProgramOption{tea.WithoutSignalHandler()}, opts...)
	return &Program{
		ctx:    ctx,
		screen: screen,
		tea:    tea.NewProgram(NewModel(ctx, screen, DefaultFrame), opts...),
	}
}

// Send delivers msg to the running program
func (p *Program) Send(msg tea.Msg) {
	p.tea.Send(msg)
}

// Run shows the screen until it quits. However the program ends, a started
// update is driven to Done or Error and the session is closed before Run
// returns.
func (p *Program) Run() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-sigs:
				p.tea.Send(signalMsg{})
			case <-stop:
				return
			}
		}
	}()

	_, err := p.tea.Run()

	p.screen.Session().Drain(context.WithoutCancel(p.ctx))

	return errors.Wrap(err, "screen failed")
}
