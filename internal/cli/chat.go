package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/hupe1980/chatloop/core"
)

// exitWords end the interactive session.
var exitWords = map[string]struct{}{"quit": {}, "exit": {}, "q": {}}

// prompter reads one line of user input. io.EOF or terminal.InterruptErr end the session.
type prompter func() (string, error)

func surveyPrompter() prompter {
	return func() (string, error) {
		var line string
		err := survey.AskOne(&survey.Input{Message: "You:"}, &line)
		return line, err
	}
}

// chatSession is the interactive REPL over one conversation of a hub.
type chatSession struct {
	rt     *wiring
	id     string
	trace  bool
	prompt prompter
	out    io.Writer
}

func (s *chatSession) run(ctx context.Context) error {
	conv, err := s.rt.hub.Open(ctx, s.id)
	if err != nil {
		return err
	}
	s.id = conv.ID()

	renderBanner(s.out, s.id)
	if history := conv.Transcript(); len(history) == 0 {
		renderAssistant(s.out, greeting, false)
	} else {
		renderTranscript(s.out, history)
	}

	for {
		line, err := s.prompt()
		if errors.Is(err, io.EOF) || errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := exitWords[strings.ToLower(line)]; ok {
			return nil
		}

		s.turn(ctx, line)
	}
}

// turn runs one submission; Ctrl-C while it runs cancels the turn, not the session.
func (s *chatSession) turn(ctx context.Context, line string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := s.rt.hub.Submit(turnCtx, s.id, line)
	switch {
	case errors.Is(err, core.ErrTurnCancelled):
		fmt.Fprintln(s.out, mutedStyle.Render("(cancelled)"))
		return
	case err != nil:
		renderError(s.out, err)
		if core.IsTurnFailed(err) {
			fmt.Fprintln(s.out, mutedStyle.Render("(send the same message again to retry)"))
		}
		return
	}

	if s.trace {
		renderTrace(s.out, res)
	}
	renderAssistant(s.out, res.FinalMessage.Content, res.Truncated)
}
