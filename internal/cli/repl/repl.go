package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"codejudge/internal/cli/command"
	httpclient "codejudge/internal/cli/http"
	"codejudge/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const (
	prompt       = "judge> "
	inputPrompt  = "input> "
	inputEndLine = "."
)

// errExit ends the session.
var errExit = errors.New("exit")

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	state      *state.SessionState
	statePath  string
	prettyJSON bool
	out        io.Writer
	readLine   func(prompt string) (string, error)
}

func New(client *httpclient.Client, commands map[string]command.Command, st *state.SessionState, statePath string, prettyJSON bool) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		state:      st,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		out:        os.Stdout,
	}
}

// Run reads lines until exit or EOF.
func (s *Session) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.out = rl.Stdout()
	s.readLine = func(p string) (string, error) {
		rl.SetPrompt(p)
		defer rl.SetPrompt(prompt)
		return rl.Readline()
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		if err := s.HandleLine(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				s.printLine("bye")
				return nil
			}
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout")),
		readline.PcItem("show", readline.PcItem("config")),
	}
	for _, name := range command.Names(s.commands) {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// HandleLine executes one input line.
func (s *Session) HandleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	switch tokens[0] {
	case "exit", "quit":
		return errExit
	case "help":
		s.printHelp()
		return nil
	case "set":
		return s.handleSet(tokens[1:])
	case "show":
		s.handleShow(tokens[1:])
		return nil
	}

	cmd, ok := s.commands[tokens[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s (try help)", tokens[0])
	}
	params, err := command.Bind(cmd, tokens[1:])
	if err != nil {
		return err
	}
	if err := s.promptInline(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.rememberLanguage(params.Get("language"))
	return nil
}

func (s *Session) handleSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set base <url> | set timeout <duration>")
	}
	switch args[0] {
	case "base":
		s.client.SetBaseURL(args[1])
		s.state.BaseURL = s.client.BaseURL()
		s.printLine("base set to %s", s.client.BaseURL())
	case "timeout":
		dur, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		if dur <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		s.client.SetTimeout(dur)
		s.state.Timeout = dur
		s.printLine("timeout set to %s", dur)
	default:
		return fmt.Errorf("unknown set command: %s", args[0])
	}
	return s.saveState()
}

func (s *Session) handleShow(args []string) {
	if len(args) == 1 && args[0] == "config" {
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("timeout: %s", s.client.Timeout())
		s.printLine("statePath: %s", s.statePath)
		if s.state.LastLanguage != "" {
			s.printLine("lastLanguage: %s", s.state.LastLanguage)
		}
		return
	}
	s.printLine("usage: show config")
}

// promptInline reads text for every FieldInput given as "-".
func (s *Session) promptInline(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if field.Type != command.FieldInput || params.Get(field.Name) != command.PromptMarker {
			continue
		}
		if s.readLine == nil {
			return fmt.Errorf("%s cannot be read inline here", field.Name)
		}
		s.printLine("%s:", field.Prompt)
		var lines []string
		for {
			line, err := s.readLine(inputPrompt)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read input failed: %w", err)
			}
			if line == inputEndLine {
				break
			}
			lines = append(lines, line)
		}
		params.Set(command.InlineKey(field.Name), strings.Join(lines, "\n"))
	}
	return nil
}

type verdictBody struct {
	Status string   `json:"status"`
	Logs   []string `json:"logs"`
}

type languageItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Compiled bool   `json:"compiled"`
}

type languagesEnvelope struct {
	Code int            `json:"code"`
	Data []languageItem `json:"data"`
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	header := fmt.Sprintf("HTTP %d (%s)", resp.StatusCode, resp.Duration.Round(time.Millisecond))
	if trace := resp.TraceID(); trace != "" {
		header += " trace=" + trace
	}
	s.printLine("%s", header)
	if len(resp.Body) == 0 {
		return
	}

	var verdict verdictBody
	if err := json.Unmarshal(resp.Body, &verdict); err == nil && verdict.Status != "" {
		for _, line := range verdict.Logs {
			s.printLine("%s", line)
		}
		s.printLine("status: %s", verdict.Status)
		return
	}

	var langs languagesEnvelope
	if err := json.Unmarshal(resp.Body, &langs); err == nil && len(langs.Data) > 0 {
		tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tNAME\tIMAGE\tCOMPILED")
		for _, lang := range langs.Data {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", lang.ID, lang.Name, lang.Image, lang.Compiled)
		}
		_ = tw.Flush()
		return
	}

	if s.prettyJSON {
		var formatted bytes.Buffer
		if err := json.Indent(&formatted, resp.Body, "", "  "); err == nil {
			s.printLine("%s", formatted.String())
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) rememberLanguage(language string) {
	if language == "" || language == s.state.LastLanguage {
		return
	}
	s.state.LastLanguage = language
	_ = s.saveState()
}

func (s *Session) saveState() error {
	if s.statePath == "" {
		return nil
	}
	if err := state.Save(s.statePath, *s.state); err != nil {
		return fmt.Errorf("save session state failed: %w", err)
	}
	return nil
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	for _, name := range command.Names(s.commands) {
		cmd := s.commands[name]
		s.printLine("  %-40s %s", cmd.Usage(), cmd.Summary)
	}
	s.printLine("system: help | exit | set base <url> | set timeout <duration> | show config")
	s.printLine("use - as the input of custom to type stdin, ending with a single '.'")
	s.printLine("examples:")
	s.printLine("  run python ./Main.py two-sum")
	s.printLine("  custom cpp ./Main.cpp ./input.txt")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
