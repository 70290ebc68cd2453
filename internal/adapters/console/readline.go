package console

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"rosterkit/pkg/domain"
)

// TerminalConfig configures the readline session.
type TerminalConfig struct {
	Prompt      string
	HistoryFile string
	VimMode     bool
}

// NewReadline builds a readline instance whose keystrokes feed c's live search.
func NewReadline(c *Console, cfg TerminalConfig) (*readline.Instance, error) {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "roster> "
	}
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		VimMode:         cfg.VimMode,
		Listener:        c,
		AutoComplete:    completer(),
	})
}

func completer() *readline.PrefixCompleter {
	statusItems := []readline.PrefixCompleterInterface{
		readline.PcItem("all"), readline.PcItem("active"), readline.PcItem("inactive"),
	}
	roleItems := []readline.PrefixCompleterInterface{readline.PcItem("all")}
	for _, r := range domain.Roles() {
		roleItems = append(roleItems, readline.PcItem(r.String()))
	}
	sizeItems := []readline.PrefixCompleterInterface{
		readline.PcItem("5"), readline.PcItem("10"), readline.PcItem("20"), readline.PcItem("50"),
	}
	helpItems := make([]readline.PrefixCompleterInterface, 0, len(commandOrder))
	for _, name := range commandOrder {
		helpItems = append(helpItems, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("status", statusItems...),
		readline.PcItem("role", roleItems...),
		readline.PcItem("size", sizeItems...),
		readline.PcItem("page"),
		readline.PcItem("show"),
		readline.PcItem("toggle"),
		readline.PcItem("delete"),
		readline.PcItem("add"),
		readline.PcItem("column"),
		readline.PcItem("export", readline.PcItem("csv"), readline.PcItem("json"), readline.PcItem("status")),
		readline.PcItem("url"),
		readline.PcItem("help", helpItems...),
		readline.PcItem("quit"),
	)
}

// Run reads and executes lines until quit, EOF or ctx is done. Command errors
// are printed and the loop continues.
func (c *Console) Run(ctx context.Context, rl *readline.Instance) error {
	c.SetOutput(rl.Stdout())
	defer c.Close()
	c.render()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if strings.TrimSpace(line) == "" {
				c.printf("use quit to exit\n")
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if err := c.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			c.printf("error: %v\n", err)
		}
	}
}
