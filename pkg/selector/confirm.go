package selector

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/retisctl/arc/pkg/filter"
)

// Confirmer asks the operator to approve a potentially wide-reaching
// operation. Injected so the gate is testable without a terminal.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ErrConfirmationDeclined is returned by Gate when the operator declines.
var ErrConfirmationDeclined = fmt.Errorf("operation cancelled by operator")

// Gate blocks live execution against every worker node: when no filter was
// supplied and the run is not a dry run, the operator must confirm before
// any remote call happens. The gate never narrows the target set. A nil
// Confirmer in a gated situation is treated as a decline.
func Gate(spec filter.Spec, dryRun bool, targets int, confirm Confirmer) error {
	if !spec.Empty() || dryRun {
		return nil
	}

	if confirm == nil {
		return ErrConfirmationDeclined
	}

	prompt := fmt.Sprintf("No filters specified; this will run on ALL %d worker nodes. Continue? (y/N): ", targets)
	ok, err := confirm.Confirm(prompt)
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		return ErrConfirmationDeclined
	}

	return nil
}

// PromptConfirmer reads a y/yes answer from In, writing the prompt to Out.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer.
func (p *PromptConfirmer) Confirm(prompt string) (bool, error) {
	if _, err := fmt.Fprint(p.Out, prompt); err != nil {
		return false, err
	}

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// AlwaysConfirm returns a Confirmer that approves every prompt, used for
// the --yes flag.
func AlwaysConfirm() Confirmer { return alwaysConfirm{} }

type alwaysConfirm struct{}

func (alwaysConfirm) Confirm(string) (bool, error) { return true, nil }
