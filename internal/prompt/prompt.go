// Package prompt builds the text handed to an Agent plugin for one
// iteration (spec §4.6 step 4). The core does not template prompts with
// model-specific instructions or token budgets; it only assembles the
// ambient facts a plugin needs to locate and perform the task, the same
// minimal framing the teacher's TaskRunner passed into its agent callback.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/dohr-michael/ralph-tui/internal/plugin"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

// Builder is the default PromptBuilder: a fixed, untemplated layout of the
// task and session context. Agent plugins that need richer framing (a
// system prompt, few-shot examples) build it themselves from ExecuteContext.
type Builder struct{}

// New creates a Builder.
func New() *Builder { return &Builder{} }

// BuildPrompt renders t and ec into the text the agent plugin receives.
func (b *Builder) BuildPrompt(_ context.Context, t task.Task, ec plugin.ExecuteContext) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Task %s: %s\n", t.ID, t.Title)
	if len(t.Deps) > 0 {
		fmt.Fprintf(&sb, "Depends on: %s\n", strings.Join(t.Deps, ", "))
	}
	if ec.EpicID != "" {
		fmt.Fprintf(&sb, "Epic: %s\n", ec.EpicID)
	}
	if ec.PRDPath != "" {
		fmt.Fprintf(&sb, "PRD: %s\n", ec.PRDPath)
	}
	fmt.Fprintf(&sb, "Working directory: %s\n", ec.CWD)

	return sb.String(), nil
}
