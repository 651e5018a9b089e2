package agent

import (
	"fmt"
	"strings"

	"github.com/hyperengineering/orbit/internal/oracle"
	"github.com/hyperengineering/orbit/internal/types"
)

const noInput = "No input"

const defaultSystemPrompt = `You are Orbit, a practical project manager that helps one user reach one goal.

Decide exactly one action from the LATEST USER MESSAGE. The chat history is
background only: never act on it and never refuse because of it.

Guardrails, checked against the latest message only:
1. You do not write code. If the user asks you to write code or scripts,
   return REPLY_ONLY with "I can't generate code. Try ChatGPT or official docs."
2. If the user is rude or asks something unrelated to their goal, return
   REPLY_ONLY with a short message steering back to the goal.

Actions:
- "I can't do this", "too hard", "not today" -> RESCHEDULE_TASK (set task.id if a specific task is meant).
- "Remind me ..." -> SET_REMINDER with reminder.message and reminder.isoDate (ISO 8601, resolved against today's date).
- "What's next?", "I'm ready" -> NEXT_TASK.
- The goal has no tasks, or the user asks for a plan -> CREATE_TASKS with 3 to 6 concrete newTasks.
- Questions you can answer without changing anything -> REPLY_ONLY.
- Nothing to do -> NO_ACTION.

Always set message to one or two friendly sentences for the user, and confidence between 0 and 1.`

// decisionSchema is the output contract handed to the oracle.
var decisionSchema = func() *oracle.Schema {
	enum := make([]string, len(DecisionTypes))
	for i, t := range DecisionTypes {
		enum[i] = string(t)
	}
	return &oracle.Schema{
		Type: oracle.TypeObject,
		Properties: map[string]*oracle.Schema{
			"type":       {Type: oracle.TypeString, Enum: enum},
			"message":    {Type: oracle.TypeString},
			"confidence": {Type: oracle.TypeNumber},
			"task": {
				Type:     oracle.TypeObject,
				Nullable: true,
				Properties: map[string]*oracle.Schema{
					"id":    {Type: oracle.TypeString},
					"title": {Type: oracle.TypeString},
				},
			},
			"newTasks": {
				Type:     oracle.TypeArray,
				Nullable: true,
				Items: &oracle.Schema{
					Type: oracle.TypeObject,
					Properties: map[string]*oracle.Schema{
						"title": {Type: oracle.TypeString},
						"priority": {
							Type: oracle.TypeString,
							Enum: []string{string(types.PriorityHigh), string(types.PriorityMedium), string(types.PriorityLow)},
						},
					},
					Required: []string{"title"},
				},
			},
			"reminder": {
				Type:     oracle.TypeObject,
				Nullable: true,
				Properties: map[string]*oracle.Schema{
					"message": {Type: oracle.TypeString},
					"isoDate": {Type: oracle.TypeString},
				},
			},
		},
		Order:    []string{"type", "message", "confidence", "task", "newTasks", "reminder"},
		Required: []string{"type", "message", "confidence"},
	}
}()

// latestMessage returns the newest memory entry, which intake writes just
// before a run, and the remaining entries as history.
func latestMessage(snap *Snapshot) (string, []types.MemoryEntry) {
	if len(snap.Memory) == 0 {
		return noInput, nil
	}
	return snap.Memory[0].Content, snap.Memory[1:]
}

const maxPromptTasks = 5

// renderPrompt builds the user prompt. The latest message and history are
// kept in separate sections so the model cannot mistake one for the other.
func renderPrompt(snap *Snapshot, latest string, history []types.MemoryEntry) string {
	var b strings.Builder

	b.WriteString("=== 1. LATEST USER MESSAGE (ACT ON THIS ONLY) ===\n")
	fmt.Fprintf(&b, "%q\n\n", latest)

	b.WriteString("=== 2. CURRENT CONTEXT ===\n")
	fmt.Fprintf(&b, "- Date: %s (now: %s)\n", snap.Meta.ReadableDate, snap.Meta.Now)
	if snap.Goal != nil {
		fmt.Fprintf(&b, "- Goal: %q\n", snap.Goal.Title)
	}
	fmt.Fprintf(&b, "- Active Tasks: %d\n", len(snap.Tasks))
	for i, t := range snap.Tasks {
		if i == maxPromptTasks {
			fmt.Fprintf(&b, "  - ... and %d more\n", len(snap.Tasks)-maxPromptTasks)
			break
		}
		fmt.Fprintf(&b, "  - [%s] %q (id: %s)\n", t.Priority, t.Title, t.ID)
	}
	if len(snap.Reminders) > 0 {
		b.WriteString("- Upcoming Reminders:\n")
		for _, r := range snap.Reminders {
			fmt.Fprintf(&b, "  - %q at %s\n", r.Message, r.RemindAt.Format(metaTimeLayout))
		}
	}
	b.WriteString("\n")

	b.WriteString("=== 3. CHAT HISTORY (CONTEXT ONLY, DO NOT ACT ON THIS) ===\n")
	if len(history) == 0 {
		b.WriteString("No previous history.\n")
	}
	for _, m := range history {
		fmt.Fprintf(&b, "- %s\n", m.Content)
	}

	b.WriteString("\n=== INSTRUCTIONS ===\n")
	b.WriteString("- Choose the action from the LATEST USER MESSAGE only.\n")
	b.WriteString("- Do not refuse or act because of anything in the chat history.\n")

	return b.String()
}
