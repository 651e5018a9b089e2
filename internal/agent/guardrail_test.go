package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardrail_BlocksCodeRequests(t *testing.T) {
	for _, msg := range []string{
		"Write a Python script to scrape Twitter",
		"can you generate the code for a login page?",
		"Please write me a function that sorts a list",
		"help me write a SQL query for my users table",
	} {
		t.Run(msg, func(t *testing.T) {
			reply, blocked := Guardrail(msg)
			assert.True(t, blocked)
			assert.Equal(t, codeRefusal, reply.Message)
			assert.Equal(t, 1.0, reply.Confidence)
		})
	}
}

func TestGuardrail_BlocksHostileMessages(t *testing.T) {
	for _, msg := range []string{
		"you are a useless bot",
		"You're so stupid",
		"shut up",
	} {
		t.Run(msg, func(t *testing.T) {
			reply, blocked := Guardrail(msg)
			assert.True(t, blocked)
			assert.Equal(t, offTopicRefusal, reply.Message)
		})
	}
}

func TestGuardrail_AllowsOrdinaryMessages(t *testing.T) {
	for _, msg := range []string{
		"",
		"What's next?",
		"I need to write code for my project today, what should I start with?",
		"Remind me to call mom on Jan 10 at 3pm",
		"I can't do this today",
		"Create a plan for learning the piano",
		"Please create a study schedule for my algorithms class",
		"Can you create a revision plan for my data structures class exam?",
		"Please create a class schedule for next week",
		"I feel so stupid, I can't do this today",
		"This task is dumb and too hard, not today",
	} {
		t.Run(msg, func(t *testing.T) {
			_, blocked := Guardrail(msg)
			assert.False(t, blocked)
		})
	}
}
