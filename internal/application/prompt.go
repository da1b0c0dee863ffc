package application

import (
	"strings"

	"github.com/bnema/cuedesk/internal/domain"
)

const defaultSystemPrompt = `You control a stage-lighting desk through tools: channels, scenes, chases, fixtures and nodes.
Use tools to read state before answering questions about it, and to make changes the user asks for.
Keep replies short. Never invent ids; list entities first when unsure.
Some actions need the user's confirmation; when a tool result says it is pending confirmation, relay the question and stop.`

func buildSystemPrompt(base, memorySummary string, live domain.LiveContext) string {
	var b strings.Builder
	b.WriteString(base)

	if memorySummary != "" {
		b.WriteString("\n\nSession memory:\n")
		b.WriteString(memorySummary)
	}

	var state []string
	if live.Playback.State != "" {
		playback := "Playback: " + live.Playback.State
		if live.Playback.SceneID != "" {
			playback += ", scene " + live.Playback.SceneID
		}
		if live.Playback.ChaseID != "" {
			playback += ", chase " + live.Playback.ChaseID
		}
		state = append(state, playback)
	}
	if len(live.OfflineNodes) > 0 {
		state = append(state, "Offline nodes: "+strings.Join(live.OfflineNodes, ", "))
	}
	if len(state) > 0 {
		b.WriteString("\n\nDevice state:\n")
		b.WriteString(strings.Join(state, "\n"))
	}

	return b.String()
}
