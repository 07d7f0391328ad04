package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"parley/pkg/agent"
	"parley/pkg/config"
	"parley/pkg/llm"
	"parley/pkg/session"
)

// oneShot runs a single prompt and prints the reply.
func oneShot(ctx context.Context, ag *agent.Agent, store *session.Store, sess *session.Session, cfg *config.Config, prompt string) int {
	outcome, err := ag.Send(ctx, prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Exchange failed: %v\n", err)
		return 1
	}
	fmt.Println(lastAssistantText(ag.Conversation()))
	reportOutcome(outcome)

	if store != nil {
		if _, err := persistSession(store, sess, ag, cfg, prompt, outcome); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save session: %v\n", err)
			return 1
		}
	}
	return 0
}

// repl runs an interactive chat until EOF or an exit command.
func repl(ctx context.Context, ag *agent.Agent, store *session.Store, sess *session.Session, cfg *config.Config) int {
	fmt.Printf("parley %s — chatting with %s (type 'exit' to quit)\n", version, cfg.Model)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		outcome, err := ag.Send(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Exchange failed: %v\n", err)
			if ctx.Err() != nil {
				return 1
			}
			continue
		}
		fmt.Println(lastAssistantText(ag.Conversation()))
		reportOutcome(outcome)

		if store != nil {
			saved, err := persistSession(store, sess, ag, cfg, line, outcome)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to save session: %v\n", err)
			} else {
				sess = saved
			}
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input error: %v\n", err)
		return 1
	}
	return 0
}

// persistSession saves the conversation, creating the session row on first
// use with a title taken from the opening prompt. It returns the session
// handle so the caller can keep updating the same row.
func persistSession(store *session.Store, sess *session.Session, ag *agent.Agent, cfg *config.Config, prompt string, outcome *agent.Outcome) (*session.Session, error) {
	if sess == nil {
		created, err := store.Create(sessionTitle(prompt), cfg.Model)
		if err != nil {
			return nil, err
		}
		sess = created
		fmt.Fprintf(os.Stderr, "Session %s\n", sess.ID)
	}
	sess.Model = cfg.Model
	sess.Messages = ag.Conversation().Messages()
	sess.Usage.Add(outcome.Usage)
	if err := store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// sessionTitle derives a short listing title from the opening prompt.
func sessionTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if len(title) > 60 {
		title = title[:60]
	}
	return title
}

// lastAssistantText joins the text blocks of the conversation's final
// assistant message.
func lastAssistantText(conv *agent.Conversation) string {
	msg, ok := conv.Last()
	if !ok || msg.Role != llm.RoleAssistant {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == llm.BlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// reportOutcome warns about exchanges that ended early.
func reportOutcome(outcome *agent.Outcome) {
	if outcome.Truncated {
		fmt.Fprintln(os.Stderr, "⚠️  Response truncated by the token limit")
	}
	if outcome.TurnLimit {
		fmt.Fprintln(os.Stderr, "⚠️  Turn limit reached before the model finished")
	}
}

// listSessions prints the saved sessions, most recent first.
func listSessions(store *session.Store) int {
	if store == nil {
		fmt.Fprintln(os.Stderr, "Session persistence is disabled (set session.path in the config)")
		return 1
	}
	summaries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
		return 1
	}
	if len(summaries) == 0 {
		fmt.Println("No saved sessions")
		return 0
	}
	for _, sum := range summaries {
		fmt.Printf("%s  %s  %3d msgs  %s\n",
			sum.ID, sum.UpdatedAt.Format("2006-01-02 15:04"), sum.MessageCount, sum.Title)
	}
	return 0
}

// deleteSession removes one saved session by ID.
func deleteSession(store *session.Store, id string) int {
	if store == nil {
		fmt.Fprintln(os.Stderr, "Session persistence is disabled (set session.path in the config)")
		return 1
	}
	if err := store.Delete(id); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete session: %v\n", err)
		return 1
	}
	fmt.Printf("Deleted session %s\n", id)
	return 0
}
