// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Recorded session management commands for graphwatch.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/graphwatch/internal/storage"
)

// HandleSessions handles the "sessions" command and its subcommands:
// list, show, export, delete, clear.
func HandleSessions(args Args) error {
	cfg, err := LoadConfigForCLI(args)
	if err != nil {
		return HandleError(WrapError(err, "failed to load configuration"), args.JSON)
	}

	store, err := storage.NewSessionStore(cfg.Recording.Dir, cfg.Recording.MaxSessions)
	if err != nil {
		return HandleError(WrapError(err, "failed to open session store"), args.JSON)
	}

	parser := NewArgParser(args.Raw)
	jsonMode := args.JSON || parser.BoolFlag("json")

	switch parser.Subcommand() {
	case "", "list", "ls", "l":
		return handleSessionList(store, jsonMode)
	case "show":
		return handleSessionShow(store, parser, jsonMode)
	case "export":
		return handleSessionExport(store, parser, jsonMode)
	case "delete", "rm":
		return handleSessionDelete(store, parser, jsonMode)
	case "clear", "delete-all":
		return handleSessionClear(store, parser, jsonMode)
	default:
		return HandleError(NewValidationErrorWithExample(
			"subcommand", parser.Subcommand(), "unknown sessions subcommand",
			"graphwatch sessions [list|show|export|delete|clear]"), jsonMode)
	}
}

// handleSessionList lists recorded sessions, newest first.
func handleSessionList(store *storage.SessionStore, jsonMode bool) error {
	metas, err := store.List()
	if err != nil {
		return HandleError(WrapError(err, "failed to list sessions"), jsonMode)
	}

	if jsonMode {
		data := SessionListData{Count: len(metas)}
		for _, m := range metas {
			entry := SessionListEntry{
				ID:            m.ID,
				ServerURL:     m.ServerURL,
				StartedAt:     m.StartedAt.Format(time.RFC3339),
				EventCount:    m.EventCount,
				SnapshotCount: m.SnapshotCount,
			}
			if !m.EndedAt.IsZero() {
				entry.EndedAt = m.EndedAt.Format(time.RFC3339)
			}
			data.Sessions = append(data.Sessions, entry)
		}
		return NewJSONResponse("sessions", data).Print()
	}

	fmt.Print(storage.FormatSessionList(metas))
	return nil
}

// resolveSession loads a session by ID, or by list index when the
// argument is a small integer (0 = newest).
func resolveSession(store *storage.SessionStore, ref string) (*storage.Session, error) {
	if ref == "" {
		return nil, ErrMissingArgument("session", "graphwatch sessions show <id|index>")
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		return store.LoadByIndex(idx)
	}
	return store.Load(ref)
}

// handleSessionShow displays one session's timeline.
func handleSessionShow(store *storage.SessionStore, parser *ArgParser, jsonMode bool) error {
	sess, err := resolveSession(store, parser.Positional(1))
	if err != nil {
		return HandleError(err, jsonMode)
	}

	if jsonMode {
		return NewJSONResponse("sessions", sess).Print()
	}

	fmt.Println(TitleStyle.Render("Session " + sess.ID))
	fmt.Println(RenderSeparatorAdaptive())
	fmt.Printf("%s %s\n", RenderLabel("Server:"), ValueStyle.Render(sess.ServerURL))
	fmt.Printf("%s %s\n", RenderLabel("Started:"), ValueStyle.Render(sess.StartedAt.Format(time.RFC3339)))
	if !sess.EndedAt.IsZero() {
		fmt.Printf("%s %s\n", RenderLabel("Ended:"), ValueStyle.Render(sess.EndedAt.Format(time.RFC3339)))
		fmt.Printf("%s %s\n", RenderLabel("Duration:"),
			ValueStyle.Render(formatDurationShort(sess.EndedAt.Sub(sess.StartedAt))))
	}
	fmt.Printf("%s %s\n", RenderLabel("Events:"), ValueStyle.Render(fmt.Sprintf("%d", len(sess.Events))))
	fmt.Printf("%s %s\n", RenderLabel("Snapshots:"), ValueStyle.Render(fmt.Sprintf("%d", len(sess.Snapshots))))

	if len(sess.Events) > 0 {
		fmt.Println()
		fmt.Println(SectionStyle.Render("Timeline"))
		for _, e := range sess.Events {
			line := e.Timestamp.Format("15:04:05.000") + "  " + e.Kind
			if e.TargetID != "" {
				line += "  " + e.TargetID
			}
			if e.Detail != "" {
				line += "  " + DimStyle.Render(e.Detail)
			}
			fmt.Println("  " + line)
		}
	}
	return nil
}

// handleSessionExport exports a session as JSON or Markdown.
func handleSessionExport(store *storage.SessionStore, parser *ArgParser, jsonMode bool) error {
	sess, err := resolveSession(store, parser.Positional(1))
	if err != nil {
		return HandleError(err, jsonMode)
	}

	format := strings.ToLower(parser.FlagOrDefault("format", "md"))
	var out []byte
	switch format {
	case "md", "markdown":
		out = []byte(sess.ExportMarkdown())
	case "json":
		out, err = sess.ExportJSON()
		if err != nil {
			return HandleError(WrapError(err, "failed to export session"), jsonMode)
		}
	default:
		return HandleError(ErrUnsupportedFormat(format, []string{"json", "md"}), jsonMode)
	}

	if output := parser.Flag("output"); output != "" {
		path, err := ValidateOutputPath(output)
		if err != nil {
			return HandleError(err, jsonMode)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return HandleError(WrapError(err, "failed to write export"), jsonMode)
		}
		if !jsonMode {
			fmt.Printf("%s exported %s to %s\n", SuccessStyle.Render("[OK]"), sess.ID, path)
			return nil
		}
		return NewJSONResponse("sessions", map[string]string{
			"id":     sess.ID,
			"format": format,
			"path":   path,
		}).Print()
	}

	fmt.Print(string(out))
	return nil
}

// handleSessionDelete deletes one session. Requires --confirm.
func handleSessionDelete(store *storage.SessionStore, parser *ArgParser, jsonMode bool) error {
	ref := parser.Positional(1)
	if ref == "" {
		return HandleError(ErrMissingArgument("session",
			"graphwatch sessions delete <id> --confirm"), jsonMode)
	}
	if !parser.BoolFlag("confirm") {
		return HandleError(NewValidationError("confirm", "",
			"deletion requires the --confirm flag"), jsonMode)
	}

	sess, err := resolveSession(store, ref)
	if err != nil {
		return HandleError(err, jsonMode)
	}
	if err := store.Delete(sess.ID); err != nil {
		return HandleError(WrapError(err, "failed to delete session"), jsonMode)
	}

	if jsonMode {
		return NewJSONResponse("sessions", map[string]string{"deleted": sess.ID}).Print()
	}
	fmt.Printf("%s deleted %s\n", SuccessStyle.Render("[OK]"), sess.ID)
	return nil
}

// handleSessionClear deletes all sessions. Requires --confirm.
func handleSessionClear(store *storage.SessionStore, parser *ArgParser, jsonMode bool) error {
	if !parser.BoolFlag("confirm") {
		return HandleError(NewValidationError("confirm", "",
			"clearing all sessions requires the --confirm flag"), jsonMode)
	}

	metas, err := store.List()
	if err != nil {
		return HandleError(WrapError(err, "failed to list sessions"), jsonMode)
	}
	if err := store.Clear(); err != nil {
		return HandleError(WrapError(err, "failed to clear sessions"), jsonMode)
	}

	if jsonMode {
		return NewJSONResponse("sessions", map[string]int{"deleted": len(metas)}).Print()
	}
	fmt.Printf("%s deleted %d session(s)\n", SuccessStyle.Render("[OK]"), len(metas))
	return nil
}
