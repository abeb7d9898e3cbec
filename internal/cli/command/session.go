// Package command provides CLI command definitions for drawhub-cli.
package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/oxleyk/drawhub/internal/cli/connection"
	"github.com/oxleyk/drawhub/internal/cli/output"
)

// sessionStatus mirrors the status API's session snapshot.
type sessionStatus struct {
	ID                 string `json:"id"`
	StartedAt          string `json:"started_at"`
	Epoch              int64  `json:"epoch"`
	FirstIndex         int64  `json:"first_index"`
	LastIndex          int64  `json:"last_index"`
	SizeBytes          int64  `json:"size_bytes"`
	SizeLimit          int64  `json:"size_limit"`
	AutoResetThreshold int64  `json:"auto_reset_threshold"`
	InviteCount        int    `json:"invite_count"`
	BanCount           int    `json:"ban_count"`
}

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Manage drawing sessions",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List live sessions",
				Action: sessionList,
			},
			{
				Name:      "get",
				Usage:     "Get session details",
				ArgsUsage: "SESSION_ID",
				Action:    sessionGet,
			},
			{
				Name:  "open",
				Usage: "Open a new session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Reopen a persisted session by ID instead of generating one",
					},
				},
				Action: sessionOpen,
			},
			{
				Name:      "close",
				Usage:     "Close a live session",
				ArgsUsage: "SESSION_ID",
				Action:    sessionClose,
			},
			{
				Name:      "invites",
				Usage:     "List a session's invites",
				ArgsUsage: "SESSION_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Include invite secrets and client keys",
					},
				},
				Action: sessionInvites,
			},
			{
				Name:      "bans",
				Usage:     "List a session's ban entries",
				ArgsUsage: "SESSION_ID",
				Action:    sessionBans,
			},
			{
				Name:      "ban",
				Usage:     "Ban a client from a session",
				ArgsUsage: "SESSION_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "username",
						Usage: "Display name the client is banned under",
					},
					&cli.StringFlag{
						Name:  "auth-id",
						Usage: "External auth identity to ban",
					},
					&cli.StringFlag{
						Name:  "client-key",
						Usage: "Connection fingerprint to ban",
					},
					&cli.StringFlag{
						Name:  "banned-by",
						Usage: "Operator placing the ban",
						Value: "cli",
					},
				},
				Action: sessionBan,
			},
			{
				Name:      "unban",
				Usage:     "Lift a ban entry",
				ArgsUsage: "SESSION_ID BAN_ID",
				Action:    sessionUnban,
			},
		},
	}
}

func sessionList(c *cli.Context) error {
	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/sessions")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Sessions []struct {
			ID          string `json:"id"`
			StartedAt   string `json:"started_at"`
			SizeBytes   int64  `json:"size_bytes"`
			LastIndex   int64  `json:"last_index"`
			InviteCount int    `json:"invite_count"`
			Resetting   bool   `json:"resetting"`
		} `json:"sessions"`
		Total int `json:"total"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	if output.Format(flags.Output) == output.FormatJSON {
		return (&output.JSONFormatter{}).Format(c.App.Writer, result)
	}

	table := &output.Table{
		Headers: []string{"SESSION ID", "STARTED", "SIZE", "LAST INDEX", "INVITES", "STATE"},
	}
	for _, s := range result.Sessions {
		state := "live"
		if s.Resetting {
			state = "resetting"
		}
		table.AddRow(s.ID, s.StartedAt,
			strconv.FormatInt(s.SizeBytes, 10),
			strconv.FormatInt(s.LastIndex, 10),
			strconv.Itoa(s.InviteCount), state)
	}
	if err := table.Render(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d sessions\n", result.Total)
	return nil
}

func sessionGet(c *cli.Context) error {
	sessionID := c.Args().First()
	if sessionID == "" {
		return fmt.Errorf("session ID required")
	}

	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/sessions/"+sessionID)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var st sessionStatus
	if err := connection.ParseResponse(resp, &st); err != nil {
		return err
	}

	return printSessionStatus(c, &st)
}

func sessionOpen(c *cli.Context) error {
	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var body any
	if id := c.String("id"); id != "" {
		body = map[string]string{"id": id}
	}

	resp, err := client.Post(ctx, "/api/v1/sessions", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var st sessionStatus
	if err := connection.ParseResponse(resp, &st); err != nil {
		return err
	}

	return printSessionStatus(c, &st)
}

func sessionClose(c *cli.Context) error {
	sessionID := c.Args().First()
	if sessionID == "" {
		return fmt.Errorf("session ID required")
	}

	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Delete(ctx, "/api/v1/sessions/"+sessionID)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Session %s closed\n", sessionID)
	return nil
}

func sessionInvites(c *cli.Context) error {
	sessionID := c.Args().First()
	if sessionID == "" {
		return fmt.Errorf("session ID required")
	}

	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path := "/api/v1/sessions/" + sessionID + "/invites"
	if c.Bool("full") {
		path += "?full=true"
	}

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		SessionID string           `json:"session_id"`
		Invites   []map[string]any `json:"invites"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	if output.Format(flags.Output) == output.FormatJSON {
		return (&output.JSONFormatter{}).Format(c.App.Writer, result)
	}

	table := &output.Table{
		Headers: []string{"SECRET", "CREATOR", "CREATED", "USES", "MAX USES"},
	}
	for _, iv := range result.Invites {
		uses := 0
		if u, ok := iv["uses"].([]any); ok {
			uses = len(u)
		}
		table.AddRow(
			stringField(iv, "secret"),
			stringField(iv, "creator"),
			stringField(iv, "at"),
			strconv.Itoa(uses),
			numField(iv, "maxUses"),
		)
	}
	if err := table.Render(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d invites\n", len(result.Invites))
	return nil
}

func sessionBans(c *cli.Context) error {
	sessionID := c.Args().First()
	if sessionID == "" {
		return fmt.Errorf("session ID required")
	}

	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/api/v1/sessions/"+sessionID+"/bans")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		SessionID string `json:"session_id"`
		Bans      []struct {
			ID        int    `json:"id"`
			Username  string `json:"username"`
			AuthID    string `json:"auth_id"`
			ClientKey string `json:"client_key"`
			BannedBy  string `json:"banned_by"`
			At        string `json:"at"`
		} `json:"bans"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	if output.Format(flags.Output) == output.FormatJSON {
		return (&output.JSONFormatter{}).Format(c.App.Writer, result)
	}

	table := &output.Table{
		Headers: []string{"ID", "USERNAME", "AUTH ID", "CLIENT KEY", "BANNED BY", "AT"},
	}
	for _, b := range result.Bans {
		table.AddRow(strconv.Itoa(b.ID), b.Username, b.AuthID, b.ClientKey, b.BannedBy, b.At)
	}
	if err := table.Render(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d bans\n", len(result.Bans))
	return nil
}

func sessionBan(c *cli.Context) error {
	sessionID := c.Args().First()
	if sessionID == "" {
		return fmt.Errorf("session ID required")
	}
	if c.String("auth-id") == "" && c.String("client-key") == "" {
		return fmt.Errorf("--auth-id or --client-key required")
	}

	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]string{
		"username":   c.String("username"),
		"auth_id":    c.String("auth-id"),
		"client_key": c.String("client-key"),
		"banned_by":  c.String("banned-by"),
	}
	resp, err := client.Post(ctx, "/api/v1/sessions/"+sessionID+"/bans", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var entry struct {
		ID int `json:"id"`
	}
	if err := connection.ParseResponse(resp, &entry); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Ban %d placed on session %s\n", entry.ID, sessionID)
	return nil
}

func sessionUnban(c *cli.Context) error {
	sessionID := c.Args().Get(0)
	banID := c.Args().Get(1)
	if sessionID == "" || banID == "" {
		return fmt.Errorf("session ID and ban ID required")
	}

	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Delete(ctx, "/api/v1/sessions/"+sessionID+"/bans/"+banID)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Ban %s lifted from session %s\n", banID, sessionID)
	return nil
}

func printSessionStatus(c *cli.Context, st *sessionStatus) error {
	flags := ParseGlobalFlags(c)
	if output.Format(flags.Output) == output.FormatJSON {
		return (&output.JSONFormatter{}).Format(c.App.Writer, st)
	}

	table := &output.Table{}
	table.AddRow("ID", st.ID)
	table.AddRow("Started", st.StartedAt)
	table.AddRow("Epoch", strconv.FormatInt(st.Epoch, 10))
	table.AddRow("First index", strconv.FormatInt(st.FirstIndex, 10))
	table.AddRow("Last index", strconv.FormatInt(st.LastIndex, 10))
	table.AddRow("Size", strconv.FormatInt(st.SizeBytes, 10))
	table.AddRow("Size limit", strconv.FormatInt(st.SizeLimit, 10))
	table.AddRow("Auto-reset at", strconv.FormatInt(st.AutoResetThreshold, 10))
	table.AddRow("Invites", strconv.Itoa(st.InviteCount))
	table.AddRow("Bans", strconv.Itoa(st.BanCount))
	return table.Render(c.App.Writer)
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func numField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	default:
		return "0"
	}
}
