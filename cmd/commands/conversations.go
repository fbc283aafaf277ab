package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
)

// NewConversationsCommand returns the conversations subcommand group.
func NewConversationsCommand() *cli.Command {
	gatewayFlag := &cli.StringFlag{
		Name:  "gateway",
		Usage: "Gateway base URL",
		Value: "http://127.0.0.1:18700",
	}

	return &cli.Command{
		Name:    "conversations",
		Aliases: []string{"conv"},
		Usage:   "Manage conversations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List conversations",
				Flags:  []cli.Flag{gatewayFlag},
				Action: runConversationsList,
			},
			{
				Name:      "show",
				Usage:     "Print a conversation's messages",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{gatewayFlag},
				Action:    runConversationsShow,
			},
			{
				Name:      "close",
				Usage:     "Close a conversation",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{gatewayFlag},
				Action:    runConversationsClose,
			},
		},
	}
}

func runConversationsList(ctx context.Context, cmd *cli.Command) error {
	var list []struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Status       string    `json:"status"`
		MessageCount int       `json:"message_count"`
		UpdatedAt    time.Time `json:"updated_at"`
	}
	if err := getJSON(ctx, cmd.String("gateway")+"/api/conversations", &list); err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	for _, c := range list {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %-8s %3d msgs  %s  %s\n",
			c.ID, c.Status, c.MessageCount, c.UpdatedAt.Format("2006-01-02 15:04"), title)
	}
	return nil
}

func runConversationsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: roam conversations show <id>")
	}

	var msgs []struct {
		Role    string    `json:"role"`
		Content string    `json:"content"`
		Ts      time.Time `json:"ts"`
	}
	if err := getJSON(ctx, cmd.String("gateway")+"/api/conversations/"+id+"/messages", &msgs); err != nil {
		return err
	}

	for _, m := range msgs {
		fmt.Printf("[%s] %s:\n%s\n\n", m.Ts.Format("15:04:05"), m.Role, m.Content)
	}
	return nil
}

func runConversationsClose(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: roam conversations close <id>")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		cmd.String("gateway")+"/api/conversations/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	fmt.Printf("Closed %s.\n", id)
	return nil
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
