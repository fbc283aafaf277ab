package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// NewPrefsCommand returns the prefs subcommand group.
func NewPrefsCommand() *cli.Command {
	gatewayFlag := &cli.StringFlag{
		Name:  "gateway",
		Usage: "Gateway base URL",
		Value: "http://127.0.0.1:18700",
	}
	convFlag := &cli.StringFlag{
		Name:     "conversation",
		Aliases:  []string{"n"},
		Usage:    "Conversation ID",
		Required: true,
	}

	return &cli.Command{
		Name:  "prefs",
		Usage: "Inspect and update traveler preferences",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Merge preference updates into a conversation",
				ArgsUsage: "<key=value>...",
				Flags: []cli.Flag{
					gatewayFlag, convFlag,
					&cli.StringFlag{
						Name:  "notes",
						Usage: "Replace the free-text notes",
					},
				},
				Action: runPrefsSet,
			},
			{
				Name:   "show",
				Usage:  "Print the stored preferences as YAML",
				Flags:  []cli.Flag{gatewayFlag, convFlag},
				Action: runPrefsShow,
			},
			{
				Name:      "import",
				Usage:     "Merge preferences from a YAML file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{gatewayFlag, convFlag},
				Action:    runPrefsImport,
			},
		},
	}
}

func runPrefsSet(ctx context.Context, cmd *cli.Command) error {
	delta := make(map[string]any)
	for _, arg := range cmd.Args().Slice() {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		// YAML scalar parsing gives typed values: numbers, bools, lists.
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		delta[key] = value
	}

	notes := cmd.String("notes")
	if len(delta) == 0 && notes == "" {
		return fmt.Errorf("nothing to update: pass key=value pairs or --notes")
	}

	ack, err := putPreferences(ctx, cmd.String("gateway"), cmd.String("conversation"), delta, notes)
	if err != nil {
		return err
	}
	fmt.Println(ack)
	return nil
}

func runPrefsShow(ctx context.Context, cmd *cli.Command) error {
	base := cmd.String("gateway")
	convID := cmd.String("conversation")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		base+"/api/conversations/"+convID+"/preferences", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var prof struct {
		Preferences map[string]any `json:"preferences"`
		Notes       string         `json:"notes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}

	out, err := yaml.Marshal(prof)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	os.Stdout.Write(out)
	return nil
}

func runPrefsImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: roam prefs import <file>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var doc struct {
		Preferences map[string]any `yaml:"preferences"`
		Notes       string         `yaml:"notes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Preferences) == 0 && doc.Notes == "" {
		return fmt.Errorf("%s contains no preferences", path)
	}

	ack, err := putPreferences(ctx, cmd.String("gateway"), cmd.String("conversation"), doc.Preferences, doc.Notes)
	if err != nil {
		return err
	}
	fmt.Println(ack)
	return nil
}

func putPreferences(ctx context.Context, base, convID string, delta map[string]any, notes string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"preferences": delta,
		"notes":       notes,
	})
	if err != nil {
		return "", fmt.Errorf("marshal preferences: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		base+"/api/conversations/"+convID+"/preferences", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("update preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ack struct {
		UpdatedKeys  []string `json:"updated_keys"`
		NotesChanged bool     `json:"notes_changed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("decode ack: %w", err)
	}

	switch {
	case len(ack.UpdatedKeys) == 0 && !ack.NotesChanged:
		return "Nothing changed.", nil
	case len(ack.UpdatedKeys) == 0:
		return "Updated notes.", nil
	case ack.NotesChanged:
		return fmt.Sprintf("Updated %s and notes.", strings.Join(ack.UpdatedKeys, ", ")), nil
	default:
		return fmt.Sprintf("Updated %s.", strings.Join(ack.UpdatedKeys, ", ")), nil
	}
}
