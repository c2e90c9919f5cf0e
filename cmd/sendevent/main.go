// Command sendevent submits a signed test delivery to a running triage
// instance. It produces the same body shape and headers the real webhook
// source sends, so the full pipeline can be exercised locally.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/triage/internal/domain/auth"
)

const defaultTimeout = 30 * time.Second

type options struct {
	url         string
	secret      string
	action      string
	title       string
	description string
	label       string
	deliveryID  string
	itemID      string
	skew        time.Duration
	timeout     time.Duration
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "sendevent",
		Short: "Send a signed test delivery to a triage instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(opts)
		},
	}

	root.Flags().StringVar(&opts.url, "url", "http://localhost:8080", "base URL of the service")
	root.Flags().StringVar(&opts.secret, "secret", os.Getenv("TRIAGE_WEBHOOK_SECRET"), "webhook signing secret")
	root.Flags().StringVar(&opts.action, "action", "create", "event action (create, update)")
	root.Flags().StringVar(&opts.title, "title", "Test issue from sendevent", "issue title")
	root.Flags().StringVar(&opts.description, "description", "", "issue description")
	root.Flags().StringVar(&opts.label, "label", "Bug", "first label on the issue (empty for none)")
	root.Flags().StringVar(&opts.deliveryID, "delivery-id", "", "delivery id (random when empty)")
	root.Flags().StringVar(&opts.itemID, "item-id", "", "item id (random when empty)")
	root.Flags().DurationVar(&opts.skew, "skew", 0, "offset applied to the delivery timestamp, e.g. -2m to test staleness")
	root.Flags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "HTTP request timeout")

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	if opts.secret == "" {
		return fmt.Errorf("a signing secret is required (--secret or TRIAGE_WEBHOOK_SECRET)")
	}
	if opts.deliveryID == "" {
		opts.deliveryID = uuid.NewString()
	}
	if opts.itemID == "" {
		opts.itemID = uuid.NewString()
	}

	body, err := buildBody(opts)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, opts.url+"/webhook", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("linear-delivery", opts.deliveryID)
	req.Header.Set("linear-event", "Issue")
	req.Header.Set(auth.SignatureHeader, auth.Sign([]byte(opts.secret), body))

	color.Cyan("POST %s/webhook", opts.url)
	fmt.Printf("  delivery: %s\n  item:     %s\n  label:    %q\n", opts.deliveryID, opts.itemID, opts.label)

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	printResult(resp.StatusCode, respBody)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	return nil
}

func buildBody(opts *options) ([]byte, error) {
	var labels []map[string]string
	if opts.label != "" {
		labels = append(labels, map[string]string{
			"id":   uuid.NewString(),
			"name": opts.label,
		})
	}

	payload := map[string]any{
		"action": opts.action,
		"type":   "Issue",
		"data": map[string]any{
			"id":          opts.itemID,
			"title":       opts.title,
			"description": opts.description,
			"labels":      map[string]any{"nodes": labels},
		},
		"webhookTimestamp": time.Now().Add(opts.skew).UnixMilli(),
	}
	return json.Marshal(payload)
}

func printResult(status int, body []byte) {
	var pretty bytes.Buffer
	out := string(body)
	if err := json.Indent(&pretty, body, "  ", "  "); err == nil {
		out = pretty.String()
	}

	switch {
	case status < http.StatusBadRequest:
		color.Green("%d %s", status, http.StatusText(status))
	case status < http.StatusInternalServerError:
		color.Yellow("%d %s", status, http.StatusText(status))
	default:
		color.Red("%d %s", status, http.StatusText(status))
	}
	fmt.Printf("  %s\n", out)
}
