package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/helixml/jembed/client"
	"github.com/spf13/cobra"
)

func embedCmd() *cobra.Command {
	var (
		url     string
		token   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "embed TEXT",
		Short: "Embed text with a running server",
		Long: `Send TEXT to a running jembed server and print the JSON response.

The token defaults to EMBED_API_TOKEN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("EMBED_API_TOKEN")
			}

			c, err := client.New(url, client.WithToken(token), client.WithTimeout(timeout))
			if err != nil {
				return err
			}

			result, err := c.Embed(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default: $EMBED_API_TOKEN)")
	cmd.Flags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "Request timeout")

	return cmd
}
