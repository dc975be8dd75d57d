// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	var (
		addr    string
		out     string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the session queues of a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			body, err := fetchDump(ctx, addr, asJSON)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return writeAtomic(out, body)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8089", "daemon API base URL")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the dump to this file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "fetch the structured snapshot")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchDump(ctx context.Context, addr string, asJSON bool) ([]byte, error) {
	url := strings.TrimRight(addr, "/") + "/debug/sessions"
	if asJSON {
		url += "?format=json"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dump: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch dump: unexpected status %s", resp.Status)
	}
	return body, nil
}

// writeAtomic replaces path with data; readers never see a partial dump.
func writeAtomic(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending dump file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace dump file: %w", err)
	}
	return nil
}
