/*
 * Copyright (c) 2024, ICRAR. All rights reserved.
 */
package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	identity  string
	client    = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voscli: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voscli",
	Short: "Administration CLI for a vospaced server",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "vospaced base URL")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", os.Getenv("VOSPACE_IDENTITY"), "caller identity presented to the server")

	rootCmd.AddCommand(nodeCmd, transferCmd)
	nodeCmd.AddCommand(nodeGetCmd, nodeCreateCmd, nodeDeleteCmd)
	transferCmd.AddCommand(transferSubmitCmd, transferWatchCmd)
}

func newRequest(method, path string, body []byte) (*http.Request, error) {
	var r *http.Request
	var err error
	if body != nil {
		r, err = http.NewRequest(method, serverURL+path, bytes.NewReader(body))
	} else {
		r, err = http.NewRequest(method, serverURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	if identity != "" {
		r.Header.Set("X-Vospace-Identity", identity)
	}
	r.Header.Set("Content-Type", "application/xml")
	return r, nil
}
