package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Submit and watch asynchronous transfer jobs",
}

var transferSubmitCmd = &cobra.Command{
	Use:   "submit XML_FILE",
	Short: "Create an asynchronous transfer job from an XML document on disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readFile(args[0])
		if err != nil {
			return err
		}
		req, err := newRequest(http.MethodPost, "/vospace/transfers", body)
		if err != nil {
			return err
		}
		return doAndPrint(req)
	},
}

var transferWatchCmd = &cobra.Command{
	Use:   "watch JOB_ID",
	Short: "Poll a job's phase until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]
		for {
			req, err := newRequest(http.MethodGet, "/vospace/transfers/"+jobID+"/phase", nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return err
			}
			phase := string(body)
			fmt.Println(phase)
			switch phase {
			case "COMPLETED", "ABORTED", "ERROR":
				return nil
			}
			time.Sleep(2 * time.Second)
		}
	},
}
