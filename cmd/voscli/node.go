package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect and manage VOSpace nodes",
}

var (
	nodeDetail string
	nodeLimit  int
)

var nodeGetCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Read a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := fmt.Sprintf("?detail=%s", nodeDetail)
		if nodeLimit > 0 {
			q += fmt.Sprintf("&limit=%d", nodeLimit)
		}
		req, err := newRequest(http.MethodGet, "/vospace/nodes/"+args[0]+q, nil)
		if err != nil {
			return err
		}
		return doAndPrint(req)
	},
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create PATH XML_FILE",
	Short: "Create a node from an XML document on disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readFile(args[1])
		if err != nil {
			return err
		}
		req, err := newRequest(http.MethodPut, "/vospace/nodes/"+args[0], body)
		if err != nil {
			return err
		}
		return doAndPrint(req)
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete PATH",
	Short: "Delete a node subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := newRequest(http.MethodDelete, "/vospace/nodes/"+args[0], nil)
		if err != nil {
			return err
		}
		return doAndPrint(req)
	},
}

func init() {
	nodeGetCmd.Flags().StringVar(&nodeDetail, "detail", "max", "min|max|properties")
	nodeGetCmd.Flags().IntVar(&nodeLimit, "limit", 0, "cap the number of children returned")
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func doAndPrint(req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
