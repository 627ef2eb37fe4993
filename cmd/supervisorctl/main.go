// Command supervisorctl sends one lifecycle request to a running
// supervisord and prints the response.
//
// Usage:
//
//	supervisorctl [flags] ping
//	supervisorctl [flags] status
//	supervisorctl [flags] shutdown
//	supervisorctl [flags] restart-service <name>
//	supervisorctl [flags] reload-config
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	supervise "github.com/context-cleaner/supervise-go"
)

func main() {
	endpoint := flag.String("endpoint", "", "supervisor endpoint (default: platform socket path)")
	token := flag.String("token", "", "auth token (default: CONTEXT_CLEANER_SUPERVISOR_TOKEN)")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	stream := flag.Bool("stream", false, "stream shutdown progress (shutdown only)")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Args(), *endpoint, *token, *timeout, *stream); err != nil {
		fmt.Fprintln(os.Stderr, "supervisorctl:", err)
		os.Exit(1)
	}
}

func run(args []string, endpoint, token string, timeout time.Duration, stream bool) error {
	req, err := buildRequest(args, stream)
	if err != nil {
		return err
	}

	opts := []supervise.Option{supervise.WithTimeout(timeout)}
	if endpoint != "" {
		opts = append(opts, supervise.WithEndpoint(endpoint))
	}
	if token != "" {
		opts = append(opts, supervise.WithAuthToken(token))
	}

	ctx := context.Background()

	return supervise.WithConnection(ctx, func(c *supervise.Client) error {
		if req.Streaming {
			return sendStreaming(ctx, c, req)
		}

		resp, err := c.Send(ctx, req)
		if err != nil {
			return err
		}

		return printResponse(resp)
	}, opts...)
}

func buildRequest(args []string, stream bool) (*supervise.Request, error) {
	action, err := parseCommand(args[0])
	if err != nil {
		return nil, err
	}

	req := supervise.NewRequest(action)

	switch action {
	case supervise.ActionRestartService:
		if len(args) < 2 {
			return nil, fmt.Errorf("restart-service requires a service name")
		}
		req.Options = map[string]any{"service": args[1]}
	case supervise.ActionShutdown:
		req.Streaming = stream
	}

	return req, nil
}

func parseCommand(name string) (supervise.Action, error) {
	switch name {
	case "ping":
		return supervise.ActionPing, nil
	case "status":
		return supervise.ActionStatus, nil
	case "shutdown":
		return supervise.ActionShutdown, nil
	case "restart-service":
		return supervise.ActionRestartService, nil
	case "reload-config":
		return supervise.ActionReloadConfig, nil
	default:
		return "", fmt.Errorf("unknown command %q", name)
	}
}

func sendStreaming(ctx context.Context, c *supervise.Client, req *supervise.Request) error {
	resp, chunks, err := c.SendStreaming(ctx, req)
	if err != nil {
		return err
	}

	if err := printResponse(resp); err != nil {
		return err
	}

	for chunk, err := range chunks {
		if err != nil {
			return err
		}

		fmt.Println(string(chunk.Payload))

		if chunk.FinalChunk {
			break
		}
	}

	return nil
}

func printResponse(resp *supervise.Response) error {
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	if resp.Status == supervise.StatusError {
		code := supervise.CodeInternal
		if resp.Error != nil {
			code = resp.Error.Code
		}

		return fmt.Errorf("request failed: %s", code)
	}

	return nil
}
