package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ark-network/coinjoin/internal/config"
	"github.com/urfave/cli/v2"
)

// flags
var (
	urlFlag = &cli.StringFlag{
		Name:  "url",
		Usage: "the url of a running coordinator",
		Value: fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	}
)

// commands
var (
	poolsCmd = &cli.Command{
		Name:   "pools",
		Usage:  "Print the configured pools",
		Action: poolsAction,
	}
	statusCmd = &cli.Command{
		Name:   "status",
		Usage:  "Get the status of the pools of a running coordinator",
		Action: statusAction,
		Flags:  []cli.Flag{urlFlag},
	}
	versionCmd = &cli.Command{
		Name:  "version",
		Usage: "Print version info",
		Action: func(*cli.Context) error {
			fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
			return nil
		},
	}
)

func poolsAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	for _, pool := range cfg.Pools {
		if err := pool.Validate(); err != nil {
			return err
		}
	}
	return printJSON(cfg.Pools)
}

func statusAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/pools", ctx.String("url"))
	pools, err := get[[]json.RawMessage](url, "pools")
	if err != nil {
		return err
	}
	return printJSON(pools)
}

func get[T any](url, key string) (result T, err error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return
	}
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("failed to get: %s", string(buf))
		return
	}

	res := make(map[string]T)
	if err = json.Unmarshal(buf, &res); err != nil {
		return
	}

	result = res[key]
	return
}

func printJSON(v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}
