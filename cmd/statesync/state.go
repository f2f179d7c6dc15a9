/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/client"
)

var (
	flagSig      string
	flagFile     string
	flagPrevSig  string
	flagUseH2C   bool
	errEmptyFile = errors.New("--file is required")
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Read or replace the shared state",
	}
}

func newStateGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := dialServer()
			if err != nil {
				return err
			}
			defer func() {
				_ = cli.Close()
			}()

			resp, err := cli.Get(context.Background(), types.Signature(flagSig))
			if err != nil {
				return err
			}

			return printState(cmd, viper.GetString("output"), resp)
		},
	}
}

func newStatePutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put",
		Short: "Replace the whole state with the clients and bookings of a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagFile == "" {
				return errEmptyFile
			}

			data, err := os.ReadFile(filepath.Clean(flagFile))
			if err != nil {
				return fmt.Errorf("read state file: %w", err)
			}

			req := &types.UpdateRequest{}
			if err := json.Unmarshal(data, req); err != nil {
				return fmt.Errorf("decode state file: %w", err)
			}
			if flagPrevSig != "" {
				req.PrevSig = types.Signature(flagPrevSig)
			}
			if err := req.Validate(); err != nil {
				return err
			}

			cli, err := dialServer()
			if err != nil {
				return err
			}
			defer func() {
				_ = cli.Close()
			}()

			resp, err := cli.Put(context.Background(), req)
			if err != nil {
				return err
			}

			cmd.Printf("%s\n", resp.Sig)
			return nil
		},
	}
}

func dialServer() (*client.Client, error) {
	var opts []client.Option
	if flagUseH2C {
		opts = append(opts, client.WithH2C())
	}
	return client.Dial(viper.GetString("rpcAddr"), opts...)
}

func printState(cmd *cobra.Command, output string, resp *types.SyncResponse) error {
	switch output {
	case "":
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateFooter = false
		tw.Style().Options.SeparateHeader = false
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{
			"SIGNATURE",
			"CLIENTS",
			"BOOKINGS",
		})
		if resp.Unchanged() {
			tw.AppendRow(table.Row{resp.Sig, "-", "-"})
		} else {
			tw.AppendRow(table.Row{
				resp.Sig,
				len(resp.Document.Clients),
				len(resp.Document.Bookings),
			})
		}
		cmd.Printf("%s\n", tw.Render())
	case "json":
		jsonOutput, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		cmd.Println(string(jsonOutput))
	case "yaml":
		// Records are raw JSON, so they are decoded before YAML encoding.
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		var decoded interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
		yamlOutput, err := yaml.Marshal(decoded)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		cmd.Println(string(yamlOutput))
	default:
		return fmt.Errorf("unknown output format: %s", output)
	}

	return nil
}

func init() {
	stateCmd := newStateCmd()
	stateCmd.PersistentFlags().BoolVar(
		&flagUseH2C,
		"h2c",
		false,
		"Use cleartext HTTP/2",
	)

	getCmd := newStateGetCmd()
	getCmd.Flags().StringVar(
		&flagSig,
		"sig",
		"",
		"Signature the caller already has; an unchanged state prints the signature only",
	)

	putCmd := newStatePutCmd()
	putCmd.Flags().StringVarP(
		&flagFile,
		"file",
		"f",
		"",
		`JSON file with "clients" and "bookings" arrays`,
	)
	putCmd.Flags().StringVar(
		&flagPrevSig,
		"prev-sig",
		"",
		"Signature the replacement is based on (advisory)",
	)

	stateCmd.AddCommand(getCmd)
	stateCmd.AddCommand(putCmd)
	rootCmd.AddCommand(stateCmd)
}
