/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/utils"
)

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Print a stored metadata dictionary",
	Example: `./es_metadata_enricher show -o ./es_full_metadata.json --indices "employee_data[GenderCode]" --format json`,
	RunE:    runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	indexFilters, err := utils.ParseIndicesFlag(cmd.Flag("indices").Value.String())
	if err != nil {
		return err
	}
	format := cmd.Flag("format").Value.String()
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported output format: %s (only text, json are supported)", format)
	}

	store, closeStore, err := openStore(ctx, "")
	if err != nil {
		return err
	}
	defer closeStore()

	entries, err := store.Load(ctx)
	if err != nil {
		return err
	}
	entries = catalog.FilterByIndex(entries, indexFilters)
	catalog.Sort(entries)

	out := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(entries, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode metadata dictionary: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, catalog.FormatAsText(entries))
	return nil
}

func init() {
	showCmd.Flags().String("indices", "", "Comma-separated list of indices and fields to show (e.g., 'index1[field1],index2')")
	showCmd.Flags().String("format", "text", "Output format: text or json")
}
