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
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/nlquery"
)

var askCmd = &cobra.Command{
	Use:     "ask [question...]",
	Short:   "Translate natural language questions into Elasticsearch SQL and run them",
	Example: `./es_metadata_enricher ask --index employee_data "How many active employees are in Finance & Accounting?"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	index := cmd.Flag("index").Value.String()
	promptFile := cmd.Flag("prompt-file").Value.String()
	summarize, _ := cmd.Flags().GetBool("summarize")
	fetchSize, _ := cmd.Flags().GetInt("fetch-size")

	store, closeStore, err := openStore(ctx, "")
	if err != nil {
		return err
	}
	defer closeStore()
	dictionary, err := store.Load(ctx)
	if err != nil {
		return err
	}

	searchClient, err := newSearchClient()
	if err != nil {
		return err
	}
	defer searchClient.Close()

	llmClient, err := newLLMClient(ctx)
	if err != nil {
		return err
	}
	defer llmClient.Close()

	translator, err := nlquery.NewTranslator(searchClient, llmClient, dictionary, nlquery.Options{
		IndexName:  index,
		PromptFile: promptFile,
		FetchSize:  fetchSize,
		Summarize:  summarize,
	}, logger)
	if err != nil {
		return err
	}

	failed := 0
	for i, question := range args {
		fmt.Fprintf(out, "\n------------------------------------------------------------\n")
		fmt.Fprintf(out, "Question %d: %s\n", i+1, question)

		answer, err := translator.Ask(ctx, question)
		if answer != nil && answer.Query != "" {
			fmt.Fprintf(out, "\nGenerated SQL Query:\n%s\n\n", answer.Query)
		}
		if err != nil {
			failed++
			logger.Error("Question failed", zap.String("question", question), zap.Error(err))
			continue
		}
		if answer.Query == "" {
			fmt.Fprintln(out, "No query generated or query is empty.")
			continue
		}
		fmt.Fprint(out, nlquery.FormatTable(answer.Result))
		if answer.Summary != "" {
			fmt.Fprintf(out, "\nAnswer:\n%s\n", answer.Summary)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d question(s) failed", failed, len(args))
	}
	return nil
}

func init() {
	askCmd.Flags().String("index", "", "Index the questions are asked against - MANDATORY")
	askCmd.Flags().String("prompt-file", "", "Go template file replacing the built-in prompt; must define \"system\" and \"user\"")
	askCmd.Flags().Bool("summarize", false, "Ask the LLM to answer the question from the query results")
	askCmd.Flags().Int("fetch-size", 0, "Maximum number of rows fetched per query (default 10000)")
	_ = askCmd.MarkFlagRequired("index")
}
