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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/enricher"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/utils"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the metadata dictionary for Elasticsearch indices",
	Long: `Connects to Elasticsearch, samples the values of every mapped field, asks the
LLM for a description of each field and stores the resulting metadata
dictionary, replacing any previous one.`,
	Example: `./es_metadata_enricher generate --es-url https://localhost:9200 --es-username elastic --es-password changeme --indices "employee_data[GenderCode,Division],sales" --context ./glossary.txt -o ./es_full_metadata.json`,
	RunE:    runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	indexFilters, err := utils.ParseIndicesFlag(cmd.Flag("indices").Value.String())
	if err != nil {
		return err
	}
	additionalContext, err := utils.ReadContextFiles(cmd.Flag("context").Value.String())
	if err != nil {
		return fmt.Errorf("failed to read context files: %w", err)
	}
	failOnError, _ := cmd.Flags().GetBool("fail-on-error")
	skipVerify, _ := cmd.Flags().GetBool("skip-verify")

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

	enrichCfg := appConfig.Enrichment
	svc := enricher.NewService(searchClient, llmClient, enricher.Config{
		Threshold:         enrichCfg.Threshold,
		TermsSize:         enrichCfg.TermsSize,
		RareMaxDocCount:   enrichCfg.RareMaxDocCount,
		Workers:           enrichCfg.Workers,
		AdditionalContext: additionalContext,
	}, logger)

	if !skipVerify {
		if err := svc.VerifyConnections(ctx); err != nil {
			return err
		}
	}

	result, err := svc.GenerateDictionary(ctx, enricher.GenerateParams{IndexFilters: indexFilters})
	if err != nil {
		var cancelled *apperrors.ErrCancelled
		if errors.As(err, &cancelled) && result != nil {
			logger.Warn("Run cancelled, the metadata dictionary was not written",
				zap.String("run_id", result.RunID),
				zap.Int("entries", len(result.Entries)))
		}
		return fmt.Errorf("metadata dictionary generation failed: %w", err)
	}

	for _, f := range result.Failures {
		logger.Error("Field was not described",
			zap.String("run_id", result.RunID),
			zap.String("index", f.Index),
			zap.String("field", f.Field),
			zap.Error(f.Err))
	}

	store, closeStore, err := openStore(ctx, result.RunID)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Save(ctx, result.Entries); err != nil {
		return fmt.Errorf("failed to save metadata dictionary: %w", err)
	}

	logger.Info("Metadata dictionary written",
		zap.String("run_id", result.RunID),
		zap.String("sink", appConfig.Catalog.Sink),
		zap.Int("indices", len(result.Indices)),
		zap.Int("entries", len(result.Entries)),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("elapsed", result.Elapsed))

	if failOnError && result.HasFailures() {
		return fmt.Errorf("%d field(s) could not be described", len(result.Failures))
	}
	return nil
}

func init() {
	flags := generateCmd.Flags()
	flags.String("indices", "", "Comma-separated list of indices and fields to include (e.g., 'index1[field1,field2],index2'). Defaults to every non-system index.")
	flags.String("context", "", "Comma-separated list of context files to provide additional information for description generation.")
	flags.Int("threshold", 0, "Maximum number of sample values passed to the LLM per field (default 20)")
	flags.Int("terms-size", 0, "Bucket size for frequent and significant terms (defaults to the threshold)")
	flags.Int("rare-max-doc-count", 0, "Maximum document count of a rare term (default 5)")
	flags.Int("workers", 0, "Number of fields described concurrently (default 10)")
	flags.Bool("fail-on-error", false, "Exit with an error when any field could not be described")
	flags.Bool("skip-verify", false, "Skip the connection and API key checks before the run")

	for flag, key := range map[string]string{
		"threshold":          "enrichment.threshold",
		"terms-size":         "enrichment.terms_size",
		"rare-max-doc-count": "enrichment.rare_max_doc_count",
		"workers":            "enrichment.workers",
	} {
		flagBindings[flag] = key
	}
}
