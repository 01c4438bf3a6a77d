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
package nlquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/genai"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/search"
)

// summaryRowLimit caps the rows shown to the model when summarising.
const summaryRowLimit = 20

// Options configures a Translator.
type Options struct {
	// IndexName is the index questions are asked against. Dictionary
	// entries of other indices are left out of the prompt.
	IndexName string
	// PromptFile optionally replaces the built-in prompt. It must define
	// the "system" and "user" templates.
	PromptFile string
	FetchSize  int
	Summarize  bool
}

// PromptData is what the prompt templates are rendered with.
type PromptData struct {
	Mapping   string
	IndexName string
	Question  string
	Today     string
}

// Answer is the outcome of one question.
type Answer struct {
	Question string
	Query    string
	Result   *search.SQLResult
	Summary  string
}

// Translator turns questions into Elasticsearch SQL using the metadata
// dictionary as schema context.
type Translator struct {
	search  search.ESAdapter
	llm     genai.LLMClient
	prompt  *template.Template
	mapping string
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

// NewTranslator prepares the prompt for dictionary and opts.
func NewTranslator(searchClient search.ESAdapter, llm genai.LLMClient, dictionary []catalog.FieldMetadata, opts Options, logger *zap.Logger) (*Translator, error) {
	if opts.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	text := defaultPromptTemplate
	if opts.PromptFile != "" {
		data, err := os.ReadFile(opts.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file '%s': %w", opts.PromptFile, err)
		}
		text = string(data)
	}
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	for _, name := range []string{"system", "user"} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("prompt template must define %q", name)
		}
	}

	entries := catalog.FilterByIndex(dictionary, map[string][]string{opts.IndexName: nil})
	if len(entries) == 0 {
		return nil, fmt.Errorf("metadata dictionary has no entries for index %s", opts.IndexName)
	}
	mapping, err := json.MarshalIndent(entries, "", " ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata dictionary: %w", err)
	}

	if opts.FetchSize <= 0 {
		opts.FetchSize = search.DefaultFetchSize
	}

	return &Translator{
		search:  searchClient,
		llm:     llm,
		prompt:  tmpl,
		mapping: string(mapping),
		opts:    opts,
		now:     time.Now,
		logger:  logger.Named("nlquery"),
	}, nil
}

func (t *Translator) render(name string, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := t.prompt.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

// Generate returns the SQL query for question, or "" when the model did
// not produce a <sql_query> section.
func (t *Translator) Generate(ctx context.Context, question string) (string, error) {
	data := PromptData{
		Mapping:   t.mapping,
		IndexName: t.opts.IndexName,
		Question:  question,
		Today:     t.now().Format("2006-01-02"),
	}
	system, err := t.render("system", data)
	if err != nil {
		return "", err
	}
	user, err := t.render("user", data)
	if err != nil {
		return "", err
	}

	response, err := t.llm.GenerateText(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("generate SQL: %w", err)
	}
	query, ok := genai.ExtractTag(response, "sql_query")
	if !ok {
		t.logger.Warn("Response contained no <sql_query> section", zap.String("question", question))
	}
	return query, nil
}

// Ask generates the query for question and executes it. An empty query is
// not executed and yields an Answer without a Result.
func (t *Translator) Ask(ctx context.Context, question string) (*Answer, error) {
	query, err := t.Generate(ctx, question)
	if err != nil {
		return nil, err
	}
	answer := &Answer{Question: question, Query: query}
	if strings.TrimSpace(query) == "" {
		return answer, nil
	}

	t.logger.Debug("Executing generated query", zap.String("query", query))
	result, err := t.search.ExecuteSQL(ctx, query, t.opts.FetchSize)
	if err != nil {
		return answer, fmt.Errorf("execute generated query: %w", err)
	}
	answer.Result = result

	if t.opts.Summarize && result != nil && len(result.Rows) > 0 {
		summary, err := t.Summarize(ctx, question, result)
		if err != nil {
			return answer, err
		}
		answer.Summary = summary
	}
	return answer, nil
}

// Summarize asks the model to answer question from the first rows of
// result.
func (t *Translator) Summarize(ctx context.Context, question string, result *search.SQLResult) (string, error) {
	head := *result
	if len(head.Rows) > summaryRowLimit {
		head.Rows = head.Rows[:summaryRowLimit]
	}
	user := fmt.Sprintf(answerUserPrompt, question, FormatTable(&head))
	response, err := t.llm.GenerateText(ctx, answerSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("summarize results: %w", err)
	}
	if summary, ok := genai.ExtractTag(response, "answer"); ok {
		return summary, nil
	}
	return strings.TrimSpace(response), nil
}
