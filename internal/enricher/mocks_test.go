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
package enricher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/search"
)

// mockLLM is a testify mock of genai.LLMClient. GenerateText accepts either
// a fixed string or a func(user string) string as its first return value.
type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	if fn, ok := args.Get(0).(func(string) string); ok {
		return fn(user), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *mockLLM) IsAPIKeyValid(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLLM) Close() error {
	return nil
}

// echoModel answers like a well-behaved model: it copies the identity
// fields and the sample list out of the prompt.
func echoModel(user string) string {
	value := func(label string) string {
		for _, line := range strings.Split(user, "\n") {
			if strings.HasPrefix(line, "- "+label+": ") {
				return strings.TrimPrefix(line, "- "+label+": ")
			}
		}
		return ""
	}
	field := value("Field Name")
	return fmt.Sprintf(`Here is the metadata:
{
  "field_name": %q,
  "index_name": %q,
  "data_type": %q,
  "natural_language_description": "Describes %s.",
  "sample_value": %q
}`, field, value("Index Name"), value("Data Type"), field, value("Sample Values"))
}

// fakeSearch is an in-memory search.ESAdapter. It records whether fields
// of two different indices were ever sampled at the same time.
type fakeSearch struct {
	mu        sync.Mutex
	indices   []string
	fields    map[string][]search.FieldDescriptor
	values    map[string][]string
	fieldErrs map[string]error
	sampleErr map[string]error
	panicOn   map[string]bool
	pingErrs  []error
	delay     time.Duration

	inFlight   map[string]int
	overlapped bool
	sampled    []string
	pings      int
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{
		fields:    make(map[string][]search.FieldDescriptor),
		values:    make(map[string][]string),
		fieldErrs: make(map[string]error),
		sampleErr: make(map[string]error),
		panicOn:   make(map[string]bool),
		inFlight:  make(map[string]int),
	}
}

func (f *fakeSearch) addIndex(index string, fields ...search.FieldDescriptor) {
	f.indices = append(f.indices, index)
	f.fields[index] = fields
}

func (f *fakeSearch) ListIndices(ctx context.Context) ([]string, error) {
	return f.indices, nil
}

func (f *fakeSearch) ListFields(ctx context.Context, index string) ([]search.FieldDescriptor, error) {
	if err := f.fieldErrs[index]; err != nil {
		return nil, err
	}
	return f.fields[index], nil
}

func (f *fakeSearch) SampleField(ctx context.Context, index, field, dataType string, opts search.SampleOptions) (*search.SampleBundle, error) {
	f.mu.Lock()
	for other, n := range f.inFlight {
		if other != index && n > 0 {
			f.overlapped = true
		}
	}
	f.inFlight[index]++
	f.sampled = append(f.sampled, index+"."+field)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight[index]--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	key := index + "." + field
	if f.panicOn[key] {
		panic("sampler crashed on " + key)
	}
	if err := f.sampleErr[key]; err != nil {
		return nil, err
	}
	return &search.SampleBundle{Frequent: f.values[key]}, nil
}

func (f *fakeSearch) ExecuteSQL(ctx context.Context, query string, fetchSize int) (*search.SQLResult, error) {
	return &search.SQLResult{}, nil
}

func (f *fakeSearch) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if len(f.pingErrs) > 0 {
		err := f.pingErrs[0]
		f.pingErrs = f.pingErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSearch) Close() error {
	return nil
}

// mockSearch is a testify mock of search.ESAdapter for single-call tests.
type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) ListIndices(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	indices, _ := args.Get(0).([]string)
	return indices, args.Error(1)
}

func (m *mockSearch) ListFields(ctx context.Context, index string) ([]search.FieldDescriptor, error) {
	args := m.Called(ctx, index)
	fields, _ := args.Get(0).([]search.FieldDescriptor)
	return fields, args.Error(1)
}

func (m *mockSearch) SampleField(ctx context.Context, index, field, dataType string, opts search.SampleOptions) (*search.SampleBundle, error) {
	args := m.Called(ctx, index, field, dataType, opts)
	bundle, _ := args.Get(0).(*search.SampleBundle)
	return bundle, args.Error(1)
}

func (m *mockSearch) ExecuteSQL(ctx context.Context, query string, fetchSize int) (*search.SQLResult, error) {
	args := m.Called(ctx, query, fetchSize)
	result, _ := args.Get(0).(*search.SQLResult)
	return result, args.Error(1)
}

func (m *mockSearch) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSearch) Close() error {
	return nil
}
