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
package apperrors

import (
	"errors"
	"fmt"
)

// SchemaError reports a missing index or field, or an aggregation request
// the search engine rejected as malformed. It is never retried.
type SchemaError struct {
	Index string
	Field string
	Msg   string
	Err   error
}

// TransportError reports a network, timeout, auth or server-side failure
// while talking to one of the external services.
type TransportError struct {
	Service    string // "elasticsearch" or "llm"
	StatusCode int    // HTTP status code if known
	Msg        string
	Err        error
}

// GenerationFormatError reports a text-generation response that does not
// contain a usable JSON object.
type GenerationFormatError struct {
	Msg string
	Raw string
	Err error
}

// ErrCancelled represents errors when an operation is cancelled
type ErrCancelled struct {
	Msg string
	Err error
}

func (e *SchemaError) Error() string {
	target := e.Index
	if e.Field != "" {
		target = fmt.Sprintf("%s.%s", e.Index, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("schema error [%s]: %s: %v", target, e.Msg, e.Err)
	}
	return fmt.Sprintf("schema error [%s]: %s", target, e.Msg)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Error() string {
	prefix := fmt.Sprintf("%s transport error", e.Service)
	if e.StatusCode > 0 {
		prefix = fmt.Sprintf("%s (HTTP %d)", prefix, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *GenerationFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation format error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("generation format error: %s", e.Msg)
}

func (e *GenerationFormatError) Unwrap() error {
	return e.Err
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("operation cancelled: %s: %v", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsGenerationFormatError reports whether err wraps a *GenerationFormatError.
func IsGenerationFormatError(err error) bool {
	var target *GenerationFormatError
	return errors.As(err, &target)
}
