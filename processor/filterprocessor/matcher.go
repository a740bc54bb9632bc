// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package filterprocessor // import "github.com/open-telemetry/opentelemetry-lambda/extension/processor/filterprocessor"

import (
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"go.opentelemetry.io/collector/pdata/plog"
)

// logMatcher evaluates a boolean expression against log records.
type logMatcher struct {
	program *vm.Program
}

// logEnv is what an expression can refer to, for example
// `SeverityNumber < 9 && HasAttribute("faas.coldstart")` or
// `Body matches "^START RequestId"`.
type logEnv struct {
	Body           string
	SeverityText   string
	SeverityNumber int
	HasAttribute   func(key string) bool
	Attribute      func(key string) string
}

func newLogMatcher(expression string) (*logMatcher, error) {
	program, err := expr.Compile(expression, expr.Env(logEnv{}), expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &logMatcher{program: program}, nil
}

func (m *logMatcher) matchLog(lr plog.LogRecord) (bool, error) {
	attrs := lr.Attributes()
	result, err := expr.Run(m.program, logEnv{
		Body:           lr.Body().AsString(),
		SeverityText:   lr.SeverityText(),
		SeverityNumber: int(lr.SeverityNumber()),
		HasAttribute: func(key string) bool {
			_, ok := attrs.Get(key)
			return ok
		},
		Attribute: func(key string) string {
			v, ok := attrs.Get(key)
			if !ok {
				return ""
			}
			return v.AsString()
		},
	})
	if err != nil {
		return false, err
	}
	matched, _ := result.(bool)
	return matched, nil
}
