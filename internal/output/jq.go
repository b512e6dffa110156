package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// CompileJQ parses and compiles a jq filter so bad expressions fail
// before any request is made.
func CompileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("invalid --jq expression: %v", err), "See https://jqlang.org/manual/")
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("invalid --jq expression: %v", err), "See https://jqlang.org/manual/")
	}
	return code, nil
}

// RunJQ evaluates expr against v and returns every emitted value.
// v is converted to plain JSON types first.
func RunJQ(ctx context.Context, expr string, v any) ([]any, error) {
	code, err := CompileJQ(expr)
	if err != nil {
		return nil, err
	}

	input, err := toJSONValue(v)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return results, &Error{Code: CodeUsage, Message: fmt.Sprintf("jq: %v", err), Cause: err}
		}
		results = append(results, out)
	}
	return results, nil
}

func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding output for jq: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding output for jq: %w", err)
	}
	return out, nil
}

// writeJQ prints each filter result: strings raw, everything else as
// indented JSON, like `jq -r`.
func (w *Writer) writeJQ(v any) error {
	results, err := RunJQ(context.Background(), w.opts.JQ, v)
	if err != nil {
		return err
	}
	for _, r := range results {
		if s, ok := r.(string); ok {
			if _, err := fmt.Fprintln(w.opts.Writer, s); err != nil {
				return err
			}
			continue
		}
		if err := w.writeJSON(r); err != nil {
			return err
		}
	}
	return nil
}
