package bitrix

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

var _ crm.Transport = (*Client)(nil)

type batchResponse struct {
	apiError
	Result struct {
		Result      any `json:"result"`
		ResultError any `json:"result_error"`
	} `json:"result"`
}

type methodResponse struct {
	apiError
	Result any `json:"result"`
	Next   int `json:"next"`
	Total  int `json:"total"`
}

// ExecuteBatch sends calls through batch.json. Larger sets are split into chunks of
// MaxBatchCalls; placeholders into earlier chunks are resolved before sending.
func (c *Client) ExecuteBatch(ctx context.Context, tenant string, calls []crm.Call) (crm.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "bitrix.Client.ExecuteBatch")
	defer span.End()

	out := crm.BatchResult{Result: map[string]any{}, Errors: map[string]any{}}
	if len(calls) == 0 {
		return out, nil
	}

	auth, err := c.session(ctx, tenant)
	if err != nil {
		return out, tracing.RecordError(span, err)
	}

	for start := 0; start < len(calls); start += MaxBatchCalls {
		chunk := calls[start:min(start+MaxBatchCalls, len(calls))]

		form := url.Values{}
		form.Set("halt", "0")
		for _, call := range chunk {
			params, _ := resolveRefs(call.Params, out.Result).(map[string]any)
			cmd := call.Method
			if query := EncodeQuery(params); query != "" {
				cmd += "?" + query
			}
			form.Set("cmd["+call.ID+"]", cmd)
		}

		var resp batchResponse
		status, err := c.post(ctx, auth, "batch", form.Encode(), &resp)
		if err != nil {
			return out, tracing.RecordError(span, err)
		}
		if resp.Error != "" || isServerError(status) {
			return out, tracing.RecordError(span, fmt.Errorf("batch returned status %d: %s", status, resp.apiError))
		}

		for id, value := range asMap(resp.Result.Result) {
			out.Result[id] = value
		}
		for id, value := range asMap(resp.Result.ResultError) {
			out.Errors[id] = value
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"auth_id": tenant,
		"calls":   len(calls),
		"errors":  len(out.Errors),
	}).Debug("Executed CRM batch")
	return out, nil
}

// ExecuteSingle calls one method. Method level errors are returned in Result.Error.
func (c *Client) ExecuteSingle(ctx context.Context, tenant string, call crm.Call) (crm.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "bitrix.Client.ExecuteSingle")
	defer span.End()

	auth, err := c.session(ctx, tenant)
	if err != nil {
		return crm.Result{}, tracing.RecordError(span, err)
	}

	var resp methodResponse
	status, err := c.post(ctx, auth, call.Method, EncodeQuery(call.Params), &resp)
	if err != nil {
		return crm.Result{}, tracing.RecordError(span, err)
	}
	if isServerError(status) {
		return crm.Result{}, tracing.RecordError(span, fmt.Errorf("%s returned status %d: %s", call.Method, status, resp.apiError))
	}

	result := crm.Result{Result: resp.Result}
	if resp.Error != "" {
		result.Error = map[string]any{"error": resp.Error, "error_description": resp.Description}
	}
	return result, nil
}

// ListCall pages through a list method and returns every item.
func (c *Client) ListCall(ctx context.Context, tenant string, call crm.Call) ([]any, error) {
	ctx, span := tracing.StartSpan(ctx, "bitrix.Client.ListCall")
	defer span.End()

	auth, err := c.session(ctx, tenant)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	params := make(map[string]any, len(call.Params)+1)
	for k, v := range call.Params {
		params[k] = v
	}

	items := []any{}
	for page := 0; page < maxListPages; page++ {
		var resp methodResponse
		status, err := c.post(ctx, auth, call.Method, EncodeQuery(params), &resp)
		if err != nil {
			return nil, tracing.RecordError(span, err)
		}
		if resp.Error != "" || isServerError(status) {
			return nil, tracing.RecordError(span, fmt.Errorf("%s returned status %d: %s", call.Method, status, resp.apiError))
		}

		switch chunk := crm.Unwrap(resp.Result).(type) {
		case []any:
			items = append(items, chunk...)
		case map[string]any:
			for _, key := range sortedKeys(chunk) {
				items = append(items, chunk[key])
			}
		}

		if resp.Next == 0 {
			return items, nil
		}
		params["start"] = strconv.Itoa(resp.Next)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"method": call.Method,
		"items":  len(items),
	}).Warn("List truncated at page limit")
	return items, nil
}

// sortedKeys orders the keys of an id-keyed page numerically, other keys after them by name.
func sortedKeys(page map[string]any) []string {
	keys := make([]string, 0, len(page))
	for k := range page {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
