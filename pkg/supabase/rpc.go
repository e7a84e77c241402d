package supabase

import (
	"context"
	"encoding/json"
	"fmt"
)

// RPC calls the stored procedure fn with named params (a struct or map that encodes to a JSON object).
// When out is non-nil the response is decoded into it; an empty or null response returns ErrEmptyResult.
// When out is nil the procedure is treated as void and any 2xx answer succeeds.
func (c *Client) RPC(ctx context.Context, fn string, params, out any) error {
	key, err := c.keyFor(c.rpcAuth())
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}

	status, body, err := c.post(ctx, c.restURL+"/rpc/"+fn, key, true, params)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}

	if !isSuccess(status) {
		return fmt.Errorf("rpc %s: %w", fn, newError(status, body))
	}

	if out == nil {
		return nil
	}

	if isEmptyPayload(body) {
		return fmt.Errorf("rpc %s: %w", fn, ErrEmptyResult)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("rpc %s: failed to unmarshal response: %w", fn, err)
	}

	return nil
}
