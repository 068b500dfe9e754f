package session

import (
	"encoding/json"
	"fmt"

	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/snapshot"
)

// RecoverResponses reads the answers left in the local snapshot for
// attemptID without contacting the service. It reports false when no
// snapshot exists, which is the normal state after a successful submit.
func RecoverResponses(store snapshot.Store, attemptID string) (model.Responses, bool, error) {
	key := snapshot.Key(attemptID)
	raw, ok, err := store.Get(key)
	if err != nil {
		return nil, false, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	var out model.Responses
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, &StorageError{Op: "decode", Key: key, Err: fmt.Errorf("failed to decode snapshot: %w", err)}
	}
	if out == nil {
		out = model.Responses{}
	}
	return out, true, nil
}
