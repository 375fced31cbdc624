package chat

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/MelonGO/gemini-chatbot/plugin/blob"
	"github.com/MelonGO/gemini-chatbot/store"
)

// Reaper removes the blob objects referenced by a chat's attachments
// when the chat is deleted.
type Reaper struct {
	blob blob.Store

	// allowedHost restricts deletion to attachment URLs under this exact
	// host. Empty means any host is eligible.
	allowedHost string
}

// NewReaper creates a reaper over the given blob store.
func NewReaper(b blob.Store, allowedHost string) *Reaper {
	return &Reaper{blob: b, allowedHost: allowedHost}
}

// Reap derives the storage keys referenced by the message sequence and
// issues one batch delete. Failures are logged as warnings, never
// escalated: an orphaned blob is preferred over blocking the delete.
func (r *Reaper) Reap(ctx context.Context, chatID string, messages []*store.Message) {
	keys := r.collectKeys(messages)
	if len(keys) == 0 {
		return
	}
	if err := r.blob.BatchDelete(ctx, keys); err != nil {
		slog.Warn("failed to delete chat attachments",
			"chat_id", chatID,
			"keys", len(keys),
			"error", err,
		)
	}
}

// collectKeys parses every file part's URL into a storage key,
// filtering by host and deduplicating. Malformed URLs are skipped
// silently since they cannot be resolved to a key.
func (r *Reaper) collectKeys(messages []*store.Message) []string {
	seen := make(map[string]struct{})
	keys := []string{}
	for _, m := range messages {
		for _, p := range m.Parts {
			if p.Type != store.PartTypeFile {
				continue
			}
			key, ok := r.keyFromURL(p.URL)
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

func (r *Reaper) keyFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	if r.allowedHost != "" && u.Host != r.allowedHost {
		return "", false
	}
	path, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", false
	}
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return "", false
	}
	return key, true
}
