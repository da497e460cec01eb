package store

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"swashark/internal/model"
)

const cachePrefix = "swashark.cache."

// SessionCache keeps the last interaction per operation, keyed by
// "METHOD:path". Keys are not namespaced by API version: the same operation
// in two versions of a document shares one record.
//
// Every write path owns a subset of the record and merges it into what is
// already stored. Storage failures never reach the caller: a failed read is
// a miss and a failed write is logged and dropped.
type SessionCache struct {
	kv  KV
	log zerolog.Logger
}

func NewSessionCache(kv KV, log zerolog.Logger) *SessionCache {
	return &SessionCache{kv: kv, log: log}
}

// Get returns the record for key, or ok=false on a first visit.
func (c *SessionCache) Get(key string) (*model.CachedInteraction, bool) {
	raw, ok, err := c.kv.Get(cachePrefix + key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rec model.CachedInteraction
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache record corrupt, ignoring")
		return nil, false
	}
	return &rec, true
}

func (c *SessionCache) SaveParameters(key string, params map[string]string) {
	c.update(key, func(rec *model.CachedInteraction) {
		rec.Parameters = copyParams(params)
	})
}

func (c *SessionCache) SaveBody(key string, body *string, contentType string) {
	c.update(key, func(rec *model.CachedInteraction) {
		rec.RequestBody = body
		rec.ContentType = contentType
	})
}

func (c *SessionCache) SaveHeaders(key string, headers []model.Header) {
	c.update(key, func(rec *model.CachedInteraction) {
		rec.CustomHeaders = append([]model.Header{}, headers...)
	})
}

func (c *SessionCache) SaveResponse(key string, resp *model.CachedResponse) {
	c.update(key, func(rec *model.CachedInteraction) {
		rec.Response = resp
	})
}

// RecordExecution stores what an execution used and observed. Custom
// headers are left as they are. A nil resp keeps the previous response,
// so a failed attempt does not erase an earlier result.
func (c *SessionCache) RecordExecution(key string, params map[string]string, body *string, contentType string, resp *model.CachedResponse) {
	c.update(key, func(rec *model.CachedInteraction) {
		rec.Parameters = copyParams(params)
		rec.RequestBody = body
		rec.ContentType = contentType
		if resp != nil {
			rec.Response = resp
		}
	})
}

// Clear removes the records of every operation. Credentials and UI state
// are kept.
func (c *SessionCache) Clear() {
	keys, err := c.kv.Keys(cachePrefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache clear failed")
		return
	}
	for _, k := range keys {
		if err := c.kv.Remove(k); err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("cache clear failed")
		}
	}
}

func (c *SessionCache) update(key string, apply func(*model.CachedInteraction)) {
	rec, ok := c.Get(key)
	if !ok {
		rec = &model.CachedInteraction{Parameters: map[string]string{}}
	}
	apply(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.kv.Set(cachePrefix+key, string(data)); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
