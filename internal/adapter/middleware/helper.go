package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"

	idempKeyPrefix = "idemp:agreements:"
)

var (
	errMissingRequestID = errors.New("missing " + HeaderRequestID)
	errInvalidRequestID = errors.New("invalid " + HeaderRequestID + " format")
	errMissingRequestAt = errors.New("missing " + HeaderRequestAt)
	errInvalidRequestAt = errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
	errSkewedRequestAt  = errors.New(HeaderRequestAt + " too skewed")
)

// idempKey scopes a request id to one caller on one route. The caller is the
// normalized id set by Caller, so header case does not split keys.
type idempKey struct {
	Method    string
	Route     string
	Caller    string
	RequestID string
}

func (k idempKey) String() string {
	return idempKeyPrefix + strings.ToLower(k.Method) + ":" + k.Route + ":" + k.Caller + ":" + k.RequestID
}

// Request ids are lowercase only: ids differing in case would otherwise be
// distinct keys for the same logical request.
var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-5][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

func validReqID(id string) bool { return reUUID.MatchString(id) || reHex32.MatchString(id) }

// requestMeta is the validated pair of idempotency headers.
type requestMeta struct {
	ID string
	At time.Time
}

func readRequestMeta(h http.Header, now time.Time) (requestMeta, error) {
	reqID := strings.TrimSpace(h.Get(HeaderRequestID))
	if reqID == "" {
		return requestMeta{}, errMissingRequestID
	}
	if !validReqID(reqID) {
		return requestMeta{}, errInvalidRequestID
	}
	at, err := parseRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return requestMeta{}, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return requestMeta{}, errSkewedRequestAt
	}
	return requestMeta{ID: reqID, At: at}, nil
}

// parseRequestAt accepts unix seconds, unix milliseconds, or RFC3339 with an
// explicit zone. Values above 1e12 are taken as milliseconds.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errMissingRequestAt
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n <= 0 {
			return time.Time{}, errInvalidRequestAt
		}
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	// the Nano layout also accepts values without a fraction
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errInvalidRequestAt
	}
	return t.UTC(), nil
}

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

// matches reports whether a stored entry was made for the same body.
func (e idempEntry) matches(hash string) bool { return e.BodySHA256 == "" || e.BodySHA256 == hash }

func (e idempEntry) replayable() bool { return !e.InProgress && e.Code != 0 && len(e.Body) > 0 }

// idempStore holds one entry per key: an in-progress marker while the
// handler runs, then the final response for ttl.
type idempStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func (s idempStore) reserve(ctx context.Context, key idempKey, e idempEntry) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key.String(), payload, provisionalLockTTL).Result()
}

func (s idempStore) load(ctx context.Context, key idempKey) (idempEntry, error) {
	var e idempEntry
	v, err := s.rdb.Get(ctx, key.String()).Bytes()
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return idempEntry{}, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return e, nil
}

func (s idempStore) commit(ctx context.Context, key idempKey, e idempEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key.String(), payload, s.ttl).Err()
}

// release drops the key so the same request id can be retried.
func (s idempStore) release(ctx context.Context, key idempKey) error {
	return s.rdb.Del(ctx, key.String()).Err()
}
