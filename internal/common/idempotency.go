package common

import (
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem is an Idempotency-Key middleware backed by redis SET NX. Keys are
// scoped per authenticated user so separate users may reuse the same key.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func (i Idem) redisKey(r *http.Request, header string) string {
	uid, _ := UserID(r.Context())
	return "idem:" + Sha256Hex(uid+"\x00"+r.Method+"\x00"+header)
}

// Middleware rejects a request whose Idempotency-Key was already seen
// within the TTL. Requests without the header pass through untouched.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		fresh, err := i.R.SetNX(r.Context(), i.redisKey(r, header), "seen", ttl).Result()
		if err != nil {
			// the store being down must not block writes
			next.ServeHTTP(w, r)
			return
		}
		if !fresh {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
