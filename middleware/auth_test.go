package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func actorEcho(t *testing.T, got *models.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := GetActorFromContext(r)
		if err != nil {
			t.Errorf("GetActorFromContext: %v", err)
		}
		*got = actor
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	valid := jwt.MapClaims{"user_id": 7, "role": "organizer", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"Valid", "Bearer " + sign(t, testSecret, valid), "", http.StatusNoContent},
		{"QueryToken", "", sign(t, testSecret, valid), http.StatusNoContent},
		{"Missing", "", "", http.StatusUnauthorized},
		{"WrongScheme", "Basic abc", "", http.StatusUnauthorized},
		{"WrongSecret", "Bearer " + sign(t, "other", valid), "", http.StatusUnauthorized},
		{"Expired", "Bearer " + sign(t, testSecret, jwt.MapClaims{"user_id": 7, "role": "organizer", "exp": time.Now().Add(-time.Minute).Unix()}), "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actor models.Actor
			req := httptest.NewRequest(http.MethodGet, "/?token="+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set("User-Agent", "ua-test")
			req.RemoteAddr = "192.0.2.10:5555"
			rec := httptest.NewRecorder()

			auth.Authenticate(actorEcho(t, &actor)).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusNoContent {
				if actor.UserID != 7 || actor.Role != models.RoleOrganizer || actor.IPAddress != "192.0.2.10" || actor.UserAgent != "ua-test" {
					t.Fatalf("unexpected actor: %+v", actor)
				}
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Authorize(models.RoleAdmin)(ok)

	for role, want := range map[models.UserRole]int{models.RoleAdmin: http.StatusOK, models.RolePlayer: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), 1, role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", role, want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no claims: expected 401, got %d", rec.Code)
	}
}
