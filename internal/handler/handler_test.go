package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/middleware"
	"github.com/noah-isme/dance-studio-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	adminClaims      = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Email: "admin@studio.test"}
	studentClaims    = &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, Email: "sam@studio.test"}
	instructorClaims = &models.JWTClaims{UserID: "ins-1", Role: models.RoleInstructor}
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      string                 `json:"error"`
	Code       string                 `json:"code"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

// serve mounts h on route behind the response meta middleware, optionally
// authenticating the request as claims.
func serve(t *testing.T, h gin.HandlerFunc, method, route, target string, body interface{}, claims *models.JWTClaims) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Use(middleware.WithResponseMeta(), func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	r.Handle(method, route, h)

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) responseEnvelope {
	t.Helper()
	env := decode(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, dest))
	return env
}

func assertCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Equal(t, code, decode(t, rec).Code)
}
