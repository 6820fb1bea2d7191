package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/libris/circulation-service/pkg/auth"
	md "github.com/libris/circulation-service/pkg/middleware"
)

func TestAuthContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		userName   string
		userRole   string
		wantStatus int
		wantCaller auth.Caller
	}{
		{
			name:       "trusted headers set the caller",
			userName:   "alice",
			userRole:   string(auth.RoleLibrarian),
			wantStatus: http.StatusOK,
			wantCaller: auth.Caller{ID: "alice", Role: auth.RoleLibrarian},
		},
		{
			name:       "missing user name",
			userRole:   string(auth.RoleMember),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown role",
			userName:   "bob",
			userRole:   "superuser",
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			var got auth.Caller
			e.GET("/ping", func(c echo.Context) error {
				caller, err := auth.FromContext(c.Request().Context())
				if err != nil {
					return err
				}
				got = caller
				return c.NoContent(http.StatusOK)
			}, md.AuthContext)

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.userName != "" {
				req.Header.Set(auth.XUserNameHeader, tt.userName)
			}
			if tt.userRole != "" {
				req.Header.Set(auth.XUserRoleHeader, tt.userRole)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.Equal(t, tt.wantCaller, got)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.GET("/staff", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, md.AuthContext, md.RequireRoles(auth.RoleLibrarian, auth.RoleAdmin))

	do := func(role auth.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/staff", nil)
		req.Header.Set(auth.XUserNameHeader, "kate")
		req.Header.Set(auth.XUserRoleHeader, string(role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do(auth.RoleLibrarian))
	require.Equal(t, http.StatusOK, do(auth.RoleAdmin))
	require.Equal(t, http.StatusForbidden, do(auth.RoleMember))
}
