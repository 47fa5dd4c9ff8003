package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

func Test_home(t *testing.T) {
	_, app := setup(t)
	rec := serve(app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Alama API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	env, app := setup(t)
	repo := env.Store.Users

	testutil.CreateStudent(t, repo, "ama", "R-1", 3)
	testutil.CreateUser(t, repo, "Yaw Mensah", "yaw", "yaw@test.com", testutil.Password, []string{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name: "missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", body: marshallObj(t, echoapi.LoginRequest{Username: "kofi", Password: testutil.Password}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marshallObj(t, echoapi.LoginRequest{Username: "ama", Password: "wrong"}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", body: marshallObj(t, echoapi.LoginRequest{Username: "yaw", Password: testutil.Password}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: marshallObj(t, echoapi.LoginRequest{Username: " AMA ", Password: testutil.Password})},
		{name: "by email", body: marshallObj(t, echoapi.LoginRequest{Username: "ama@test.com", Password: testutil.Password})},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, http.MethodPost, "/v1/users/login", "", tt.body)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code)
			var resp echoapi.LoginResponse
			unmarshall(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
		})
	}

	usr, err := env.UserSvc.GetByUsernameOrEmail(ctx, "ama")
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())
}

func Test_userApi_query(t *testing.T) {
	env, app := setup(t)
	repo := env.Store.Users

	admin := testutil.CreateAdmin(t, repo, "admin")
	fac := testutil.CreateFaculty(t, repo, "prof", "E-1")
	ama := testutil.CreateStudent(t, repo, "ama", "R-1", 3)
	kofi := testutil.CreateStudent(t, repo, "kofi", "R-2", 5)
	yaw := testutil.CreateUserWithProfile(t, repo, "Yaw Mensah", "yaw", "yaw@test.com", testutil.Password,
		[]string{user.RoleStudent}, user.Profile{RollNumber: "R-3", Semester: 5, Programme: "BSc"}, false)

	adminToken := getToken(t, env, admin)
	facToken := getToken(t, env, fac)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "staff required", path: "/v1/users", token: getToken(t, env, ama),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "admin gets all", path: "/v1/users", token: adminToken, wantData: marshallList(t, admin, fac, ama, kofi, yaw)},
		{name: "faculty gets students", path: "/v1/users", token: facToken, wantData: marshallList(t, ama, kofi, yaw)},
		{name: "faculty cannot widen", path: "/v1/users?role=admin:", token: facToken, wantData: marshallList(t, ama, kofi, yaw)},
		{name: "role", path: "/v1/users?role=faculty:", token: adminToken, wantData: marshallList(t, fac)},
		{name: "roles", path: "/v1/users?role=faculty:&role=admin:", token: adminToken, wantData: marshallList(t, admin, fac)},
		{name: "search", path: "/v1/users?search=KOF", token: adminToken, wantData: marshallList(t, kofi)},
		{name: "search (unknown)", path: "/v1/users?search=lol", token: adminToken, wantData: marshallList(t)},
		{name: "is_active", path: "/v1/users?is_active=false", token: adminToken, wantData: marshallList(t, yaw)},
		{name: "semester", path: "/v1/users?semester=5", token: facToken, wantData: marshallList(t, kofi, yaw)},
		{name: "department", path: "/v1/users?department=science", token: adminToken, wantData: marshallList(t, fac)},
		{
			name: "order by -semester,name", path: "/v1/users?ordering=-semester,name", token: facToken,
			wantData: marshallList(t, kofi, yaw, ama),
		},
		{
			name: "unknown ordering is ignored", path: "/v1/users?ordering=password_hash", token: facToken,
			wantData: marshallList(t, ama, kofi, yaw),
		},
		{name: "roles list", path: "/v1/users/roles", token: adminToken, wantData: marshallObj(t, user.Roles)},
		{name: "roles list (admin only)", path: "/v1/users/roles", token: facToken, wantCode: http.StatusForbidden},
	})
}

func Test_userApi_register(t *testing.T) {
	env, app := setup(t)
	repo := env.Store.Users

	admin := testutil.CreateAdmin(t, repo, "admin")
	fac := testutil.CreateFaculty(t, repo, "prof", "E-1")
	adminToken := getToken(t, env, admin)

	student := user.NewUser{
		Name:            "Ama Owusu",
		Username:        "AmaO",
		Email:           "ama@test.com",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
		Roles:           []string{user.RoleStudent},
		Profile:         user.Profile{RollNumber: "r-9", Semester: 2, Programme: "BSc"},
	}

	t.Run("admin required", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/v1/users/register", getToken(t, env, fac), marshallObj(t, student))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("role above own", func(t *testing.T) {
		owner := student
		owner.Username, owner.Email, owner.Roles, owner.Profile = "owner", "owner@test.com", []string{user.RoleAdminOwner}, user.Profile{}
		rec := serve(app, http.MethodPost, "/v1/users/register", adminToken, marshallObj(t, owner))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		}, rec)
	})

	t.Run("student without roll number", func(t *testing.T) {
		noRoll := student
		noRoll.Profile = user.Profile{Semester: 2}
		rec := serve(app, http.MethodPost, "/v1/users/register", adminToken, marshallObj(t, noRoll))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "roll number is required for students")
	})

	t.Run("created", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/v1/users/register", adminToken, marshallObj(t, student))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshall(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "amao", usr.Username)
		assert.Equal(t, "R-9", usr.Profile.RollNumber)
		assert.True(t, usr.IsActive)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("email taken", func(t *testing.T) {
		dup := student
		dup.Username, dup.Profile.RollNumber = "other", "R-10"
		rec := serve(app, http.MethodPost, "/v1/users/register", adminToken, marshallObj(t, dup))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		}, rec)
	})
}

func Test_userApi_detail(t *testing.T) {
	env, app := setup(t)
	repo := env.Store.Users

	admin := testutil.CreateAdmin(t, repo, "admin")
	ama := testutil.CreateStudent(t, repo, "ama", "R-1", 3)
	kofi := testutil.CreateStudent(t, repo, "kofi", "R-2", 5)
	adminToken := getToken(t, env, admin)
	amaToken := getToken(t, env, ama)
	notFound := marshallObj(t, httpErr{Error: "not found"})

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/users/" + ama.ID, wantCode: http.StatusUnauthorized},
		{name: "self", path: "/v1/users/" + ama.ID, token: amaToken, wantData: marshallObj(t, ama)},
		{name: "other", path: "/v1/users/" + kofi.ID, token: amaToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin", path: "/v1/users/" + kofi.ID, token: adminToken, wantData: marshallObj(t, kofi)},
		{name: "unknown", path: "/v1/users/nope", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "self cannot change roles", method: http.MethodPut, path: "/v1/users/" + ama.ID, token: amaToken,
			body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "self cannot change profile", method: http.MethodPut, path: "/v1/users/" + ama.ID, token: amaToken,
			body: []byte(`{"profile": {"roll_number": "R-0"}}`), wantCode: http.StatusForbidden,
		},
		{
			name: "student cannot delete", method: http.MethodDelete, path: "/v1/users/" + ama.ID, token: amaToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("self update", func(t *testing.T) {
		rec := serve(app, http.MethodPut, "/v1/users/"+ama.ID, amaToken, []byte(`{"name": " Ama Owusu "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshall(t, rec, &usr)
		assert.Equal(t, "Ama Owusu", usr.Name)
		assert.Equal(t, ama.Roles, usr.Roles)
	})

	t.Run("admin update", func(t *testing.T) {
		rec := serve(app, http.MethodPut, "/v1/users/"+kofi.ID, adminToken, []byte(`{"is_active": false, "profile": {"roll_number": "r-2", "semester": 6, "programme": "BSc"}}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshall(t, rec, &usr)
		assert.False(t, usr.IsActive)
		assert.Equal(t, 6, usr.Profile.Semester)
	})

	t.Run("admin delete", func(t *testing.T) {
		rec := serve(app, http.MethodDelete, "/v1/users/"+kofi.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := env.UserSvc.GetByID(ctx, kofi.ID)
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_userApi_destroyMultiple(t *testing.T) {
	env, app := setup(t)
	repo := env.Store.Users

	admin := testutil.CreateAdmin(t, repo, "admin")
	ama := testutil.CreateStudent(t, repo, "ama", "R-1", 3)
	kofi := testutil.CreateStudent(t, repo, "kofi", "R-2", 5)
	adminToken := getToken(t, env, admin)

	rec := serve(app, http.MethodDelete, "/v1/users?id="+ama.ID+"&id="+admin.ID, adminToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(app, http.MethodDelete, "/v1/users?id="+ama.ID+"&id="+kofi.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	count, err := env.UserSvc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_userApi_passwordReset(t *testing.T) {
	env, app := setup(t)
	ama := testutil.CreateStudent(t, env.Store.Users, "ama", "R-1", 3)

	success := marshallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "nobody@test.com"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: success}, rec)
		assert.Empty(t, env.Mail.SentMessages())
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "nobody"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("email sent", func(t *testing.T) {
		rec := serve(app, http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "AMA@test.com"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: success}, rec)
		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, ama.Email, sent[0].To[0].Address)
	})

	uid, token := env.UserSvc.MakeResetToken(ama)
	newPwd := "N3w&Better!pwd"

	t.Run("invalid link", func(t *testing.T) {
		body := marshallObj(t, user.ResetUserPassword{UID: uid, Token: "bad-token", Password: newPwd, PasswordConfirm: newPwd})
		rec := serve(app, http.MethodPost, "/v1/users/password-reset-confirm", "", body)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: user.ErrInvalidResetLink.Error()}),
		}, rec)
	})

	t.Run("password reset", func(t *testing.T) {
		body := marshallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd})
		rec := serve(app, http.MethodPost, "/v1/users/password-reset-confirm", "", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = serve(app, http.MethodPost, "/v1/users/login", "", marshallObj(t, echoapi.LoginRequest{Username: "ama", Password: newPwd}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("link used once", func(t *testing.T) {
		body := marshallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd})
		rec := serve(app, http.MethodPost, "/v1/users/password-reset-confirm", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env, app := setup(t)
	repo := env.Store.Users

	ama := testutil.CreateStudent(t, repo, "ama", "R-1", 3)
	yaw := testutil.CreateUser(t, repo, "Yaw Mensah", "yaw", "yaw@test.com", testutil.Password, []string{user.RoleStudent}, false)

	now := time.Now()
	staleClaims := echoapi.GetUserClaims(env.Conf, ama, now.Add(-2*env.Conf.Server.JWTRefreshExpirationDelta).Unix())
	staleToken, err := echoapi.GenerateToken(env.Conf, staleClaims)
	require.NoError(t, err)

	forged := &echoapi.Claims{StandardClaims: jwt.StandardClaims{Subject: ama.ID, ExpiresAt: now.Add(time.Hour).Unix()}}
	forgedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte("not-the-secret"))
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "bad signature", method: http.MethodPost, path: "/v1/users/token-refresh", token: forgedToken, wantCode: http.StatusUnauthorized},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, env, yaw),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: staleToken,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "refreshed", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, env, ama)},
	})
}
