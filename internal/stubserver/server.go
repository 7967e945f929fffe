package stubserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rttrail-go/internal/model"
)

// Version はスタブサーバーが /information で報告するバージョン。
const Version = "1.0.0"

// Server はRTTrail APIのスタブ実装。
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewServer はServerを生成する。
func NewServer(store *Store, logger *slog.Logger) *Server {
	return &Server{
		store:  store,
		logger: logger,
	}
}

// Router は全エンドポイントのルーティングを設定したchi.Routerを返す。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// 認証不要のルート
	r.Get("/information", s.getInformation)
	r.Post("/login/access-token", s.login)
	r.Post("/login/activate", s.activateUser)
	r.Post("/login/change-password", s.changePassword)
	r.Get("/login/migrate-mail-confirm", s.confirmMailMigration)
	r.Post("/login/recover", s.recoverUser)
	r.Post("/login/reset-password", s.resetPassword)
	r.Post("/login/test-token", s.testToken)
	r.Post("/users/register", s.registerUser)
	r.Get("/users/search", s.searchUsers)
	r.Get("/users/{userID}/profile-picture", s.getUserProfilePicture)

	// 認証必須のルート
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/login/migrate-mail", s.migrateMail)
		r.Get("/users", s.listUsers)
		r.Get("/users/count", s.countUsers)
		r.Get("/users/account-types", s.listAccountTypes)
		r.Get("/users/me", s.getMe)
		r.Patch("/users/me", s.updateMe)
		r.Get("/users/me/profile-picture", s.getMyProfilePicture)
		r.Post("/users/me/profile-picture", s.uploadProfilePicture)
		r.Post("/users/me/ask-deletion", s.askDeletion)
		r.Get("/users/{userID}", s.getUser)
		r.Patch("/users/{userID}", s.updateUser)
	})

	return r
}

// contextKey はリクエストコンテキストのキー型。
type contextKey string

const userContextKey contextKey = "user"

// contextWithUser は認証済みユーザーをコンテキストに載せる。
func contextWithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// userFromContext はコンテキストから認証済みユーザーを取り出す。
func userFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userContextKey).(model.User)
	return user, ok
}

// requireAuth はBearerトークンを検証し、対応するユーザーをコンテキストに載せる。
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.userFromRequest(r)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		ctx := contextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromRequest はAuthorizationヘッダーのトークンからユーザーを引く。
func (s *Server) userFromRequest(r *http.Request) (model.User, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return model.User{}, false
	}
	return s.store.userByToken(token)
}

// getInformation はサービスの稼働状態とバージョンを返す。
// GET /information
func (s *Server) getInformation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.CoreInformation{
		Ready:   true,
		Version: Version,
	})
}

// login は資格情報を検証してアクセストークンを発行する。
// POST /login/access-token
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed form body")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	var problems []model.FieldProblem
	if username == "" {
		problems = append(problems, missingField("body", "username"))
	}
	if password == "" {
		problems = append(problems, missingField("body", "password"))
	}
	if len(problems) > 0 {
		writeValidation(w, problems)
		return
	}

	userID, ok := s.store.authenticate(username, password)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Incorrect login or password")
		return
	}

	token := s.store.createSession(userID)
	s.logger.Info("アクセストークンを発行しました", slog.String("user_id", userID))
	writeJSON(w, http.StatusOK, model.AccessToken{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// testToken はトークンの有効性を検証し、対応するユーザーを返す。
// POST /login/test-token
func (s *Server) testToken(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromRequest(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// activateUser は有効化トークンを消費してアカウントを確定する。
// POST /login/activate
func (s *Server) activateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserActivate
	if !decodeBody(w, r, &req) {
		return
	}

	if !s.store.activate(req.ActivationToken, req.Name) {
		writeDetail(w, http.StatusNotFound, "Invalid activation token")
		return
	}

	s.logger.Info("アカウントを有効化しました", slog.String("name", req.Name))
	writeJSON(w, http.StatusCreated, model.Result{Success: true})
}

// changePassword は旧パスワードを照合してパスワードを変更する。
// POST /login/change-password
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePassword
	if !decodeBody(w, r, &req) {
		return
	}

	if !s.store.changePassword(req.Email, req.OldPassword, req.NewPassword) {
		writeDetail(w, http.StatusForbidden, "Incorrect login or password")
		return
	}

	writeJSON(w, http.StatusCreated, model.Result{Success: true})
}

// recoverUser はパスワード再設定を開始する。
// アカウントの存在有無を漏らさないため、常に成功形を返す。
// POST /login/recover
func (s *Server) recoverUser(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRecover
	if !decodeBody(w, r, &req) {
		return
	}

	if token := s.store.startRecovery(req.Email); token != "" {
		s.logger.Info("リセットトークンを発行しました", slog.String("email", req.Email))
	}

	writeJSON(w, http.StatusCreated, model.Result{Success: true})
}

// resetPassword はリセットトークンを消費してパスワードを再設定する。
// POST /login/reset-password
func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPassword
	if !decodeBody(w, r, &req) {
		return
	}

	if !s.store.resetPassword(req.ResetToken, req.NewPassword) {
		writeDetail(w, http.StatusNotFound, "Invalid reset token")
		return
	}

	writeJSON(w, http.StatusCreated, model.Result{Success: true})
}

// migrateMail はメールアドレス変更を開始する。
// POST /login/migrate-mail
func (s *Server) migrateMail(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req model.MailMigration
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewEmail == "" {
		writeValidation(w, []model.FieldProblem{missingField("body", "new_email")})
		return
	}

	s.store.startMigration(user.ID, req.NewEmail)
	s.logger.Info("メール変更の確認トークンを発行しました",
		slog.String("user_id", user.ID),
		slog.String("new_email", req.NewEmail),
	)
	w.WriteHeader(http.StatusNoContent)
}

// confirmMailMigration は確認トークンを消費してメールアドレスを更新する。
// GET /login/migrate-mail-confirm
func (s *Server) confirmMailMigration(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeValidation(w, []model.FieldProblem{missingField("query", "token")})
		return
	}

	if !s.store.confirmMigration(token) {
		writeDetail(w, http.StatusNotFound, "Invalid confirmation token")
		return
	}

	writeJSON(w, http.StatusOK, model.Result{Success: true})
}

// registerUser は登録申請を受け付け、有効化トークンを発行する。
// 既存メールアドレスでも成功形を返す（列挙防止）。
// POST /users/register
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserRegister
	if !decodeBody(w, r, &req) {
		return
	}

	var problems []model.FieldProblem
	if req.Email == "" {
		problems = append(problems, missingField("body", "email"))
	}
	if req.Password == "" {
		problems = append(problems, missingField("body", "password"))
	}
	if len(problems) > 0 {
		writeValidation(w, problems)
		return
	}

	if token, exists := s.store.register(req.Email, req.Password); !exists {
		s.logger.Info("有効化トークンを発行しました",
			slog.String("email", req.Email),
			slog.String("activation_token", token),
		)
	}

	writeJSON(w, http.StatusCreated, model.Result{Success: true})
}

// listUsers は全ユーザーの簡易一覧を返す。
// GET /users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	types, ok := parseTypeParams(w, r, "accountTypes")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.listUsers(types))
}

// searchUsers は名前でユーザーを検索する。
// GET /users/search
func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeValidation(w, []model.FieldProblem{missingField("query", "query")})
		return
	}

	included, ok := parseTypeParams(w, r, "includedAccountTypes")
	if !ok {
		return
	}
	excluded, ok := parseTypeParams(w, r, "excludedAccountTypes")
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.store.searchUsers(query, included, excluded))
}

// countUsers は登録ユーザー数を返す。
// GET /users/count
func (s *Server) countUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.countUsers())
}

// listAccountTypes は全アカウント種別を返す。
// GET /users/account-types
func (s *Server) listAccountTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.AllAccountTypes())
}

// getUser は指定IDのユーザー詳細を返す。
// GET /users/{userID}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.store.userByID(chi.URLParam(r, "userID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// updateUser は指定ユーザーに部分更新を適用する。
// PATCH /users/{userID}
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserUpdateAdmin
	if !decodeBody(w, r, &req) {
		return
	}

	if !s.store.updateUser(chi.URLParam(r, "userID"), req) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getUserProfilePicture は指定ユーザーのプロフィール画像を返す。認証不要。
// GET /users/{userID}/profile-picture
func (s *Server) getUserProfilePicture(w http.ResponseWriter, r *http.Request) {
	data, ok := s.store.picture(chi.URLParam(r, "userID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// getMe は呼び出し主のユーザー詳細を返す。
// GET /users/me
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

// updateMe は呼び出し主の表示名を更新する。
// PATCH /users/me
func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req model.UserUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	s.store.updateUser(user.ID, model.UserUpdateAdmin{Name: req.Name})
	w.WriteHeader(http.StatusNoContent)
}

// getMyProfilePicture は呼び出し主のプロフィール画像を返す。
// GET /users/me/profile-picture
func (s *Server) getMyProfilePicture(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	data, _ := s.store.picture(user.ID)
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// uploadProfilePicture は呼び出し主のプロフィール画像を差し替える。
// POST /users/me/profile-picture
func (s *Server) uploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	file, _, err := r.FormFile("image")
	if err != nil {
		writeValidation(w, []model.FieldProblem{missingField("body", "image")})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	s.store.setPicture(user.ID, data)
	s.logger.Info("プロフィール画像を更新しました",
		slog.String("user_id", user.ID),
		slog.Int("bytes", len(data)),
	)
	writeJSON(w, http.StatusCreated, model.Result{Success: true})
}

// askDeletion はアカウント削除の申請を受け付ける。
// POST /users/me/ask-deletion
func (s *Server) askDeletion(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	s.logger.Info("アカウント削除申請を受け付けました", slog.String("user_id", user.ID))
	w.WriteHeader(http.StatusNoContent)
}

// parseTypeParams はアカウント種別のクエリパラメータ群を解析する。
// 不正な値が含まれる場合は422を書き込み、ok=falseを返す。
func parseTypeParams(w http.ResponseWriter, r *http.Request, name string) ([]model.AccountType, bool) {
	values := r.URL.Query()[name]
	types := make([]model.AccountType, 0, len(values))
	for _, v := range values {
		t, err := model.ParseAccountType(v)
		if err != nil {
			writeValidation(w, []model.FieldProblem{{
				Loc:  []string{"query", name},
				Msg:  "Input should be 'user', 'moderator' or 'admin'",
				Type: "enum",
			}})
			return nil, false
		}
		types = append(types, t)
	}
	return types, true
}

// decodeBody はJSONリクエストボディをデコードする。
// 失敗した場合は422を書き込み、falseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, []model.FieldProblem{{
			Loc:  []string{"body"},
			Msg:  "Invalid JSON body",
			Type: "json_invalid",
		}})
		return false
	}
	return true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// detailResponse は実サービスのエラーボディ形式。
type detailResponse struct {
	Detail any `json:"detail"`
}

// writeDetail は単一メッセージのエラーレスポンスを書き込む。
func writeDetail(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, detailResponse{Detail: message})
}

// writeValidation はバリデーションエラー（422）を書き込む。
func writeValidation(w http.ResponseWriter, problems []model.FieldProblem) {
	writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: problems})
}

// missingField は必須フィールド欠落を表すFieldProblemを生成する。
func missingField(location, field string) model.FieldProblem {
	return model.FieldProblem{
		Loc:  []string{location, field},
		Msg:  "Field required",
		Type: "missing",
	}
}
