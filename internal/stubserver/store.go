// Package stubserver はRTTrail APIのインメモリスタブ実装を提供する。
// フロントエンド開発と結合テストで、実サービスの代わりに使用する。
// エンドポイントの集合・ステータスコード・ボディ形式は実サービスと一致させているが、
// あいまい検索などサーバー側アルゴリズムは簡易実装で代替している。
package stubserver

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/rttrail-go/internal/model"
)

// pendingUser は有効化待ちの登録申請。
type pendingUser struct {
	email           string
	password        string
	activationToken string
}

// storedUser はスタブが保持するユーザー。
type storedUser struct {
	user     model.User
	password string
	picture  []byte
}

// Store はスタブサーバーのインメモリ状態。
// 並行リクエストに対応するためミューテックスで保護する。
type Store struct {
	mu sync.Mutex

	users      map[string]*storedUser // ユーザーID → ユーザー
	sessions   map[string]string      // アクセストークン → ユーザーID
	pending    map[string]pendingUser // 有効化トークン → 登録申請
	resets     map[string]string      // リセットトークン → ユーザーID
	migrations map[string]migration   // 確認トークン → メール変更申請
}

// migration はメールアドレス変更の申請。
type migration struct {
	userID   string
	newEmail string
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*storedUser),
		sessions:   make(map[string]string),
		pending:    make(map[string]pendingUser),
		resets:     make(map[string]string),
		migrations: make(map[string]migration),
	}
}

// SeedUser はテスト・開発用にユーザーを直接登録し、ユーザーIDを返す。
func (s *Store) SeedUser(name, email, password string, accountType model.AccountType) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	s.users[id] = &storedUser{
		user: model.User{
			ID:          id,
			Name:        name,
			Email:       email,
			AccountType: accountType,
			IsActive:    true,
			CreatedOn:   &now,
		},
		password: password,
	}
	return id
}

// authenticate はメールアドレスとパスワードを照合し、一致すればユーザーIDを返す。
func (s *Store) authenticate(email, password string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.user.Email == email && u.password == password {
			return id, true
		}
	}
	return "", false
}

// createSession は新しいアクセストークンを発行する。
func (s *Store) createSession(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.sessions[token] = userID
	return token
}

// userByToken はアクセストークンに対応するユーザーを返す。
func (s *Store) userByToken(token string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.sessions[token]
	if !ok {
		return model.User{}, false
	}
	u, ok := s.users[userID]
	if !ok {
		return model.User{}, false
	}
	return u.user, true
}

// userByID は指定IDのユーザーを返す。
func (s *Store) userByID(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, false
	}
	return u.user, true
}

// listUsers は全ユーザーの簡易表現を返す。accountTypesが空の場合は全種別。
func (s *Store) listUsers(accountTypes []model.AccountType) []model.UserSimple {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []model.UserSimple{}
	for _, u := range s.users {
		if len(accountTypes) > 0 && !containsType(accountTypes, u.user.AccountType) {
			continue
		}
		result = append(result, model.UserSimple{
			ID:          u.user.ID,
			Name:        u.user.Name,
			AccountType: u.user.AccountType,
			IsActive:    u.user.IsActive,
		})
	}
	return result
}

// searchUsers は名前の部分一致でユーザーを検索する。
// 実サービスのあいまい一致（Jaro-Winkler）の簡易代替。
func (s *Store) searchUsers(query string, included, excluded []model.AccountType) []model.UserSimple {
	s.mu.Lock()
	defer s.mu.Unlock()

	lowered := strings.ToLower(query)
	result := []model.UserSimple{}
	for _, u := range s.users {
		if !strings.Contains(strings.ToLower(u.user.Name), lowered) {
			continue
		}
		if len(included) > 0 && !containsType(included, u.user.AccountType) {
			continue
		}
		if containsType(excluded, u.user.AccountType) {
			continue
		}
		result = append(result, model.UserSimple{
			ID:          u.user.ID,
			Name:        u.user.Name,
			AccountType: u.user.AccountType,
			IsActive:    u.user.IsActive,
		})
	}
	return result
}

// countUsers は登録ユーザー数を返す。
func (s *Store) countUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// updateUser は部分更新を適用する。nilのフィールドは変更しない。
func (s *Store) updateUser(id string, update model.UserUpdateAdmin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false
	}
	if update.Email != nil {
		u.user.Email = *update.Email
	}
	if update.AccountType != nil {
		u.user.AccountType = *update.AccountType
	}
	if update.Name != nil {
		u.user.Name = *update.Name
	}
	if update.IsActive != nil {
		u.user.IsActive = *update.IsActive
	}
	return true
}

// register は登録申請を受け付け、有効化トークンを発行する。
// 既存アカウントと同じメールアドレスの場合はトークンを発行せずtrueを返す
// （列挙防止のため、呼び出し側はどちらでも成功形を返す）。
func (s *Store) register(email, password string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.user.Email == email {
			return "", true
		}
	}

	token := uuid.NewString()
	s.pending[token] = pendingUser{
		email:           email,
		password:        password,
		activationToken: token,
	}
	return token, false
}

// activate は有効化トークンを消費してアカウントを確定する。
func (s *Store) activate(token, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return false
	}
	delete(s.pending, token)

	id := uuid.NewString()
	now := time.Now().UTC()
	s.users[id] = &storedUser{
		user: model.User{
			ID:          id,
			Name:        name,
			Email:       p.email,
			AccountType: model.AccountTypeUser,
			IsActive:    true,
			CreatedOn:   &now,
		},
		password: p.password,
	}
	return true
}

// changePassword は旧パスワードを照合してパスワードを変更する。
func (s *Store) changePassword(email, oldPassword, newPassword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.user.Email == email && u.password == oldPassword {
			u.password = newPassword
			return true
		}
	}
	return false
}

// startRecovery はリセットトークンを発行する。
// メールアドレスが存在しない場合はトークンを発行しない（呼び出し側は常に成功形を返す）。
func (s *Store) startRecovery(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.user.Email == email {
			token := uuid.NewString()
			s.resets[token] = id
			return token
		}
	}
	return ""
}

// resetPassword はリセットトークンを消費してパスワードを再設定する。
func (s *Store) resetPassword(token, newPassword string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.resets[token]
	if !ok {
		return false
	}
	delete(s.resets, token)

	u, ok := s.users[userID]
	if !ok {
		return false
	}
	u.password = newPassword
	return true
}

// startMigration はメール変更の確認トークンを発行する。
func (s *Store) startMigration(userID, newEmail string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.migrations[token] = migration{userID: userID, newEmail: newEmail}
	return token
}

// confirmMigration は確認トークンを消費してメールアドレスを更新する。
func (s *Store) confirmMigration(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.migrations[token]
	if !ok {
		return false
	}
	delete(s.migrations, token)

	u, ok := s.users[m.userID]
	if !ok {
		return false
	}
	u.user.Email = m.newEmail
	return true
}

// setPicture はプロフィール画像を保存する。
func (s *Store) setPicture(userID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.picture = data
	}
}

// picture はプロフィール画像を返す。未設定の場合はデフォルト画像。
func (s *Store) picture(userID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, false
	}
	if u.picture == nil {
		return defaultPicture, true
	}
	return u.picture, true
}

// ResetTokenFor はテスト用に、発行済みのリセットトークンを返す。
func (s *Store) ResetTokenFor(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, userID := range s.resets {
		if u, ok := s.users[userID]; ok && u.user.Email == email {
			return token, true
		}
	}
	return "", false
}

// ActivationTokenFor はテスト用に、発行済みの有効化トークンを返す。
func (s *Store) ActivationTokenFor(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, p := range s.pending {
		if p.email == email {
			return token, true
		}
	}
	return "", false
}

// MigrationTokenFor はテスト用に、発行済みのメール変更確認トークンを返す。
func (s *Store) MigrationTokenFor(newEmail string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, m := range s.migrations {
		if m.newEmail == newEmail {
			return token, true
		}
	}
	return "", false
}

// defaultPicture はプロフィール画像未設定時に返す1x1 PNG。
var defaultPicture = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
}

// containsType はアカウント種別リストに指定の種別が含まれるかを返す。
func containsType(types []model.AccountType, t model.AccountType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
